package matching

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spigell/nanny-match/internal/domain"
)

//go:embed prompt.md
var promptTemplate string

type requestPayload struct {
	City         string                    `json:"city,omitempty"`
	ChildAge     string                    `json:"childAge,omitempty"`
	Schedule     string                    `json:"schedule,omitempty"`
	Budget       string                    `json:"budget,omitempty"`
	Comment      string                    `json:"comment,omitempty"`
	Requirements []string                  `json:"requirements,omitempty"`
	RiskProfile  *domain.ParentRiskProfile `json:"riskProfile,omitempty"`
}

type candidatePayload struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	City            string   `json:"city,omitempty"`
	About           string   `json:"about,omitempty"`
	Experience      string   `json:"experience,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	ChildAges       []string `json:"childAges,omitempty"`
	SoftSkillsStyle string   `json:"softSkillsStyle,omitempty"`
	Verified        bool     `json:"verified"`
	HeuristicScore  int      `json:"heuristicScore"`
}

func buildPrompt(req domain.ParentRequest, shortlist []domain.RankedCandidate, maxCandidates int) (string, error) {
	if len(shortlist) > maxCandidates {
		shortlist = shortlist[:maxCandidates]
	}

	requestJSON, err := json.MarshalIndent(requestPayload{
		City:         req.City,
		ChildAge:     req.ChildAge,
		Schedule:     req.Schedule,
		Budget:       req.Budget,
		Comment:      req.Comment,
		Requirements: req.Requirements,
		RiskProfile:  req.RiskProfile,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal request payload: %w", err)
	}

	candidates := make([]candidatePayload, 0, len(shortlist))
	for _, c := range shortlist {
		payload := candidatePayload{
			ID:             c.Nanny.ID,
			Name:           c.Nanny.DisplayName(),
			City:           c.Nanny.City,
			About:          c.Nanny.About,
			Experience:     c.Nanny.Experience,
			Skills:         c.Nanny.Skills,
			ChildAges:      c.Nanny.ChildAges,
			Verified:       c.Nanny.IsVerified,
			HeuristicScore: c.Score,
		}
		if c.Nanny.SoftSkills != nil {
			payload.SoftSkillsStyle = c.Nanny.SoftSkills.DominantStyle
		}
		candidates = append(candidates, payload)
	}

	candidatesJSON, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidates payload: %w", err)
	}

	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Request:\n{{REQUEST_JSON}}\n\nCandidates:\n{{CANDIDATES_JSON}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{REQUEST_JSON}}", string(requestJSON))
	prompt = strings.ReplaceAll(prompt, "{{CANDIDATES_JSON}}", string(candidatesJSON))

	return prompt, nil
}
