package matching

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/nanny-match/internal/ai"
	"github.com/spigell/nanny-match/internal/domain"
)

var errInvalidResponse = errors.New("invalid model response")

// parseResponse validates a raw model answer. Any deviation from
// {matchScore: number, recommendations: three non-empty strings} is an error.
func parseResponse(raw string) (domain.MatchResult, error) {
	cleaned := ai.ExtractJSON(raw)
	if cleaned == "" {
		return domain.MatchResult{}, fmt.Errorf("%w: empty response", errInvalidResponse)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return domain.MatchResult{}, fmt.Errorf("%w: decode json: %v", errInvalidResponse, err)
	}

	rawScore, ok := payload["matchScore"]
	if !ok {
		return domain.MatchResult{}, fmt.Errorf("%w: matchScore is missing", errInvalidResponse)
	}
	score := ai.CoerceFloat(rawScore)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return domain.MatchResult{}, fmt.Errorf("%w: matchScore %v is not a number", errInvalidResponse, rawScore)
	}

	var recommendations []string
	if err := mapstructure.Decode(payload["recommendations"], &recommendations); err != nil {
		return domain.MatchResult{}, fmt.Errorf("%w: recommendations: %v", errInvalidResponse, err)
	}
	if len(recommendations) != domain.RecommendationsCount {
		return domain.MatchResult{}, fmt.Errorf("%w: expected %d recommendations, got %d",
			errInvalidResponse, domain.RecommendationsCount, len(recommendations))
	}
	for i, r := range recommendations {
		if strings.TrimSpace(r) == "" {
			return domain.MatchResult{}, fmt.Errorf("%w: recommendation %d is empty", errInvalidResponse, i)
		}
	}

	return domain.MatchResult{
		MatchScore:      int(math.Round(math.Max(0, math.Min(100, score)))),
		Recommendations: recommendations,
		Source:          domain.MatchSourceAI,
	}, nil
}
