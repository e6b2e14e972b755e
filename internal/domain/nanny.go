package domain

import "time"

// SoftSkillsProfile is produced by the external assessment service and is
// read-only for the matching engine.
type SoftSkillsProfile struct {
	RawScore      int    `json:"rawScore"`
	DominantStyle string `json:"dominantStyle,omitempty"`
}

// NannyRiskProfile holds caregiving style signals mirrored against the
// parent's risk profile.
type NannyRiskProfile struct {
	DisciplineStyle string   `json:"disciplineStyle,omitempty"`
	Communication   string   `json:"communication,omitempty"`
	StressResponse  string   `json:"stressResponse,omitempty"`
	Strengths       []string `json:"strengths,omitempty"`
	PersonalityType string   `json:"personalityType,omitempty"`
}

// NannyProfile is a caregiver candidate.
type NannyProfile struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	City        string             `json:"city"`
	Experience  string             `json:"experience,omitempty"`
	About       string             `json:"about,omitempty"`
	Skills      []string           `json:"skills,omitempty"`
	ChildAges   []string           `json:"childAges,omitempty"`
	IsVerified  bool               `json:"isVerified"`
	SoftSkills  *SoftSkillsProfile `json:"softSkills,omitempty"`
	RiskProfile *NannyRiskProfile  `json:"riskProfile,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func (n NannyProfile) EntityID() string { return n.ID }

func (n NannyProfile) EntityCreatedAt() time.Time { return n.CreatedAt }

// DisplayName returns the name shown to parents, falling back to the id.
func (n NannyProfile) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}
