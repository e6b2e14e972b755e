package scoring

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Signal names the pair of risk profile fields a style rule compares.
type Signal string

const (
	// SignalFamilyStyle compares the family style with the nanny's discipline style.
	SignalFamilyStyle Signal = "family_style"
	// SignalDiscipline compares the preferred discipline tone with the nanny's discipline style.
	SignalDiscipline Signal = "discipline"
	// SignalCommunication compares communication cadence.
	SignalCommunication Signal = "communication"
	// SignalStress compares the child's stress response with the nanny's way of handling it.
	SignalStress Signal = "stress"
	// SignalPersonality compares the coarse personality-type tags.
	SignalPersonality Signal = "personality"
)

// AnyValue in StyleRule.Parent matches any non-empty parent value. In
// StyleRule.Candidate it requires the candidate value to mirror the parent's.
const AnyValue = "*"

// StyleRule is one row of the compatibility table.
type StyleRule struct {
	Signal    Signal `yaml:"signal"`
	Parent    string `yaml:"parent"`
	Candidate string `yaml:"candidate"`
	Weight    int    `yaml:"weight"`
}

// Policy holds every weight and cap used by the Model.
type Policy struct {
	Base              int         `yaml:"base"`
	Location          int         `yaml:"location"`
	Verified          int         `yaml:"verified"`
	ChildAge          int         `yaml:"child_age"`
	Schedule          int         `yaml:"schedule"`
	RequirementWeight int         `yaml:"requirement_weight"`
	RequirementCap    int         `yaml:"requirement_cap"`
	StyleCap          int         `yaml:"style_cap"`
	StyleRules        []StyleRule `yaml:"style_rules"`
	ComplementWeight  int         `yaml:"complement_weight"`
	ComplementCap     int         `yaml:"complement_cap"`
	SoftSkillsDivisor int         `yaml:"soft_skills_divisor"`
	SoftSkillsCap     int         `yaml:"soft_skills_cap"`
	// ReasonTerms limits how many matched terms are listed in a single reason.
	// Zero lists all of them.
	ReasonTerms int `yaml:"reason_terms"`
}

// DefaultPolicy returns the production weights.
func DefaultPolicy() Policy {
	return Policy{
		Base:              40,
		Location:          20,
		Verified:          12,
		ChildAge:          10,
		Schedule:          6,
		RequirementWeight: 6,
		RequirementCap:    18,
		StyleCap:          18,
		StyleRules: []StyleRule{
			{Signal: SignalFamilyStyle, Parent: "warm", Candidate: "gentle", Weight: 8},
			{Signal: SignalFamilyStyle, Parent: "structured", Candidate: "firm", Weight: 8},
			{Signal: SignalFamilyStyle, Parent: "relaxed", Candidate: "flexible", Weight: 6},
			{Signal: SignalDiscipline, Parent: AnyValue, Candidate: AnyValue, Weight: 6},
			{Signal: SignalCommunication, Parent: AnyValue, Candidate: AnyValue, Weight: 4},
			{Signal: SignalStress, Parent: "anxious", Candidate: "calming", Weight: 8},
			{Signal: SignalStress, Parent: "withdrawn", Candidate: "patient", Weight: 6},
			{Signal: SignalStress, Parent: "explosive", Candidate: "calm", Weight: 8},
			{Signal: SignalPersonality, Parent: AnyValue, Candidate: AnyValue, Weight: 5},
		},
		ComplementWeight:  6,
		ComplementCap:     12,
		SoftSkillsDivisor: 20,
		SoftSkillsCap:     8,
		ReasonTerms:       2,
	}
}

// LoadPolicy reads a YAML policy file on top of DefaultPolicy. Keys missing
// from the file keep their default values; a style_rules list replaces the
// default table as a whole.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()

	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("read scoring policy %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("parse scoring policy %q: %w", path, err)
	}

	if err := policy.Validate(); err != nil {
		return policy, fmt.Errorf("scoring policy %q: %w", path, err)
	}

	return policy, nil
}

// Validate checks that the policy can be applied.
func (p Policy) Validate() error {
	var errs []error

	nonNegative := map[string]int{
		"base":               p.Base,
		"location":           p.Location,
		"verified":           p.Verified,
		"child_age":          p.ChildAge,
		"schedule":           p.Schedule,
		"requirement_weight": p.RequirementWeight,
		"requirement_cap":    p.RequirementCap,
		"style_cap":          p.StyleCap,
		"complement_weight":  p.ComplementWeight,
		"complement_cap":     p.ComplementCap,
		"soft_skills_cap":    p.SoftSkillsCap,
		"reason_terms":       p.ReasonTerms,
	}
	for _, key := range sortedKeys(nonNegative) {
		if nonNegative[key] < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", key))
		}
	}

	if p.SoftSkillsDivisor <= 0 {
		errs = append(errs, errors.New("soft_skills_divisor must be positive"))
	}

	for i, rule := range p.StyleRules {
		switch rule.Signal {
		case SignalFamilyStyle, SignalDiscipline, SignalCommunication, SignalStress, SignalPersonality:
		default:
			errs = append(errs, fmt.Errorf("style_rules[%d]: unknown signal %q", i, rule.Signal))
		}
		if rule.Weight < 0 {
			errs = append(errs, fmt.Errorf("style_rules[%d]: weight must not be negative", i))
		}
		if rule.Parent == "" || rule.Candidate == "" {
			errs = append(errs, fmt.Errorf("style_rules[%d]: parent and candidate values are required", i))
		}
	}

	return errors.Join(errs...)
}
