// Package scoring computes the heuristic compatibility between a parent
// request and a nanny profile.
package scoring

import (
	"math"
	"strings"

	"github.com/spigell/nanny-match/internal/domain"
)

const (
	minScore = 0
	maxScore = 100
)

// Reasons reported by Score, in rule order.
const (
	ReasonLocation   = "location match"
	ReasonVerified   = "profile verified"
	ReasonChildAge   = "child age fit"
	ReasonSchedule   = "schedule fit"
	ReasonStyle      = "family style match"
	ReasonSoftSkills = "has AI soft-skills score"
)

const (
	requirementsReasonPrefix = "requirements: "
	complementReasonPrefix   = "complements family: "
)

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithPolicy replaces the default policy. Policies that bypassed
// Validate still score: a non-positive divisor disables the soft-skills
// bonus.
func WithPolicy(p Policy) Option {
	return func(m *Model) {
		m.policy = p
	}
}

// Model scores a single (request, candidate) pair. It is a pure function of
// its inputs and the policy.
type Model struct {
	policy Policy
}

// New creates a Model with DefaultPolicy unless overridden.
func New(opts ...Option) *Model {
	m := &Model{policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the active policy.
func (m *Model) Policy() Policy {
	return m.policy
}

// Score returns the clamped score and the reasons in rule order.
func (m *Model) Score(req domain.ParentRequest, nanny domain.NannyProfile) (int, []string) {
	p := m.policy
	text := profileText(nanny)

	score := p.Base
	reasons := make([]string, 0, 8)

	if cityOverlap(req.City, nanny.City) {
		score += p.Location
		reasons = append(reasons, ReasonLocation)
	}

	if nanny.IsVerified {
		score += p.Verified
		reasons = append(reasons, ReasonVerified)
	}

	if age := normalize(req.ChildAge); age != "" && childAgeFits(age, nanny) {
		score += p.ChildAge
		reasons = append(reasons, ReasonChildAge)
	}

	if schedule := normalize(req.Schedule); schedule != "" && strings.Contains(text, schedule) {
		score += p.Schedule
		reasons = append(reasons, ReasonSchedule)
	}

	if matched := matchedRequirements(req.Requirements, text); len(matched) > 0 {
		score += min(len(matched)*p.RequirementWeight, p.RequirementCap)
		reasons = append(reasons, requirementsReasonPrefix+strings.Join(firstN(matched, p.ReasonTerms), ", "))
	}

	if style := m.styleBonus(req.RiskProfile, nanny.RiskProfile); style > 0 {
		score += style
		reasons = append(reasons, ReasonStyle)
	}

	if traits := complementaryTraits(req.RiskProfile, nanny.RiskProfile); len(traits) > 0 {
		score += min(len(traits)*p.ComplementWeight, p.ComplementCap)
		reasons = append(reasons, complementReasonPrefix+strings.Join(firstN(traits, p.ReasonTerms), ", "))
	}

	if nanny.SoftSkills != nil {
		score += m.softSkillsBonus(nanny.SoftSkills.RawScore)
		reasons = append(reasons, ReasonSoftSkills)
	}

	return clamp(score, minScore, maxScore), reasons
}

func (m *Model) styleBonus(parent *domain.ParentRiskProfile, nanny *domain.NannyRiskProfile) int {
	if parent == nil || nanny == nil {
		return 0
	}

	total := 0
	for _, rule := range m.policy.StyleRules {
		parentValue, candidateValue := signalValues(rule.Signal, parent, nanny)
		if ruleMatches(rule, parentValue, candidateValue) {
			total += rule.Weight
		}
	}

	return min(total, m.policy.StyleCap)
}

func (m *Model) softSkillsBonus(raw int) int {
	if raw <= 0 || m.policy.SoftSkillsDivisor <= 0 {
		return 0
	}
	bonus := int(math.Round(float64(raw) / float64(m.policy.SoftSkillsDivisor)))
	return min(bonus, m.policy.SoftSkillsCap)
}

func signalValues(signal Signal, parent *domain.ParentRiskProfile, nanny *domain.NannyRiskProfile) (string, string) {
	switch signal {
	case SignalFamilyStyle:
		return parent.FamilyStyle, nanny.DisciplineStyle
	case SignalDiscipline:
		return parent.DisciplineTone, nanny.DisciplineStyle
	case SignalCommunication:
		return parent.Communication, nanny.Communication
	case SignalStress:
		return parent.StressResponse, nanny.StressResponse
	case SignalPersonality:
		return parent.PersonalityType, nanny.PersonalityType
	default:
		return "", ""
	}
}

func ruleMatches(rule StyleRule, parentValue, candidateValue string) bool {
	parentValue = normalize(parentValue)
	candidateValue = normalize(candidateValue)
	if parentValue == "" || candidateValue == "" {
		return false
	}

	if rule.Parent != AnyValue && normalize(rule.Parent) != parentValue {
		return false
	}

	if rule.Candidate == AnyValue {
		return candidateValue == parentValue
	}

	return normalize(rule.Candidate) == candidateValue
}

func cityOverlap(requestCity, nannyCity string) bool {
	a, b := normalize(requestCity), normalize(nannyCity)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func childAgeFits(age string, nanny domain.NannyProfile) bool {
	for _, group := range nanny.ChildAges {
		if strings.Contains(normalize(group), age) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(nanny.About), age)
}

func matchedRequirements(requirements []string, text string) []string {
	var matched []string
	for _, term := range uniqueTerms(requirements) {
		if strings.Contains(text, strings.ToLower(term)) {
			matched = append(matched, term)
		}
	}
	return matched
}

func complementaryTraits(parent *domain.ParentRiskProfile, nanny *domain.NannyRiskProfile) []string {
	if parent == nil || nanny == nil {
		return nil
	}

	var matched []string
	for _, trait := range uniqueTerms(parent.MissingTraits) {
		if containsFold(nanny.Strengths, strings.ToLower(trait)) {
			matched = append(matched, trait)
		}
	}
	return matched
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
