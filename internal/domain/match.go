package domain

// RankedCandidate is a scored nanny. It is produced per match request and
// never persisted.
type RankedCandidate struct {
	Nanny   NannyProfile `json:"nanny"`
	Score   int          `json:"score"`
	Reasons []string     `json:"reasons"`
}

// MatchSource tells whether a result was refined by the text generator.
type MatchSource string

const (
	MatchSourceAI        MatchSource = "ai"
	MatchSourceHeuristic MatchSource = "heuristic"
)

// RecommendationsCount is the exact number of recommendations in a MatchResult.
const RecommendationsCount = 3

// MatchResult is the terminal output shown to the parent.
type MatchResult struct {
	MatchScore      int         `json:"matchScore"`
	Recommendations []string    `json:"recommendations"`
	Source          MatchSource `json:"source"`
}
