package matching

import (
	"fmt"
	"strings"

	"github.com/spigell/nanny-match/internal/domain"
)

const (
	fallbackFloor   = 55
	fallbackCeiling = 98
)

var noCandidatesAdvice = [domain.RecommendationsCount]string{
	"No exact match yet: widen the search area or relax the schedule.",
	"List the two or three requirements that matter most and drop the rest.",
	"Check back later, new verified nannies join every week.",
}

// Fallback builds the deterministic result from a ranked shortlist. It never
// returns shared slices.
func Fallback(shortlist []domain.RankedCandidate) domain.MatchResult {
	if len(shortlist) == 0 {
		return domain.MatchResult{
			MatchScore:      0,
			Recommendations: append([]string(nil), noCandidatesAdvice[:]...),
			Source:          domain.MatchSourceHeuristic,
		}
	}

	top := shortlist[0]
	name := top.Nanny.DisplayName()

	reason := "strong overall fit for your family"
	if len(top.Reasons) > 0 && strings.TrimSpace(top.Reasons[0]) != "" {
		reason = top.Reasons[0]
	}

	return domain.MatchResult{
		MatchScore: clamp(top.Score, fallbackFloor, fallbackCeiling),
		Recommendations: []string{
			fmt.Sprintf("Best match: %s (score %d).", name, top.Score),
			fmt.Sprintf("Key reason: %s.", reason),
			fmt.Sprintf("Book an intro call with %s to confirm the schedule.", name),
		},
		Source: domain.MatchSourceHeuristic,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
