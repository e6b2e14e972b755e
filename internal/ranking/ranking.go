// Package ranking orders candidates by heuristic score.
package ranking

import (
	"slices"

	"github.com/spigell/nanny-match/internal/domain"
)

// DefaultShortlistSize bounds the number of candidates passed to refinement.
const DefaultShortlistSize = 25

// Scorer scores a single (request, candidate) pair.
type Scorer interface {
	Score(req domain.ParentRequest, nanny domain.NannyProfile) (int, []string)
}

// Ranker applies a Scorer over a candidate set.
type Ranker struct {
	scorer        Scorer
	shortlistSize int
}

// New creates a Ranker. A non-positive shortlistSize selects DefaultShortlistSize.
func New(scorer Scorer, shortlistSize int) *Ranker {
	if shortlistSize <= 0 {
		shortlistSize = DefaultShortlistSize
	}
	return &Ranker{scorer: scorer, shortlistSize: shortlistSize}
}

// Rank scores every candidate and sorts them by score, highest first. Ties
// keep the input order. The result is never nil.
func (r *Ranker) Rank(req domain.ParentRequest, candidates []domain.NannyProfile) []domain.RankedCandidate {
	ranked := make([]domain.RankedCandidate, 0, len(candidates))
	for _, nanny := range candidates {
		score, reasons := r.scorer.Score(req, nanny)
		ranked = append(ranked, domain.RankedCandidate{
			Nanny:   nanny,
			Score:   score,
			Reasons: reasons,
		})
	}

	slices.SortStableFunc(ranked, func(a, b domain.RankedCandidate) int {
		return b.Score - a.Score
	})

	return ranked
}

// Shortlist returns the configured prefix of an already ranked list.
func (r *Ranker) Shortlist(ranked []domain.RankedCandidate) []domain.RankedCandidate {
	return Shortlist(ranked, r.shortlistSize)
}

// Shortlist returns at most n leading candidates. A non-positive n selects
// DefaultShortlistSize.
func Shortlist(ranked []domain.RankedCandidate, n int) []domain.RankedCandidate {
	if n <= 0 {
		n = DefaultShortlistSize
	}
	if len(ranked) <= n {
		return ranked
	}
	return ranked[:n]
}
