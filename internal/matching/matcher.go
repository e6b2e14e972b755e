package matching

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/nanny-match/internal/domain"
	"github.com/spigell/nanny-match/internal/logger"
	"github.com/spigell/nanny-match/internal/metrics"
	"github.com/spigell/nanny-match/internal/ranking"
)

// Matcher combines ranking and refinement.
type Matcher struct {
	ranker  *ranking.Ranker
	refiner *Refiner
	logger  *zap.Logger
	metrics *metrics.Manager
}

// NewMatcher returns a Matcher. log and m may be nil.
func NewMatcher(ranker *ranking.Ranker, refiner *Refiner, log *zap.Logger, m *metrics.Manager) *Matcher {
	return &Matcher{
		ranker:  ranker,
		refiner: refiner,
		logger:  logger.WithFields(log),
		metrics: m,
	}
}

// FindBestMatch ranks candidates for req and refines the shortlist.
func (m *Matcher) FindBestMatch(ctx context.Context, req domain.ParentRequest, candidates []domain.NannyProfile) domain.MatchResult {
	result, _ := m.FindBestMatchDetailed(ctx, req, candidates)
	return result
}

// FindBestMatchDetailed is FindBestMatch that also returns the shortlist the
// result was derived from.
func (m *Matcher) FindBestMatchDetailed(ctx context.Context, req domain.ParentRequest, candidates []domain.NannyProfile) (domain.MatchResult, []domain.RankedCandidate) {
	ranked := m.ranker.Rank(req, candidates)
	shortlist := m.ranker.Shortlist(ranked)
	m.metrics.ObserveShortlist(len(shortlist))

	fields := append(logger.RequestFields(req.ID, ""), zap.Int("candidates", len(candidates)), zap.Int("shortlist", len(shortlist)))
	if len(shortlist) > 0 {
		fields = append(fields, zap.String("top_candidate", shortlist[0].Nanny.ID), zap.Int("top_score", shortlist[0].Score))
	}
	m.logger.Debug("ranked candidates", fields...)

	result := m.refiner.Refine(ctx, req, shortlist)

	m.logger.Info("match found", append(logger.RequestFields(req.ID, ""),
		zap.Int("match_score", result.MatchScore),
		zap.String("source", string(result.Source)),
	)...)

	return result, shortlist
}
