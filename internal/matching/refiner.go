// Package matching turns a ranked shortlist into the result shown to a parent,
// optionally refined by a text-generation model.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/nanny-match/internal/ai"
	"github.com/spigell/nanny-match/internal/domain"
	"github.com/spigell/nanny-match/internal/logger"
	"github.com/spigell/nanny-match/internal/metrics"
	"github.com/spigell/nanny-match/internal/util"
)

const (
	DefaultTimeout       = 20 * time.Second
	DefaultMaxCandidates = 25
	defaultMaxLogLength  = 200
)

// RefinerOption configures a Refiner.
type RefinerOption func(*Refiner)

// WithTimeout bounds the generation call. Non-positive values are ignored.
func WithTimeout(d time.Duration) RefinerOption {
	return func(r *Refiner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxLogLength limits prompt and response previews in debug logs.
func WithMaxLogLength(n int) RefinerOption {
	return func(r *Refiner) {
		if n > 0 {
			r.maxLogLen = n
		}
	}
}

// WithMaxCandidates limits how many shortlisted candidates are sent to the model.
func WithMaxCandidates(n int) RefinerOption {
	return func(r *Refiner) {
		if n > 0 {
			r.maxCandidates = n
		}
	}
}

// WithMetrics records refinement outcomes and latency.
func WithMetrics(m *metrics.Manager) RefinerOption {
	return func(r *Refiner) {
		r.metrics = m
	}
}

// Refiner polishes a shortlist into a MatchResult. A nil generator disables
// refinement and every call yields the heuristic fallback.
type Refiner struct {
	generator     ai.Generator
	logger        *zap.Logger
	metrics       *metrics.Manager
	timeout       time.Duration
	maxLogLen     int
	maxCandidates int
}

// NewRefiner returns a Refiner. A nil generator is allowed.
func NewRefiner(generator ai.Generator, log *zap.Logger, opts ...RefinerOption) *Refiner {
	r := &Refiner{
		generator:     generator,
		logger:        logger.WithFields(log),
		timeout:       DefaultTimeout,
		maxLogLen:     defaultMaxLogLength,
		maxCandidates: DefaultMaxCandidates,
	}
	for _, opt := range opts {
		opt(r)
	}

	if generator != nil {
		r.logger = logger.WithCommonFields(r.logger, ai.ProviderGemini, generator.Model())
	}

	return r
}

// Refine never fails: any problem with the generator yields the heuristic
// fallback, which is computed before the call is attempted.
func (r *Refiner) Refine(ctx context.Context, req domain.ParentRequest, shortlist []domain.RankedCandidate) domain.MatchResult {
	fallback := Fallback(shortlist)
	log := logger.WithFields(r.logger, logger.RequestFields(req.ID, "")...)

	if r.generator == nil {
		r.metrics.RecordRefine(metrics.RefineDisabled, 0)
		return fallback
	}

	if len(shortlist) == 0 {
		log.Debug("skipping refinement", zap.String("reason", "empty shortlist"))
		r.metrics.RecordRefine(metrics.RefineEmpty, 0)
		return fallback
	}

	prompt, err := buildPrompt(req, shortlist, r.maxCandidates)
	if err != nil {
		log.Warn("using heuristic match", zap.String("reason", "prompt"), zap.Error(err))
		r.metrics.RecordRefine(metrics.RefineError, 0)
		return fallback
	}

	log.Debug("match refinement request",
		zap.Int("candidates", min(len(shortlist), r.maxCandidates)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", util.TruncateForLog(prompt, r.maxLogLen)),
	)

	started := time.Now()
	raw, err := r.generate(ctx, prompt)
	took := time.Since(started)

	if err != nil {
		outcome := metrics.RefineError
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.RefineTimeout
		}
		log.Warn("using heuristic match",
			zap.String("reason", outcome),
			zap.Duration("took", took),
			zap.Error(err),
		)
		r.metrics.RecordRefine(outcome, took)
		return fallback
	}

	log.Debug("match refinement response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", util.TruncateForLog(raw, r.maxLogLen)),
	)

	result, err := parseResponse(raw)
	if err != nil {
		log.Warn("using heuristic match",
			zap.String("reason", metrics.RefineInvalid),
			zap.String("response_preview", util.TruncateForLog(raw, r.maxLogLen)),
			zap.Error(err),
		)
		r.metrics.RecordRefine(metrics.RefineInvalid, took)
		return fallback
	}

	r.metrics.RecordRefine(metrics.RefineAI, took)
	return result
}

type generation struct {
	text string
	err  error
}

// generate runs the call in its own goroutine so a generator that ignores
// ctx still cannot hold the caller past the timeout.
func (r *Refiner) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan generation, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- generation{err: fmt.Errorf("generator panicked: %v", p)}
			}
		}()
		text, err := r.generator.GenerateContent(ctx, prompt)
		done <- generation{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.text, res.err
	}
}
