package matching

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/nanny-match/internal/domain"
	"github.com/spigell/nanny-match/internal/metrics"
)

type stubGenerator struct {
	mu      sync.Mutex
	resp    string
	err     error
	block   bool
	panics  bool
	calls   int
	prompts []string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	if s.panics {
		panic("boom")
	}
	if s.block {
		// Ignores ctx on purpose.
		time.Sleep(2 * time.Second)
	}
	return s.resp, s.err
}

func (s *stubGenerator) Model() string { return "stub-model" }

func shortlistOf(n int) []domain.RankedCandidate {
	out := make([]domain.RankedCandidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.RankedCandidate{
			Nanny:   domain.NannyProfile{ID: "n" + string(rune('a'+i%26)) + strings.Repeat("x", i/26), Name: "Nanny"},
			Score:   90 - i,
			Reasons: []string{"location match"},
		})
	}
	return out
}

func topCandidate() []domain.RankedCandidate {
	return []domain.RankedCandidate{
		{
			Nanny:   domain.NannyProfile{ID: "n1", Name: "Anna", City: "Moscow"},
			Score:   88,
			Reasons: []string{"location match", "profile verified"},
		},
		{
			Nanny: domain.NannyProfile{ID: "n2", Name: "Olga"},
			Score: 60,
		},
	}
}

func assertValidResult(t *testing.T, res domain.MatchResult) {
	t.Helper()
	if len(res.Recommendations) != domain.RecommendationsCount {
		t.Fatalf("expected %d recommendations, got %d", domain.RecommendationsCount, len(res.Recommendations))
	}
	for i, r := range res.Recommendations {
		if strings.TrimSpace(r) == "" {
			t.Fatalf("recommendation %d is empty", i)
		}
	}
	if res.MatchScore < 0 || res.MatchScore > 100 {
		t.Fatalf("match score out of range: %d", res.MatchScore)
	}
}

func TestRefineUsesValidResponse(t *testing.T) {
	gen := &stubGenerator{resp: `{"matchScore": 91, "recommendations": ["Meet Anna", "Discuss pets", "Agree on evenings"]}`}
	r := NewRefiner(gen, zap.NewNop())

	res := r.Refine(context.Background(), domain.ParentRequest{ID: "r1", City: "Moscow"}, topCandidate())

	if res.Source != domain.MatchSourceAI || res.MatchScore != 91 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Recommendations[0] != "Meet Anna" || res.Recommendations[2] != "Agree on evenings" {
		t.Fatalf("recommendations must be used verbatim, got %v", res.Recommendations)
	}
	if gen.calls != 1 {
		t.Fatalf("expected a single call, got %d", gen.calls)
	}
}

func TestRefineFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		gen     *stubGenerator
		outcome string
	}{
		{name: "generator error", gen: &stubGenerator{err: errors.New("503")}, outcome: metrics.RefineError},
		{name: "not json", gen: &stubGenerator{resp: "I think Anna is great"}, outcome: metrics.RefineInvalid},
		{name: "two recommendations", gen: &stubGenerator{resp: `{"matchScore": 80, "recommendations": ["a", "b"]}`}, outcome: metrics.RefineInvalid},
		{name: "four recommendations", gen: &stubGenerator{resp: `{"matchScore": 80, "recommendations": ["a", "b", "c", "d"]}`}, outcome: metrics.RefineInvalid},
		{name: "blank recommendation", gen: &stubGenerator{resp: `{"matchScore": 80, "recommendations": ["a", "  ", "c"]}`}, outcome: metrics.RefineInvalid},
		{name: "non string recommendation", gen: &stubGenerator{resp: `{"matchScore": 80, "recommendations": ["a", 2, "c"]}`}, outcome: metrics.RefineInvalid},
		{name: "missing score", gen: &stubGenerator{resp: `{"recommendations": ["a", "b", "c"]}`}, outcome: metrics.RefineInvalid},
		{name: "non numeric score", gen: &stubGenerator{resp: `{"matchScore": "high", "recommendations": ["a", "b", "c"]}`}, outcome: metrics.RefineInvalid},
		{name: "panic", gen: &stubGenerator{panics: true}, outcome: metrics.RefineError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, observed := observer.New(zapcore.WarnLevel)
			m := metrics.New()
			r := NewRefiner(tt.gen, zap.New(core), WithMetrics(m))

			shortlist := topCandidate()
			res := r.Refine(context.Background(), domain.ParentRequest{ID: "r1"}, shortlist)

			assertValidResult(t, res)
			want := Fallback(shortlist)
			if res.Source != domain.MatchSourceHeuristic || res.MatchScore != want.MatchScore {
				t.Fatalf("expected fallback, got %+v", res)
			}
			if strings.Join(res.Recommendations, "|") != strings.Join(want.Recommendations, "|") {
				t.Fatalf("expected fallback recommendations, got %v", res.Recommendations)
			}

			entries := observed.FilterMessage("using heuristic match").All()
			if len(entries) != 1 {
				t.Fatalf("expected one warning, got %d", len(entries))
			}
			if got := entries[0].ContextMap()["reason"]; got != tt.outcome {
				t.Fatalf("expected reason %q, got %v", tt.outcome, got)
			}

			expected := `
# HELP nanny_match_refiner_results_total Match refinements by outcome.
# TYPE nanny_match_refiner_results_total counter
nanny_match_refiner_results_total{outcome="` + tt.outcome + `"} 1
`
			if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "nanny_match_refiner_results_total"); err != nil {
				t.Fatalf("unexpected refine metrics: %v", err)
			}
		})
	}
}

func TestRefineAcceptsWrappedJSON(t *testing.T) {
	tests := []struct {
		name string
		resp string
		want int
	}{
		{name: "fenced", resp: "```json\n{\"matchScore\": 77, \"recommendations\": [\"a\", \"b\", \"c\"]}\n```", want: 77},
		{name: "prose", resp: "Sure! Here it is: {\"matchScore\": \"64\", \"recommendations\": [\"a\", \"b\", \"c\"]} Hope this helps.", want: 64},
		{name: "above range", resp: `{"matchScore": 140, "recommendations": ["a", "b", "c"]}`, want: 100},
		{name: "below range", resp: `{"matchScore": -3, "recommendations": ["a", "b", "c"]}`, want: 0},
		{name: "fractional", resp: `{"matchScore": 72.6, "recommendations": ["a", "b", "c"]}`, want: 73},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRefiner(&stubGenerator{resp: tt.resp}, nil)
			res := r.Refine(context.Background(), domain.ParentRequest{}, topCandidate())

			if res.Source != domain.MatchSourceAI {
				t.Fatalf("expected ai result, got %+v", res)
			}
			if res.MatchScore != tt.want {
				t.Fatalf("expected score %d, got %d", tt.want, res.MatchScore)
			}
		})
	}
}

func TestRefineTimeoutWithGeneratorIgnoringContext(t *testing.T) {
	gen := &stubGenerator{block: true, resp: `{"matchScore": 90, "recommendations": ["a", "b", "c"]}`}
	r := NewRefiner(gen, zap.NewNop(), WithTimeout(50*time.Millisecond))

	started := time.Now()
	res := r.Refine(context.Background(), domain.ParentRequest{}, topCandidate())

	if took := time.Since(started); took > time.Second {
		t.Fatalf("refine blocked for %s", took)
	}
	if res.Source != domain.MatchSourceHeuristic {
		t.Fatalf("expected fallback on timeout, got %+v", res)
	}
	assertValidResult(t, res)
}

func TestRefineWithoutGenerator(t *testing.T) {
	r := NewRefiner(nil, nil)

	res := r.Refine(context.Background(), domain.ParentRequest{}, topCandidate())
	if res.Source != domain.MatchSourceHeuristic || res.MatchScore != 88 {
		t.Fatalf("unexpected result: %+v", res)
	}
	assertValidResult(t, res)
}

func TestRefineEmptyShortlistSkipsCall(t *testing.T) {
	gen := &stubGenerator{resp: `{"matchScore": 90, "recommendations": ["a", "b", "c"]}`}
	r := NewRefiner(gen, nil)

	res := r.Refine(context.Background(), domain.ParentRequest{}, nil)

	if gen.calls != 0 {
		t.Fatalf("expected no call, got %d", gen.calls)
	}
	if res.MatchScore != 0 || res.Source != domain.MatchSourceHeuristic {
		t.Fatalf("unexpected result: %+v", res)
	}
	assertValidResult(t, res)
}

func TestRefinePromptIsBounded(t *testing.T) {
	gen := &stubGenerator{resp: `{"matchScore": 90, "recommendations": ["a", "b", "c"]}`}
	r := NewRefiner(gen, nil, WithMaxCandidates(25))

	shortlist := shortlistOf(30)
	r.Refine(context.Background(), domain.ParentRequest{City: "Kazan"}, shortlist)

	prompt := gen.prompts[0]
	if !strings.Contains(prompt, `"heuristicScore": 90`) {
		t.Fatalf("prompt misses the first candidate")
	}
	if got := strings.Count(prompt, `"heuristicScore"`); got != 25 {
		t.Fatalf("expected 25 candidates in prompt, got %d", got)
	}
	if !strings.Contains(prompt, `"city": "Kazan"`) {
		t.Fatalf("prompt misses the request")
	}
	if strings.Contains(prompt, "{{") {
		t.Fatalf("prompt has unresolved placeholders")
	}
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name      string
		shortlist []domain.RankedCandidate
		score     int
		first     string
		second    string
	}{
		{name: "empty", shortlist: nil, score: 0, first: noCandidatesAdvice[0], second: noCandidatesAdvice[1]},
		{
			name:      "clamped up",
			shortlist: []domain.RankedCandidate{{Nanny: domain.NannyProfile{ID: "n1", Name: "Anna"}, Score: 40}},
			score:     55,
			first:     "Best match: Anna (score 40).",
			second:    "Key reason: strong overall fit for your family.",
		},
		{
			name:      "clamped down",
			shortlist: []domain.RankedCandidate{{Nanny: domain.NannyProfile{ID: "n1"}, Score: 100, Reasons: []string{"location match"}}},
			score:     98,
			first:     "Best match: n1 (score 100).",
			second:    "Key reason: location match.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Fallback(tt.shortlist)
			assertValidResult(t, res)
			if res.MatchScore != tt.score {
				t.Fatalf("expected score %d, got %d", tt.score, res.MatchScore)
			}
			if res.Recommendations[0] != tt.first || res.Recommendations[1] != tt.second {
				t.Fatalf("unexpected recommendations: %v", res.Recommendations)
			}
		})
	}

	a := Fallback(nil)
	a.Recommendations[0] = "changed"
	if Fallback(nil).Recommendations[0] == "changed" {
		t.Fatal("fallback must not share recommendation slices")
	}
}
