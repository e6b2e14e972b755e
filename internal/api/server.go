// Package api exposes request moderation, nanny registration and matching
// over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spigell/nanny-match/internal/domain"
	"github.com/spigell/nanny-match/internal/lifecycle"
	"github.com/spigell/nanny-match/internal/logger"
	"github.com/spigell/nanny-match/internal/metrics"
)

const maxBodyBytes = 1 << 20

// Requests is the request lifecycle.
type Requests interface {
	Create(ctx context.Context, in lifecycle.CreateInput) (domain.ParentRequest, error)
	Update(ctx context.Context, id string, patch lifecycle.Patch, opts lifecycle.UpdateOptions) (domain.ParentRequest, error)
	Review(ctx context.Context, id string) (domain.ParentRequest, error)
	Approve(ctx context.Context, id, note string) (domain.ParentRequest, error)
	Reject(ctx context.Context, id, reason string) (domain.ParentRequest, error)
	Resubmit(ctx context.Context, id string) (domain.ParentRequest, error)
	Get(ctx context.Context, id string) (domain.ParentRequest, error)
	List(ctx context.Context) ([]domain.ParentRequest, error)
}

type Nannies interface {
	Save(ctx context.Context, nanny domain.NannyProfile) (domain.NannyProfile, error)
	List(ctx context.Context) ([]domain.NannyProfile, error)
}

type Matcher interface {
	FindBestMatchDetailed(ctx context.Context, req domain.ParentRequest, candidates []domain.NannyProfile) (domain.MatchResult, []domain.RankedCandidate)
}

// Clearer wipes one collection.
type Clearer interface {
	Collection() string
	Clear(ctx context.Context, testOnly bool) (int, error)
}

type Deps struct {
	Requests Requests
	Nannies  Nannies
	Matcher  Matcher
	Clearers []Clearer
	Metrics  *metrics.Manager
	Logger   *zap.Logger
}

type Server struct {
	requests Requests
	nannies  Nannies
	matcher  Matcher
	clearers []Clearer
	metrics  *metrics.Manager
	logger   *zap.Logger
}

func New(deps Deps) *Server {
	return &Server{
		requests: deps.Requests,
		nannies:  deps.Nannies,
		matcher:  deps.Matcher,
		clearers: deps.Clearers,
		metrics:  deps.Metrics,
		logger:   logger.WithFields(deps.Logger),
	}
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)
	r.Use(limitBody)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/requests", func(r chi.Router) {
		r.Post("/", s.createRequest)
		r.Get("/", s.listRequests)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getRequest)
			r.Patch("/", s.updateRequest)
			r.Post("/review", s.reviewRequest)
			r.Post("/approve", s.approveRequest)
			r.Post("/reject", s.rejectRequest)
			r.Post("/resubmit", s.resubmitRequest)
			r.Post("/match", s.matchRequest)
		})
	})

	r.Route("/nannies", func(r chi.Router) {
		r.Post("/", s.saveNanny)
		r.Get("/", s.listNannies)
	})

	r.Delete("/data", s.clearData)

	return r
}

// NewHTTPServer wraps handler with the timeouts used in production.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Matching may wait for the text generator.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(started)),
			zap.String("request_uid", middleware.GetReqID(r.Context())),
		)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}
