// Package metrics provides Prometheus metrics for the matching service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultNamespace = "nanny_match"
)

// Refine outcomes.
const (
	RefineAI       = "ai"
	RefineDisabled = "disabled"
	RefineEmpty    = "empty"
	RefineError    = "error"
	RefineTimeout  = "timeout"
	RefineInvalid  = "invalid"
)

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithRegistry sets the registry metrics are registered in.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
}

// Manager owns every collector of the service. All recording methods are
// safe to call on a nil Manager.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	refineOutcomes   *prometheus.CounterVec
	refineLatency    prometheus.Histogram
	shortlistSize    prometheus.Histogram
	remoteFailures   *prometheus.CounterVec
	cacheCorruptions *prometheus.CounterVec
	requestChanges   *prometheus.CounterVec
}

// New creates a Manager on a dedicated registry unless WithRegistry is given.
func New(opts ...Option) *Manager {
	m := &Manager{
		namespace: defaultNamespace,
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.refineOutcomes = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "refiner",
		Name:      "results_total",
		Help:      "Match refinements by outcome.",
	}, []string{"outcome"})

	m.refineLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "refiner",
		Name:      "call_duration_seconds",
		Help:      "Duration of text generation calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	})

	m.shortlistSize = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "ranker",
		Name:      "shortlist_size",
		Help:      "Number of candidates passed to refinement.",
		Buckets:   []float64{0, 1, 5, 10, 15, 20, 25},
	})

	m.remoteFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "remote_failures_total",
		Help:      "Remote store calls that failed and fell back to the local cache.",
	}, []string{"collection", "op"})

	m.cacheCorruptions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "cache_corruptions_total",
		Help:      "Local cache payloads that failed to parse and were treated as empty.",
	}, []string{"collection"})

	m.requestChanges = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "lifecycle",
		Name:      "changes_total",
		Help:      "Audit trail entries appended, by change type.",
	}, []string{"type"})

	return m
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) RecordRefine(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.refineOutcomes.WithLabelValues(outcome).Inc()
	if took > 0 {
		m.refineLatency.Observe(took.Seconds())
	}
}

func (m *Manager) ObserveShortlist(size int) {
	if m == nil {
		return
	}
	m.shortlistSize.Observe(float64(size))
}

func (m *Manager) RecordRemoteFailure(collection, op string) {
	if m == nil {
		return
	}
	m.remoteFailures.WithLabelValues(collection, op).Inc()
}

func (m *Manager) RecordCacheCorruption(collection string) {
	if m == nil {
		return
	}
	m.cacheCorruptions.WithLabelValues(collection).Inc()
}

func (m *Manager) RecordChange(changeType string) {
	if m == nil {
		return
	}
	m.requestChanges.WithLabelValues(changeType).Inc()
}
