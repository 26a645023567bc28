// Package metrics exposes Prometheus collectors for the evaluation service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels one summarization attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
	// OutcomeSkipped is recorded when there was nothing to summarize.
	OutcomeSkipped Outcome = "skipped"
)

const namespace = "evaluations"

// Option configures a Manager.
type Option func(*Manager)

// WithRegistry registers collectors on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Manager) { m.registry = reg }
}

// WithBuckets overrides the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(m *Manager) { m.buckets = buckets }
}

// Manager owns the collectors. A nil *Manager is valid and records nothing.
type Manager struct {
	registry *prometheus.Registry
	buckets  []float64

	summaries           *prometheus.CounterVec
	summaryDuration     prometheus.Histogram
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates collectors on a fresh registry unless one is supplied.
func NewManager(opts ...Option) *Manager {
	m := &Manager{buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(m.registry)
	m.summaries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "summaries_total",
		Help:      "Summarization attempts by outcome",
	}, []string{"outcome"})
	m.summaryDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "summary_duration_seconds",
		Help:      "Time spent waiting for the summarization backend",
		Buckets:   m.buckets,
	})
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route",
		Buckets:   m.buckets,
	}, []string{"method", "route"})

	return m
}

// ObserveSummary records one summarization outcome. Skipped attempts carry no
// duration.
func (m *Manager) ObserveSummary(outcome Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.summaries.WithLabelValues(string(outcome)).Inc()
	if outcome != OutcomeSkipped {
		m.summaryDuration.Observe(elapsed.Seconds())
	}
}

// ObserveRequest records one served HTTP request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Manager) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Registry returns the registry backing the collectors.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format for the manager's registry.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
