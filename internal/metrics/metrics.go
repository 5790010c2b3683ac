// Package metrics exposes prometheus collectors for access-object sessions and
// raw query execution. A nil *Registry is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session outcomes.
const (
	OutcomeCommitted     = "committed"
	OutcomeRolledBack    = "rolled_back"
	OutcomeConnectFailed = "connect_failed"
	OutcomeBeginFailed   = "begin_failed"
	OutcomeCommitFailed  = "commit_failed"
)

// Query outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Registry holds the collectors and the prometheus registry they live in.
type Registry struct {
	SessionsTotal   *prometheus.CounterVec
	SessionDuration *prometheus.HistogramVec
	QueriesTotal    *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates collectors under the given namespace in a fresh
// prometheus registry.
func NewRegistry(namespace string) *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}

	r.SessionsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Transactional sessions by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	r.SessionDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Transactional session duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"operation"},
	)

	r.QueriesTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Raw queries by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	return r
}

// Gatherer exposes the underlying registry for scraping.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveSession records one finished session.
func (r *Registry) ObserveSession(operation, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.SessionsTotal.WithLabelValues(operation, outcome).Inc()
	r.SessionDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveQuery records one raw query.
func (r *Registry) ObserveQuery(kind string, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	r.QueriesTotal.WithLabelValues(kind, outcome).Inc()
}
