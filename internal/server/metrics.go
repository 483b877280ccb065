package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the workflow service.
// Each Service carries its own registry so tests never collide on the
// global one.
type Metrics struct {
	registry *prometheus.Registry

	workflowRuns  *prometheus.CounterVec
	runDuration   prometheus.Histogram
	fetchFailures prometheus.Counter
}

// NewMetrics creates the instruments on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		workflowRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inboxpilot",
			Name:      "workflow_runs_total",
			Help:      "Completed workflow runs by final action.",
		}, []string{"action"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "inboxpilot",
			Name:      "workflow_run_duration_seconds",
			Help:      "Wall-clock duration of workflow runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		fetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "inboxpilot",
			Name:      "inbox_fetch_failures_total",
			Help:      "Inbox fetch attempts that returned an error.",
		}),
	}
}

// ObserveRun records one completed workflow run.
func (m *Metrics) ObserveRun(action string, duration time.Duration) {
	m.workflowRuns.WithLabelValues(action).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// ObserveFetchFailure records a failed inbox fetch.
func (m *Metrics) ObserveFetchFailure() {
	m.fetchFailures.Inc()
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
