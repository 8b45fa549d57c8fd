package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flood_dashboard"

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard.
type Metrics struct {
	// Backend client metrics.
	BackendRequests *prometheus.CounterVec   // labels: endpoint={stations,predict,history,evaluate}, outcome={success,error,malformed,rejected}
	BackendDuration *prometheus.HistogramVec // labels: endpoint
	BreakerOpen     prometheus.Gauge

	// Orchestration metrics.
	Selections     prometheus.Counter
	StaleResponses *prometheus.CounterVec // labels: kind={prediction,history}
	ActiveSessions prometheus.Gauge

	// Activity event metrics.
	EventsPublished   prometheus.Counter
	EventPublishFails prometheus.Counter
	EventsEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all dashboard metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Prediction backend requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Prediction backend request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		BreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_breaker_open",
			Help:      "1 when the backend circuit breaker is open, 0 otherwise.",
		}),
		Selections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Station selections that started a prediction.",
		}),
		StaleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer selection superseded them.",
		}, []string{"kind"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Dashboard sessions currently held in memory.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Activity events written to the events topic.",
		}),
		EventPublishFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Activity events that failed to publish.",
		}),
		EventsEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_enabled",
			Help:      "1 when activity event publishing is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.BackendRequests,
		m.BackendDuration,
		m.BreakerOpen,
		m.Selections,
		m.StaleResponses,
		m.ActiveSessions,
		m.EventsPublished,
		m.EventPublishFails,
		m.EventsEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		BackendRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "backend_requests_total"}, []string{"endpoint", "outcome"}),
		BackendDuration:   prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "backend_request_duration_seconds"}, []string{"endpoint"}),
		BreakerOpen:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "backend_breaker_open"}),
		Selections:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "selections_total"}),
		StaleResponses:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "stale_responses_total"}, []string{"kind"}),
		ActiveSessions:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "active_sessions"}),
		EventsPublished:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "events_published_total"}),
		EventPublishFails: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "event_publish_errors_total"}),
		EventsEnabled:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "events_enabled"}),
	}
}
