// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchesTotal        *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CandidatesFetched    prometheus.Histogram
	CandidatesTruncated  prometheus.Counter
	ObservationsSampled  *prometheus.CounterVec
	SamplerRunDuration   prometheus.Histogram
	AnalyticsDropped     prometheus.Counter
	RateLimitRejected    prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg. Tests
// pass a private registry so repeated construction does not collide.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searches_total",
				Help: "Total ranking requests by mode (hybrid, composite) and outcome (ok, invalid_filter, upstream_error).",
			},
			[]string{"mode", "outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "End-to-end ranking latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"mode"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of items returned per result page.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CandidatesFetched: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_candidates_fetched",
				Help:    "Candidate set size per ranking request, before the cap.",
				Buckets: []float64{0, 10, 50, 100, 250, 500, 1000, 2500},
			},
		),
		CandidatesTruncated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_candidates_truncated_total",
				Help: "Ranking requests whose candidate set hit the configured cap.",
			},
		),
		ObservationsSampled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "observations_sampled_total",
				Help: "Price observations appended by the sampler, by status (ok, skipped, error).",
			},
			[]string{"status"},
		),
		SamplerRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sampler_run_duration_seconds",
				Help:    "Duration of one full sampling pass in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
		),
		AnalyticsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Analytics events dropped because the collector buffer was full.",
			},
		),
		RateLimitRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_rejected_total",
				Help: "Requests rejected by the per-key rate limiter.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CandidatesFetched,
		m.CandidatesTruncated,
		m.ObservationsSampled,
		m.SamplerRunDuration,
		m.AnalyticsDropped,
		m.RateLimitRejected,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
