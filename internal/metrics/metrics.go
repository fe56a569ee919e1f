// Package metrics records injection outcomes to Prometheus, an in-memory read model and the database.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPResponseSize      *prometheus.HistogramVec
	HTTPActiveConnections *prometheus.GaugeVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Injection metrics
	InjectionRequestsTotal *prometheus.CounterVec
	InjectedPostsTotal     *prometheus.CounterVec
	InjectionDuration      *prometheus.HistogramVec
	FetchErrorsTotal       *prometheus.CounterVec
	RecorderDroppedTotal   prometheus.Counter

	// Interaction metrics
	InteractionsTotal *prometheus.CounterVec
	PromotionsTotal   prometheus.Counter

	// Alert metrics
	AlertsTriggeredTotal *prometheus.CounterVec
	AlertsActive         *prometheus.GaugeVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPResponseSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			CacheHitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"cache_name"},
			),
			CacheMissesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"cache_name"},
			),

			InjectionRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "injection_requests_total",
					Help: "Timeline builds by strategy, candidate source and whether injection ran",
				},
				[]string{"strategy", "source", "performed"},
			),
			InjectedPostsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "injection_injected_posts_total",
					Help: "Candidates placed into timelines",
				},
				[]string{"strategy", "source"},
			),
			InjectionDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "injection_duration_seconds",
					Help:    "Time to build an injected timeline in seconds",
					Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"source"},
			),
			FetchErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "injection_fetch_errors_total",
					Help: "Failed timeline fetches by stage (upstream, candidates)",
				},
				[]string{"stage"},
			),
			RecorderDroppedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "injection_recorder_dropped_total",
					Help: "Injection events dropped because the recorder queue was full",
				},
			),

			InteractionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "interactions_total",
					Help: "Logged interactions by action and whether the raw row was stored",
				},
				[]string{"action", "stored"},
			),
			PromotionsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "signal_promotions_total",
					Help: "Users promoted from cold start to personalized sourcing",
				},
			),

			AlertsTriggeredTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "alerts_triggered_total",
					Help: "Injection health alerts raised by type and level",
				},
				[]string{"type", "level"},
			),
			AlertsActive: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "alerts_active",
					Help: "Unresolved injection health alerts by type",
				},
				[]string{"type"},
			),

			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors by type",
				},
				[]string{"error_type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Initialize()
}
