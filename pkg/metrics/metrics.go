// Package metrics defines the Prometheus metric collectors used by the lyric
// search services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the services.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	FindQueriesTotal     *prometheus.CounterVec
	FindLatency          *prometheus.HistogramVec
	MatchScore           prometheus.Histogram
	ScanDuration         prometheus.Histogram
	RecommendationsTotal prometheus.Counter
	RecommendationCount  prometheus.Histogram
	CacheHitsTotal       *prometheus.CounterVec
	CacheMissesTotal     prometheus.Counter
	CatalogSongs         prometheus.Gauge
	VocabularySize       prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
	AnalyticsDropped     prometheus.Counter
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates the collectors and registers them with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
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
		FindQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lyric_find_queries_total",
				Help: "Total lyric find queries by outcome (found, not_found, empty).",
			},
			[]string{"outcome"},
		),
		FindLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lyric_find_latency_seconds",
				Help:    "Lyric find latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		MatchScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lyric_match_score",
				Help:    "Best cosine similarity reported per find query.",
				Buckets: []float64{0, 0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			},
		),
		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lyric_scan_duration_seconds",
				Help:    "Time spent scoring a query vector against the whole catalog.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
		),
		RecommendationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lyric_recommendations_total",
				Help: "Total recommendation requests served.",
			},
		),
		RecommendationCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lyric_recommendation_results",
				Help:    "Number of songs returned per recommendation request.",
				Buckets: []float64{0, 1, 3, 5, 10, 25, 50},
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of result cache hits by tier (local, redis).",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		CatalogSongs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lyric_catalog_songs",
				Help: "Number of songs in the loaded catalog.",
			},
		),
		VocabularySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lyric_vocabulary_size",
				Help: "Number of terms in the loaded vectorizer vocabulary.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
			},
			[]string{"name"},
		),
		AnalyticsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Analytics events dropped because the collector buffer was full.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.FindQueriesTotal,
		m.FindLatency,
		m.MatchScore,
		m.ScanDuration,
		m.RecommendationsTotal,
		m.RecommendationCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CatalogSongs,
		m.VocabularySize,
		m.CircuitBreakerState,
		m.AnalyticsDropped,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
