package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// fetch-and-derive pipeline.
type Metrics struct {
	RefreshRunning  prometheus.Gauge
	RefreshTotal    *prometheus.CounterVec   // labels: source, outcome={success,error}
	RefreshDuration prometheus.Histogram

	// Feed fetch metrics.
	FetchRequests *prometheus.CounterVec   // labels: source, outcome={success,error}
	FetchDuration *prometheus.HistogramVec // labels: source
	FetchCache    *prometheus.CounterVec   // labels: result={hit,miss,expired}

	// Dataset shape metrics.
	SeriesPoints  *prometheus.GaugeVec // labels: source
	SeriesYears   *prometheus.GaugeVec // labels: source
	SinkPublished prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RefreshRunning,
		m.RefreshTotal,
		m.RefreshDuration,
		m.FetchRequests,
		m.FetchDuration,
		m.FetchCache,
		m.SeriesPoints,
		m.SeriesYears,
		m.SinkPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RefreshRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "climate_series",
			Name:      "refresh_running",
			Help:      "1 while a refresh cycle is in progress.",
		}),
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_series",
			Name:      "refresh_total",
			Help:      "Source refresh attempts by outcome.",
		}, []string{"source", "outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "climate_series",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-derive cycle across all sources.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_series",
			Name:      "fetch_requests_total",
			Help:      "Feed fetch attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "climate_series",
			Name:      "fetch_duration_seconds",
			Help:      "Feed HTTP request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		FetchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_series",
			Name:      "fetch_cache_total",
			Help:      "Feed cache lookups by result.",
		}, []string{"result"}),
		SeriesPoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "climate_series",
			Name:      "series_points",
			Help:      "Calendar-normalized observation count per source.",
		}, []string{"source"}),
		SeriesYears: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "climate_series",
			Name:      "series_years",
			Help:      "Number of calendar years covered per source.",
		}, []string{"source"}),
		SinkPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate_series",
			Name:      "sink_published_total",
			Help:      "Enriched observations published to the Kafka sink.",
		}),
	}
}
