package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gfs_forecast"

// Metrics holds the Prometheus counters, histograms, and gauges for the forecast service.
type Metrics struct {
	// Snapshot metrics.
	SnapshotsBuilt   *prometheus.CounterVec // labels: field
	SnapshotErrors   *prometheus.CounterVec // labels: stage={resolve,fetch,build}
	SnapshotDuration prometheus.Histogram
	SinkErrors       *prometheus.CounterVec // labels: sink

	// NOMADS fetch metrics.
	FetchRequests *prometheus.CounterVec   // labels: variable, outcome={success,error}
	FetchCache    *prometheus.CounterVec   // labels: result={hit,miss}
	FetchDuration *prometheus.HistogramVec // labels: variable

	// Run resolution and refresh loop.
	LatestRunInit    prometheus.Gauge
	RefresherRunning prometheus.Gauge
	RefreshDuration  prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		SnapshotsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_built_total",
			Help:      "Field snapshots successfully built, by field.",
		}, []string{"field"}),
		SnapshotErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_errors_total",
			Help:      "Failed snapshot requests by stage.",
		}, []string{"stage"}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_duration_seconds",
			Help:      "Duration of a complete fetch-convert-crop cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Snapshot publish failures by sink.",
		}, []string{"sink"}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "NOMADS OPeNDAP requests by variable and outcome.",
		}, []string{"variable", "outcome"}),
		FetchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_cache_total",
			Help:      "Grid cache lookups by result.",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "NOMADS request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"variable"}),
		LatestRunInit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latest_run_init_timestamp_seconds",
			Help:      "Initialization time of the most recently resolved GFS run, as a Unix timestamp.",
		}),
		RefresherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresher_running",
			Help:      "1 when the cache refresher is active, 0 when shut down.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of one cache refresh pass.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
	}

	prometheus.MustRegister(
		m.SnapshotsBuilt,
		m.SnapshotErrors,
		m.SnapshotDuration,
		m.SinkErrors,
		m.FetchRequests,
		m.FetchCache,
		m.FetchDuration,
		m.LatestRunInit,
		m.RefresherRunning,
		m.RefreshDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		SnapshotsBuilt:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "snapshots_built_total"}, []string{"field"}),
		SnapshotErrors:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "snapshot_errors_total"}, []string{"stage"}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "snapshot_duration_seconds"}),
		SinkErrors:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "sink_errors_total"}, []string{"sink"}),
		FetchRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "fetch_requests_total"}, []string{"variable", "outcome"}),
		FetchCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "fetch_cache_total"}, []string{"result"}),
		FetchDuration:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "fetch_duration_seconds"}, []string{"variable"}),
		LatestRunInit:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "latest_run_init_timestamp_seconds"}),
		RefresherRunning: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "refresher_running"}),
		RefreshDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "refresh_duration_seconds"}),
	}
}
