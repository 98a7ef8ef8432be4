package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// journal ETL pipeline.
type Metrics struct {
	RunsTotal   *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration prometheus.Histogram

	DaysBackfilled  prometheus.Counter
	LedgerRows      prometheus.Gauge
	SnapshotRows    prometheus.Gauge
	PipelineRunning prometheus.Gauge

	// Provider metrics.
	ProviderRequests    *prometheus.CounterVec // labels: path, outcome={success,error}
	CredentialFallbacks prometheus.Counter

	// Kafka publisher metrics.
	RecordsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.DaysBackfilled,
		m.LedgerRows,
		m.SnapshotRows,
		m.PipelineRunning,
		m.ProviderRequests,
		m.CredentialFallbacks,
		m.RecordsPublished,
		m.PublishErrors,
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
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tide_journal",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tide_journal",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete backfill + export run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		DaysBackfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tide_journal",
			Name:      "days_backfilled_total",
			Help:      "Daily rows appended to the ledger.",
		}),
		LedgerRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tide_journal",
			Name:      "ledger_rows",
			Help:      "Rows in the persisted ledger after the last run.",
		}),
		SnapshotRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tide_journal",
			Name:      "snapshot_rows",
			Help:      "Days in the last exported snapshot.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tide_journal",
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress.",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tide_journal",
			Name:      "provider_requests_total",
			Help:      "Stormglass requests by path and outcome.",
		}, []string{"path", "outcome"}),
		CredentialFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tide_journal",
			Name:      "credential_fallbacks_total",
			Help:      "Times a request was retried with the next credential.",
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tide_journal",
			Name:      "records_published_total",
			Help:      "Confirmed daily records published to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tide_journal",
			Name:      "publish_errors_total",
			Help:      "Kafka publish failures (non-fatal to the run).",
		}),
	}
}
