package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's prometheus collectors. One instance is
// shared by all stages of a run; when pushed from a batch job the
// registry is exposed for scraping only while the process lives.
type Metrics struct {
	registry *prometheus.Registry

	RowsProcessed *prometheus.CounterVec
	RowsDropped   *prometheus.CounterVec
	RowsInserted  prometheus.Counter
	RowErrors     prometheus.Counter
	BatchesLoaded prometheus.Counter
	QualityScore  prometheus.Gauge
	StageDuration *prometheus.HistogramVec
}

// New creates and registers the pipeline collectors on a private
// registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RowsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qoe_pipeline_rows_processed_total",
			Help: "Rows handled per stage.",
		}, []string{"stage"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qoe_pipeline_rows_dropped_total",
			Help: "Rows dropped during validation, by reason.",
		}, []string{"reason"}),
		RowsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qoe_pipeline_fact_rows_inserted_total",
			Help: "Fact rows actually inserted into the warehouse.",
		}),
		RowErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qoe_pipeline_row_errors_total",
			Help: "Rows skipped during loading because a dimension could not be resolved.",
		}),
		BatchesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qoe_pipeline_fact_batches_total",
			Help: "Fact batches flushed to the warehouse.",
		}),
		QualityScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qoe_pipeline_data_quality_score",
			Help: "Data quality score of the most recent validation run.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qoe_pipeline_stage_duration_seconds",
			Help:    "Wall-clock duration per pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
	}

	m.registry.MustRegister(
		m.RowsProcessed,
		m.RowsDropped,
		m.RowsInserted,
		m.RowErrors,
		m.BatchesLoaded,
		m.QualityScore,
		m.StageDuration,
	)

	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
