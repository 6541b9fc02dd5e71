package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/surveillance-tracker/internal/dataset"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pipeline"
)

// Metrics holds Prometheus metrics
type Metrics struct {
	documentsTotal   *prometheus.CounterVec
	rowsSkippedTotal *prometheus.CounterVec
	recordsTotal     *prometheus.CounterVec
	fallbackTotal    *prometheus.CounterVec
	mergeRowsTotal   *prometheus.CounterVec
	documentSeconds  prometheus.Histogram
	lastRun          prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		documentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveillance_documents_total",
				Help: "Documents processed, by terminal status",
			},
			[]string{"status"},
		),
		rowsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveillance_rows_skipped_total",
				Help: "Table rows skipped by the row parser, by reason",
			},
			[]string{"reason"},
		),
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveillance_records_total",
				Help: "Records assembled, by extraction source",
			},
			[]string{"source"},
		),
		fallbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveillance_fallback_total",
				Help: "LLM fallback attempts, by outcome",
			},
			[]string{"outcome"},
		),
		mergeRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveillance_merge_rows_total",
				Help: "Dataset rows touched by merges, by kind",
			},
			[]string{"kind"},
		),
		documentSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "surveillance_document_seconds",
				Help:    "Time taken to process one document",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
		),
		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "surveillance_last_merge_timestamp_seconds",
				Help: "Unix time of the last completed merge",
			},
		),
	}

	reg.MustRegister(
		m.documentsTotal,
		m.rowsSkippedTotal,
		m.recordsTotal,
		m.fallbackTotal,
		m.mergeRowsTotal,
		m.documentSeconds,
		m.lastRun,
	)
	return m
}

// DocumentDone records one document result. Safe for concurrent use.
func (m *Metrics) DocumentDone(res pipeline.DocumentResult) {
	m.documentsTotal.WithLabelValues(string(res.Status)).Inc()
	m.documentSeconds.Observe(float64(res.ElapsedMS) / 1000)
	for _, s := range res.Skipped {
		m.rowsSkippedTotal.WithLabelValues(s.Reason).Inc()
	}
	for _, r := range res.Records {
		m.recordsTotal.WithLabelValues(string(r.Source)).Inc()
	}
	if res.Fallback != nil {
		m.fallbackTotal.WithLabelValues(res.Fallback.Outcome).Inc()
	}
}

// MergeDone records the outcome of one merge.
func (m *Metrics) MergeDone(rep dataset.MergeReport) {
	m.mergeRowsTotal.WithLabelValues("added").Add(float64(rep.Added))
	m.mergeRowsTotal.WithLabelValues("updated").Add(float64(rep.Updated))
	m.mergeRowsTotal.WithLabelValues("unchanged").Add(float64(rep.Unchanged))
	m.mergeRowsTotal.WithLabelValues("removed").Add(float64(rep.Removed))
	m.lastRun.Set(float64(time.Now().Unix()))
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
