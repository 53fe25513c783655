package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	snapshotsTotal *prometheus.CounterVec
	rowsTotal      *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastRowCount   *prometheus.GaugeVec
	tickDuration   *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		snapshotsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_snapshots_total",
				Help: "Total number of snapshots collected",
			},
			[]string{"dataset"},
		),
		rowsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_rows_total",
				Help: "Total number of rows collected",
			},
			[]string{"dataset"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastRowCount: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "screener_last_row_count",
				Help: "Row count of the most recent snapshot per dataset",
			},
			[]string{"dataset"},
		),
		tickDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screener_tick_duration_seconds",
				Help:    "Duration of collection ticks in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"dataset"},
		),
	}
}

// RecordSnapshot records a persisted snapshot and its row count.
func (r *Recorder) RecordSnapshot(dataset string, rows int) {
	r.snapshotsTotal.WithLabelValues(dataset).Inc()
	r.rowsTotal.WithLabelValues(dataset).Add(float64(rows))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastRowCount records the row count of the latest snapshot.
func (r *Recorder) RecordLastRowCount(dataset string, rows int) {
	r.lastRowCount.WithLabelValues(dataset).Set(float64(rows))
}

// RecordTickDuration records how long a collection tick took.
func (r *Recorder) RecordTickDuration(dataset string, seconds float64) {
	r.tickDuration.WithLabelValues(dataset).Observe(seconds)
}
