package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records maintenance job runs.
type JobMetrics struct {
	duration        *prometheus.HistogramVec
	runs            *prometheus.CounterVec
	rows            *prometheus.CounterVec
	inconsistencies prometheus.Gauge
}

// NewJobMetrics registers the maintenance job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maintenance_job_duration_seconds",
		Help:    "Duration of maintenance jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_job_runs_total",
		Help: "Maintenance job executions by outcome.",
	}, []string{"job", "outcome"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_rows_deleted_total",
		Help: "Rows removed by maintenance jobs.",
	}, []string{"job"})
	inconsistencies := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_inconsistent_tip_intents",
		Help: "Tip intents whose ledger entries do not match their status at the last reconcile.",
	})
	reg.MustRegister(duration, runs, rows, inconsistencies)
	return &JobMetrics{
		duration:        duration,
		runs:            runs,
		rows:            rows,
		inconsistencies: inconsistencies,
	}
}

// ObserveRun records one job execution.
func (m *JobMetrics) ObserveRun(job, outcome string, elapsed time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(normalizeLabel(job), normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(elapsed.Seconds())
}

func (m *JobMetrics) AddDeleted(job string, rows int64) {
	if m == nil || m.rows == nil || rows <= 0 {
		return
	}
	m.rows.WithLabelValues(normalizeLabel(job)).Add(float64(rows))
}

func (m *JobMetrics) SetInconsistencies(n int) {
	if m == nil || m.inconsistencies == nil {
		return
	}
	m.inconsistencies.Set(float64(n))
}
