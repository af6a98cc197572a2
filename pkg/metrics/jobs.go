package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records retention job runs. A nil *JobMetrics records nothing.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	pruned   *prometheus.CounterVec
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retention_job_duration_seconds",
		Help:    "Duration of retention jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retention_job_runs_total",
		Help: "Retention job executions by outcome.",
	}, []string{"job", "outcome"})
	pruned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retention_rows_pruned_total",
		Help: "Rows deleted by retention jobs.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, pruned)
	return &JobMetrics{duration: duration, runs: runs, pruned: pruned}
}

// ObserveRun records one job execution and the rows it removed.
func (m *JobMetrics) ObserveRun(job string, rows int64, duration time.Duration, ok bool) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(duration.Seconds())
	m.runs.WithLabelValues(job, resultLabel(ok)).Inc()
	if rows > 0 {
		m.pruned.WithLabelValues(job).Add(float64(rows))
	}
}
