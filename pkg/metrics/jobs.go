package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records background job runs.
type JobMetrics struct {
	runs     *prometheus.CounterVec
	affected *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewJobMetrics registers the job metrics. A nil registerer yields a no-op
// recorder.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Background job runs by job and outcome.",
	}, []string{"job", "outcome"})
	affected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_affected_rows_total",
		Help: "Rows changed by background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Background job duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	reg.MustRegister(runs, affected, duration)
	return &JobMetrics{runs: runs, affected: affected, duration: duration}
}

// ObserveRun records one finished run.
func (j *JobMetrics) ObserveRun(job string, err error, duration time.Duration) {
	if j == nil || j.runs == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	job = normalizeLabel(job)
	j.runs.WithLabelValues(job, outcome).Inc()
	j.duration.WithLabelValues(job).Observe(duration.Seconds())
}

// AddAffected counts rows a job changed.
func (j *JobMetrics) AddAffected(job string, n int) {
	if j == nil || j.affected == nil || n <= 0 {
		return
	}
	j.affected.WithLabelValues(normalizeLabel(job)).Add(float64(n))
}
