package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records scheduled job runs for cmd/cron-worker.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron job metrics on the provided registerer.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Duration of cron jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Cron job executions by job and result.",
	}, []string{"job", "result"})
	reg.MustRegister(duration, runs)
	return &CronJobMetrics{
		duration: duration,
		runs:     runs,
	}
}

func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) {
	c.inc(job, "success")
}

func (c *CronJobMetrics) IncFailure(job string) {
	c.inc(job, "failure")
}

func (c *CronJobMetrics) inc(job, result string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), result).Inc()
}
