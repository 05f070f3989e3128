package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "marketplace"

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// CronJobMetrics covers the cron worker: per-job runs and timings plus the
// stale pending-order gauge.
type CronJobMetrics struct {
	runs         *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	lastSuccess  *prometheus.GaugeVec
	stalePending prometheus.Gauge
}

// NewCronJobMetrics registers cron metrics on reg. A nil registerer yields a
// no-op collector.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job runs by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of a single cron job run.",
			Buckets:   []float64{.05, .1, .5, 1, 5, 15, 30, 60},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the job's last successful run.",
		}, []string{"job"}),
		stalePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stale_pending_orders",
			Help:      "Orders still pending past the configured threshold at the last check.",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess, m.stalePending)
	return m
}

func (c *CronJobMetrics) ObserveDuration(job string, d time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(label(job)).Observe(d.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(label(job), outcomeSuccess).Inc()
	c.lastSuccess.WithLabelValues(label(job)).SetToCurrentTime()
}

func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(label(job), outcomeFailure).Inc()
}

// SetStalePendingOrders records the count seen by the latest check.
func (c *CronJobMetrics) SetStalePendingOrders(count int) {
	if c == nil || c.stalePending == nil {
		return
	}
	c.stalePending.Set(float64(count))
}

// label substitutes "unknown" for blank label values.
func label(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
