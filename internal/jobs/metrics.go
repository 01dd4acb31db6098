package jobs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for scheduled jobs and the background queue.
type Metrics struct {
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	UsersTotal  *prometheus.CounterVec

	QueueTasksTotal *prometheus.CounterVec
	QueueInFlight   prometheus.Gauge
}

// NewMetrics creates and registers the job metrics once per process.
//
// Metrics:
//   - companiond_job_runs_total{job,status}
//   - companiond_job_run_duration_seconds{job}
//   - companiond_job_users_total{job,outcome}
//   - companiond_queue_tasks_total{status}
//   - companiond_queue_in_flight
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "companiond_job_runs_total",
					Help: "Total number of scheduled job runs",
				},
				[]string{"job", "status"}, // "ok" or "error"
			),
			RunDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "companiond_job_run_duration_seconds",
					Help:    "Duration of scheduled job runs in seconds",
					Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
				},
				[]string{"job"},
			),
			UsersTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "companiond_job_users_total",
					Help: "Per-user job outcomes",
				},
				[]string{"job", "outcome"}, // "analyzed", "skipped", "sent", "duplicate", "error"
			),
			QueueTasksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "companiond_queue_tasks_total",
					Help: "Background queue tasks by final status",
				},
				[]string{"status"}, // "ok", "error", "panic", "dropped"
			),
			QueueInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "companiond_queue_in_flight",
					Help: "Background queue tasks currently running",
				},
			),
		}
	})
	return globalMetrics
}
