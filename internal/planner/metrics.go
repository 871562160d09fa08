package planner

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parxe_tasks_submitted_total",
			Help: "Total number of tasks submitted to the planner.",
		},
		[]string{"engine"},
	)

	tasksCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parxe_tasks_completed_total",
			Help: "Total number of tasks that reached a terminal state.",
		},
		[]string{"engine", "status"},
	)

	tasksRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parxe_tasks_running",
			Help: "Number of tasks currently executing on an engine.",
		},
		[]string{"engine"},
	)

	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parxe_task_duration_seconds",
			Help:    "Time from execution start to completion.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"engine"},
	)
)

func init() {
	prometheus.MustRegister(tasksSubmitted, tasksCompleted, tasksRunning, taskDuration)
}
