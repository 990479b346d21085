// Package metrics registers the orchestrator's Prometheus collectors,
// following the init()+MustRegister pattern of PedroCLI's pkg/metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_tasks_total",
			Help: "Total number of tasks submitted, by terminal status",
		},
		[]string{"status", "mode"},
	)

	PhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_phase_duration_seconds",
			Help:    "Phase execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode", "phase"},
	)

	CostTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orchestrator_task_cost_dollars",
			Help: "Cumulative cost of a task in dollars",
		},
		[]string{"task_id"},
	)

	ActiveAgents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_active_agents",
			Help: "Number of agents currently executing",
		},
	)
)

func init() {
	prometheus.MustRegister(TasksTotal, PhaseDuration, CostTotal, ActiveAgents)
}
