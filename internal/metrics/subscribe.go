package metrics

import (
	"strconv"

	"orchestrator/internal/eventbus"
)

// Subscribe wires the package's Prometheus collectors to the orchestrator's
// event bus, translating task/agent/cost events into counter and gauge
// updates. Mirrors the event-driven metrics hook pattern PedroCLI's
// pkg/metrics leaves for its callers to wire at startup.
func Subscribe(bus *eventbus.Bus) {
	bus.Subscribe("task.completed", func(ev eventbus.Event) {
		TasksTotal.WithLabelValues("completed", modeOf(ev)).Inc()
	})
	bus.Subscribe("task.failed", func(ev eventbus.Event) {
		TasksTotal.WithLabelValues("failed", modeOf(ev)).Inc()
	})
	bus.Subscribe("task.cancelled", func(ev eventbus.Event) {
		TasksTotal.WithLabelValues("cancelled", modeOf(ev)).Inc()
	})
	bus.Subscribe("task.phase.completed", func(ev eventbus.Event) {
		if ms, ok := ev.Data["duration_ms"].(int64); ok {
			PhaseDuration.WithLabelValues(modeOf(ev), phaseOf(ev)).Observe(float64(ms) / 1000.0)
		}
	})
	bus.Subscribe("cost.incurred", func(ev eventbus.Event) {
		if cost, ok := ev.Data["cumulative_cost"].(float64); ok {
			CostTotal.WithLabelValues(ev.AggregateID).Set(cost)
		}
	})
	bus.Subscribe("agent.started", func(ev eventbus.Event) {
		ActiveAgents.Inc()
	})
	bus.Subscribe("agent.completed", func(ev eventbus.Event) {
		ActiveAgents.Dec()
	})
	bus.Subscribe("agent.failed", func(ev eventbus.Event) {
		ActiveAgents.Dec()
	})
}

func modeOf(ev eventbus.Event) string {
	if v, ok := ev.Data["mode"].(string); ok {
		return v
	}
	return "unknown"
}

func phaseOf(ev eventbus.Event) string {
	if v, ok := ev.Data["phase"].(int); ok {
		return strconv.Itoa(v)
	}
	return "unknown"
}
