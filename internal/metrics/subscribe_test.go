package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"orchestrator/internal/eventbus"
)

func TestSubscribeIncrementsTasksTotalOnCompletion(t *testing.T) {
	bus := eventbus.New(0)
	Subscribe(bus)

	before := testutil.ToFloat64(TasksTotal.WithLabelValues("completed", "SPEED"))
	bus.Publish("task.completed", map[string]interface{}{"mode": "SPEED"}, eventbus.PublishOptions{AggregateID: "t1"})
	after := testutil.ToFloat64(TasksTotal.WithLabelValues("completed", "SPEED"))
	assert.Equal(t, before+1, after)
}

func TestSubscribeTracksActiveAgentsAcrossStartAndCompletion(t *testing.T) {
	bus := eventbus.New(0)
	Subscribe(bus)

	before := testutil.ToFloat64(ActiveAgents)
	bus.Publish("agent.started", nil, eventbus.PublishOptions{})
	assert.Equal(t, before+1, testutil.ToFloat64(ActiveAgents))
	bus.Publish("agent.completed", nil, eventbus.PublishOptions{})
	assert.Equal(t, before, testutil.ToFloat64(ActiveAgents))
}

func TestSubscribeSetsCostTotalFromCumulativeCost(t *testing.T) {
	bus := eventbus.New(0)
	Subscribe(bus)

	bus.Publish("cost.incurred", map[string]interface{}{"cumulative_cost": 4.5}, eventbus.PublishOptions{AggregateID: "cost-task"})
	assert.Equal(t, 4.5, testutil.ToFloat64(CostTotal.WithLabelValues("cost-task")))
}

func TestModeOfDefaultsToUnknown(t *testing.T) {
	assert.Equal(t, "unknown", modeOf(eventbus.Event{Data: map[string]interface{}{}}))
	assert.Equal(t, "SPEED", modeOf(eventbus.Event{Data: map[string]interface{}{"mode": "SPEED"}}))
}

func TestPhaseOfDefaultsToUnknown(t *testing.T) {
	assert.Equal(t, "unknown", phaseOf(eventbus.Event{Data: map[string]interface{}{}}))
	assert.Equal(t, "2", phaseOf(eventbus.Event{Data: map[string]interface{}{"phase": 2}}))
}
