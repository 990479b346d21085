package eventbus

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(0)
	var got Event
	var count int32

	id, err := bus.Subscribe("task.created", func(ev Event) {
		atomic.AddInt32(&count, 1)
		got = ev
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	bus.Publish("task.created", map[string]interface{}{"x": 1}, PublishOptions{AggregateID: "t1", AggregateType: "task"})

	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
	assert.Equal(t, "t1", got.AggregateID)
	assert.Equal(t, "task", got.AggregateType)
}

func TestWildcardReceivesEveryType(t *testing.T) {
	bus := New(0)
	var count int32
	_, err := bus.Subscribe(Wildcard, func(Event) { atomic.AddInt32(&count, 1) })
	require.NoError(t, err)

	bus.Publish("a", nil, PublishOptions{})
	bus.Publish("b", nil, PublishOptions{})

	assert.Equal(t, int32(2), atomic.LoadInt32(&count))
}

func TestOnceUnsubscribesAfterFirstDelivery(t *testing.T) {
	bus := New(0)
	var count int32
	_, err := bus.Once("ping", func(Event) { atomic.AddInt32(&count, 1) })
	require.NoError(t, err)

	bus.Publish("ping", nil, PublishOptions{})
	bus.Publish("ping", nil, PublishOptions{})

	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New(0)
	var count int32
	id, err := bus.Subscribe("x", func(Event) { atomic.AddInt32(&count, 1) })
	require.NoError(t, err)

	bus.Unsubscribe(id)
	bus.Publish("x", nil, PublishOptions{})

	assert.Equal(t, int32(0), atomic.LoadInt32(&count))
}

func TestMaxListenersRejectsOverCap(t *testing.T) {
	bus := New(1)
	_, err := bus.Subscribe("x", func(Event) {})
	require.NoError(t, err)

	_, err = bus.Subscribe("x", func(Event) {})
	assert.Error(t, err)
}

func TestHandlerPanicIsRecoveredAndReported(t *testing.T) {
	bus := New(0)
	var reported string
	bus.OnHandlerError(func(eventType string, r interface{}) {
		reported = eventType
	})
	_, err := bus.Subscribe("boom", func(Event) { panic("kaboom") })
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		bus.Publish("boom", nil, PublishOptions{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish did not return after handler panic")
	}
	assert.Equal(t, "boom", reported)
}

func TestVersionsAreMonotonic(t *testing.T) {
	bus := New(0)
	ev1 := bus.Publish("a", nil, PublishOptions{})
	ev2 := bus.Publish("a", nil, PublishOptions{})
	assert.Less(t, ev1.Version, ev2.Version)
}
