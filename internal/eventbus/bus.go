// Package eventbus implements the in-process publish/subscribe bus described
// in spec §4.4: typed and wildcard subscriptions, one-shot subscriptions,
// per-type listener caps, and awaited fan-out delivery. Grounded on the
// per-client broadcast shape of PedroCLI's pkg/httpbridge.SSEBroadcaster
// (buffered channel per subscriber, non-blocking send-or-drop) and on the
// subscribe/unsubscribe-by-identity idiom of the nugget-thane events bus
// reference.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"orchestrator/internal/errs"
)

// Wildcard is the subscription key that matches every event type.
const Wildcard = "*"

// Event is a domain event as described in spec §3.
type Event struct {
	ID            string
	AggregateID   string
	AggregateType string
	Type          string
	Data          map[string]interface{}
	Metadata      Metadata
	Version       int64
	Timestamp     time.Time
}

// Metadata carries the event's provenance.
type Metadata struct {
	User          string
	CorrelationID string
	CausationID   string
	Source        string
}

// PublishOptions customizes a single publish call.
type PublishOptions struct {
	AggregateID   string
	AggregateType string
	Metadata      Metadata
}

// Handler processes a delivered event. Handler panics never fail the publish
// call — they are recovered and passed to the OnHandlerError callback, if one
// is installed.
type Handler func(Event)

type subscription struct {
	id      string
	handler Handler
	once    bool
}

// Bus is a typed+wildcard publish/subscribe event bus. Safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	typed       map[string][]*subscription
	wildcard    []*subscription
	maxListener int
	version     int64
	onError     func(eventType string, r interface{})
}

// New creates a Bus. maxListeners bounds the number of subscribers per event
// type (and separately, the wildcard set); 0 means unbounded.
func New(maxListeners int) *Bus {
	return &Bus{
		typed:       make(map[string][]*subscription),
		maxListener: maxListeners,
	}
}

// OnHandlerError installs a callback invoked when a handler panics.
func (b *Bus) OnHandlerError(fn func(eventType string, r interface{})) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers handler for eventType (or Wildcard for every type) and
// returns a subscription id usable with Unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) (string, error) {
	return b.add(eventType, handler, false)
}

// Once registers a handler removed after its first delivery that returns
// without panicking.
func (b *Bus) Once(eventType string, handler Handler) (string, error) {
	return b.add(eventType, handler, true)
}

func (b *Bus) add(eventType string, handler Handler, once bool) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{id: uuid.New().String(), handler: handler, once: once}

	if eventType == Wildcard {
		if b.maxListener > 0 && len(b.wildcard) >= b.maxListener {
			return "", errs.New(errs.Conflict, "maxListeners reached for wildcard subscribers")
		}
		b.wildcard = append(b.wildcard, sub)
		return sub.id, nil
	}

	existing := b.typed[eventType]
	if b.maxListener > 0 && len(existing) >= b.maxListener {
		return "", errs.New(errs.Conflict, "maxListeners reached for event type "+eventType)
	}
	b.typed[eventType] = append(existing, sub)
	return sub.id, nil
}

// Unsubscribe removes the subscription with the given id, if present.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, subs := range b.typed {
		for i, s := range subs {
			if s.id == id {
				b.typed[t] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
	for i, s := range b.wildcard {
		if s.id == id {
			b.wildcard = append(b.wildcard[:i], b.wildcard[i+1:]...)
			return
		}
	}
}

// ListenerCount reports the current number of subscribers for a type
// (Wildcard counts wildcard subscribers).
func (b *Bus) ListenerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if eventType == Wildcard {
		return len(b.wildcard)
	}
	return len(b.typed[eventType])
}

// Publish delivers an event of the given type to every matching typed and
// wildcard subscriber. Handlers run concurrently; publish awaits them all
// before returning, so a single slow handler cannot reorder later publishes
// but does bound this call's latency.
func (b *Bus) Publish(eventType string, data map[string]interface{}, opts PublishOptions) Event {
	version := atomic.AddInt64(&b.version, 1)

	aggID := opts.AggregateID
	if aggID == "" {
		aggID = "default"
	}
	ev := Event{
		ID:            uuid.New().String(),
		AggregateID:   aggID,
		AggregateType: opts.AggregateType,
		Type:          eventType,
		Data:          data,
		Metadata:      opts.Metadata,
		Version:       version,
		Timestamp:     time.Now().UTC(),
	}

	b.mu.RLock()
	typed := append([]*subscription(nil), b.typed[eventType]...)
	wild := append([]*subscription(nil), b.wildcard...)
	onError := b.onError
	b.mu.RUnlock()

	var wg sync.WaitGroup
	var onceIDs []string
	var onceMu sync.Mutex

	dispatch := func(s *subscription) {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil && onError != nil {
				onError(eventType, r)
			}
		}()
		s.handler(ev)
		if s.once {
			onceMu.Lock()
			onceIDs = append(onceIDs, s.id)
			onceMu.Unlock()
		}
	}

	for _, s := range typed {
		wg.Add(1)
		go dispatch(s)
	}
	for _, s := range wild {
		wg.Add(1)
		go dispatch(s)
	}
	wg.Wait()

	for _, id := range onceIDs {
		b.Unsubscribe(id)
	}

	return ev
}
