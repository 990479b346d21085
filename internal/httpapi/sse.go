// Package httpapi exposes the task/mode/monitoring surface of spec §6 over
// net/http, plus a dual real-time transport (SSE and WebSocket) backed by
// the shared event bus. Grounded on PedroCLI's pkg/httpbridge.SSEBroadcaster
// (per-client buffered channel, broadcast-with-drop-on-full).
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"orchestrator/internal/eventbus"
)

// backpressureThreshold is each subscriber's buffer size. When a subscriber's
// buffer is full, its oldest buffered event is discarded and an "overflow"
// event is queued in its place; the subscriber itself stays connected.
const backpressureThreshold = 64

// sseClient is one connected SSE subscriber.
type sseClient struct {
	id      string
	channel string // event type, "task:<id>", or "tasks"
	ch      chan eventbus.Event
	done    chan struct{}
}

// Broadcaster fans bus events out to per-client buffered channels with
// channel-pattern matching and overflow notices.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[string]*sseClient
	busSubID string
}

// NewBroadcaster subscribes to bus on the wildcard channel and starts
// fanning events out to registered clients.
func NewBroadcaster(bus *eventbus.Bus) *Broadcaster {
	b := &Broadcaster{clients: make(map[string]*sseClient)}
	id, _ := bus.Subscribe(eventbus.Wildcard, b.dispatch)
	b.busSubID = id
	return b
}

func (b *Broadcaster) dispatch(ev eventbus.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.clients {
		if !channelMatches(c.channel, ev) {
			continue
		}
		select {
		case c.ch <- ev:
		default:
			// Buffer full: drop this client's oldest view and notify overflow.
			select {
			case <-c.ch:
			default:
			}
			select {
			case c.ch <- overflowEvent(ev):
			default:
			}
		}
	}
}

func overflowEvent(ev eventbus.Event) eventbus.Event {
	return eventbus.Event{
		ID:          uuid.New().String(),
		AggregateID: ev.AggregateID,
		Type:        "overflow",
		Data:        map[string]interface{}{"dropped_type": ev.Type},
	}
}

func channelMatches(channel string, ev eventbus.Event) bool {
	switch {
	case channel == "tasks":
		return ev.AggregateType == "task"
	case channel == ev.Type:
		return true
	case len(channel) > 5 && channel[:5] == "task:":
		return ev.AggregateType == "task" && ev.AggregateID == channel[5:]
	}
	return false
}

// AddClient registers a new subscriber for the given channel pattern.
func (b *Broadcaster) AddClient(channel string) *sseClient {
	c := &sseClient{
		id:      uuid.New().String(),
		channel: channel,
		ch:      make(chan eventbus.Event, backpressureThreshold),
		done:    make(chan struct{}),
	}
	b.mu.Lock()
	b.clients[c.id] = c
	b.mu.Unlock()
	return c
}

// RemoveClient unregisters a subscriber.
func (b *Broadcaster) RemoveClient(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.clients[id]; ok {
		close(c.done)
		delete(b.clients, id)
	}
}

// ServeSSE streams events matching channel as Server-Sent Events.
func (b *Broadcaster) ServeSSE(w http.ResponseWriter, r *http.Request, channel string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	client := b.AddClient(channel)
	defer b.RemoveClient(client.id)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case ev := <-client.ch:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
