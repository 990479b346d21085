// Package eventstore implements the append-only domain event log described
// in spec §4.4: per-aggregate strictly increasing versions, query, snapshot
// save/restore, and reducer-based state reconstruction. InMemoryStore is the
// reference implementation exercised by the orchestrator's own tests;
// Postgres (postgres.go) is the concrete production-grade backend grounded
// on PedroCLI's pkg/database package.
package eventstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"orchestrator/internal/errs"
	"orchestrator/internal/eventbus"
)

// Snapshot is a serialized aggregate state captured at a specific version.
type Snapshot struct {
	AggregateID   string
	AggregateType string
	Version       int64
	State         map[string]interface{}
	Timestamp     time.Time
}

// Filter selects events across aggregates for Query.
type Filter struct {
	AggregateType string
	EventType     string
	FromVersion   int64
	Limit         int
}

// Reducer folds one event into the accumulated aggregate state.
type Reducer func(state map[string]interface{}, ev eventbus.Event) map[string]interface{}

// Store is the pluggable event-store contract.
type Store interface {
	Append(ctx context.Context, ev eventbus.Event) error
	AppendBatch(ctx context.Context, evs []eventbus.Event) error
	GetEvents(ctx context.Context, aggregateID string, fromVersion int64) ([]eventbus.Event, error)
	Query(ctx context.Context, filter Filter) ([]eventbus.Event, error)
	GetLatestVersion(ctx context.Context, aggregateID string) (int64, error)
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error)
	RebuildState(ctx context.Context, aggregateID string, reduce Reducer, initial map[string]interface{}) (map[string]interface{}, error)
}

// InMemoryStore is a process-local Store backed by maps, guarded by a mutex.
type InMemoryStore struct {
	mu        sync.RWMutex
	byAgg     map[string][]eventbus.Event
	snapshots map[string]Snapshot
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byAgg:     make(map[string][]eventbus.Event),
		snapshots: make(map[string]Snapshot),
	}
}

func (s *InMemoryStore) Append(_ context.Context, ev eventbus.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(ev)
}

func (s *InMemoryStore) appendLocked(ev eventbus.Event) error {
	existing := s.byAgg[ev.AggregateID]
	if len(existing) > 0 && existing[len(existing)-1].Version >= ev.Version {
		return errs.New(errs.Conflict, "duplicate or out-of-order version for aggregate "+ev.AggregateID)
	}
	s.byAgg[ev.AggregateID] = append(existing, ev)
	return nil
}

func (s *InMemoryStore) AppendBatch(_ context.Context, evs []eventbus.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Atomic: validate the whole batch against a scratch copy before committing.
	scratch := make(map[string][]eventbus.Event, len(s.byAgg))
	for k, v := range s.byAgg {
		scratch[k] = append([]eventbus.Event(nil), v...)
	}
	for _, ev := range evs {
		existing := scratch[ev.AggregateID]
		if len(existing) > 0 && existing[len(existing)-1].Version >= ev.Version {
			return errs.New(errs.Conflict, "duplicate or out-of-order version for aggregate "+ev.AggregateID)
		}
		scratch[ev.AggregateID] = append(existing, ev)
	}
	s.byAgg = scratch
	return nil
}

func (s *InMemoryStore) GetEvents(_ context.Context, aggregateID string, fromVersion int64) ([]eventbus.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []eventbus.Event
	for _, ev := range s.byAgg[aggregateID] {
		if ev.Version > fromVersion {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Query(_ context.Context, filter Filter) ([]eventbus.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []eventbus.Event
	for _, evs := range s.byAgg {
		for _, ev := range evs {
			if filter.AggregateType != "" && ev.AggregateType != filter.AggregateType {
				continue
			}
			if filter.EventType != "" && ev.Type != filter.EventType {
				continue
			}
			if ev.Version <= filter.FromVersion {
				continue
			}
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Version < out[j].Version
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) GetLatestVersion(_ context.Context, aggregateID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.byAgg[aggregateID]
	if len(evs) == 0 {
		return 0, nil
	}
	return evs[len(evs)-1].Version, nil
}

func (s *InMemoryStore) SaveSnapshot(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.AggregateID] = snap
	return nil
}

func (s *InMemoryStore) GetSnapshot(_ context.Context, aggregateID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[aggregateID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (s *InMemoryStore) RebuildState(ctx context.Context, aggregateID string, reduce Reducer, initial map[string]interface{}) (map[string]interface{}, error) {
	state := initial
	fromVersion := int64(0)

	snap, err := s.GetSnapshot(ctx, aggregateID)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		state = snap.State
		fromVersion = snap.Version
	}

	events, err := s.GetEvents(ctx, aggregateID, fromVersion)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		state = reduce(state, ev)
	}
	return state, nil
}
