// Package taskqueue maintains the dependency map for a phase's subtasks, per
// spec §4.6's companion Task Queue. Grounded on the CRUD shape of PedroCLI's
// pkg/jobs/manager.go (Create/Get/Update/Cancel over a guarded in-memory map),
// generalized from single jobs to dependency-tracked subtasks.
package taskqueue

import "sync"

// Entry tracks one subtask's dependency set and completion state.
type Entry struct {
	ID        string
	DependsOn []string
	Completed bool
}

// Queue tracks which subtasks are ready to run given which have completed.
type Queue struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{entries: make(map[string]*Entry)}
}

// AddTask registers a subtask with its dependency ids.
func (q *Queue) AddTask(id string, dependsOn []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[id] = &Entry{ID: id, DependsOn: dependsOn}
	q.order = append(q.order, id)
}

// AvailableTasks returns ids of all tasks whose dependencies are satisfied
// and which are not themselves completed, in registration order.
func (q *Queue) AvailableTasks() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var available []string
	for _, id := range q.order {
		e := q.entries[id]
		if e.Completed {
			continue
		}
		ready := true
		for _, dep := range e.DependsOn {
			if d, ok := q.entries[dep]; !ok || !d.Completed {
				ready = false
				break
			}
		}
		if ready {
			available = append(available, id)
		}
	}
	return available
}

// MarkCompleted marks a subtask done.
func (q *Queue) MarkCompleted(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.entries[id]; ok {
		e.Completed = true
	}
}

// IsComplete reports whether every registered subtask has completed.
func (q *Queue) IsComplete() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if !e.Completed {
			return false
		}
	}
	return true
}

// Remaining returns the count of subtasks not yet completed.
func (q *Queue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, e := range q.entries {
		if !e.Completed {
			n++
		}
	}
	return n
}
