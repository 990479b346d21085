// Package project tracks the project aggregates referenced by the
// domain-event taxonomy of spec §3 ("aggregate type {task, project,
// execution, mode}"). spec.md defines no dedicated project operations
// beyond the aggregate id itself, so this is a thin CRUD registry mirroring
// the sync.RWMutex-guarded map shape of PedroCLI's pkg/jobs.Manager.
package project

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"orchestrator/internal/errs"
)

// Project is a registered codebase an orchestrator task can target.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Root      string    `json:"root"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry is an in-process CRUD store of Projects.
type Registry struct {
	mu       sync.RWMutex
	projects map[string]*Project
}

// NewRegistry builds an empty project Registry.
func NewRegistry() *Registry {
	return &Registry{projects: make(map[string]*Project)}
}

// Create registers a new project and returns it.
func (r *Registry) Create(name, root string) *Project {
	p := &Project{ID: uuid.New().String(), Name: name, Root: root, CreatedAt: time.Now().UTC()}
	r.mu.Lock()
	r.projects[p.ID] = p
	r.mu.Unlock()
	return p
}

// Get looks up a project by id.
func (r *Registry) Get(id string) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "unknown project "+id)
	}
	return p, nil
}

// List returns all registered projects.
func (r *Registry) List() []*Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p)
	}
	return out
}

// Delete removes a project by id, returning NotFound if no such project is
// registered.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return errs.New(errs.NotFound, "unknown project "+id)
	}
	delete(r.projects, id)
	return nil
}
