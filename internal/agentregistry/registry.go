// Package agentregistry tracks registered agents, enforces inter-agent
// dependencies, and computes topological execution levels, per spec §4.3.
// Grounded on PedroCLI's pkg/agentregistry.AgentRegistry (sync.RWMutex-guarded
// map, register/get/list accessor shape) generalized with the Kahn's-algorithm
// execution-level computation from the ai-agents-orchestrator dag_scheduler
// reference.
package agentregistry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"orchestrator/internal/agent"
	"orchestrator/internal/errs"
)

// dependencies is the closed mapping from spec §4.3.
var dependencies = map[agent.Type][]agent.Type{
	agent.TypeArchitect: {agent.TypeConcept},
	agent.TypeImplement: {agent.TypeArchitect},
	agent.TypeTest:      {agent.TypeImplement},
	agent.TypeReview:    {agent.TypeImplement},
	agent.TypeSecurity:  {agent.TypeImplement},
	agent.TypeDocs:      {agent.TypeImplement},
	agent.TypeOptimize:  {agent.TypeImplement, agent.TypeTest},
	agent.TypeDeploy:    {agent.TypeTest, agent.TypeReview},
}

// Dependencies returns the closed dependency set for an agent type.
func Dependencies(t agent.Type) []agent.Type {
	return dependencies[t]
}

// Registry tracks registered agents, enforces the concurrency cap, and
// schedules dependency-ordered execution.
type Registry struct {
	mu     sync.RWMutex
	agents map[agent.Type]agent.Agent
	active map[agent.Type]bool
	cap    int
}

// New constructs a Registry with the given concurrency cap (max agents
// running Execute simultaneously).
func New(concurrencyCap int) *Registry {
	return &Registry{
		agents: make(map[agent.Type]agent.Agent),
		active: make(map[agent.Type]bool),
		cap:    concurrencyCap,
	}
}

// Register installs an agent implementation, rejecting duplicates.
func (r *Registry) Register(a agent.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.Type()]; exists {
		return errs.New(errs.Conflict, fmt.Sprintf("agent type %q already registered", a.Type()))
	}
	r.agents[a.Type()] = a
	return nil
}

// Unregister removes an agent, rejecting if it is currently active.
func (r *Registry) Unregister(t agent.Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[t] {
		return errs.New(errs.Conflict, fmt.Sprintf("agent type %q is active", t))
	}
	delete(r.agents, t)
	return nil
}

// Get looks up a registered agent by type.
func (r *Registry) Get(t agent.Type) (agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[t]
	return a, ok
}

// ActiveCount reports how many agents are currently executing.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// ExecutionOrder computes topological execution levels over the given
// required agent types using Kahn's algorithm. Each returned level is a set
// of agent types whose dependencies (restricted to the requested set) are
// already satisfied by earlier levels. Dependencies outside the requested
// set are ignored, whether or not they are registered. Raises unresolvable
// when no remaining type can be scheduled (a cycle).
func (r *Registry) ExecutionOrder(required []agent.Type) ([][]agent.Type, error) {
	wanted := make(map[agent.Type]bool, len(required))
	for _, t := range required {
		wanted[t] = true
	}

	inDegree := make(map[agent.Type]int, len(required))
	dependents := make(map[agent.Type][]agent.Type)

	for _, t := range required {
		deps := dependencies[t]
		count := 0
		for _, d := range deps {
			if wanted[d] {
				count++
				dependents[d] = append(dependents[d], t)
			}
		}
		inDegree[t] = count
	}

	var levels [][]agent.Type
	remaining := len(required)

	for remaining > 0 {
		var level []agent.Type
		for _, t := range required {
			if inDegree[t] == 0 {
				level = append(level, t)
			}
		}
		if len(level) == 0 {
			return nil, errs.New(errs.Unresolvable, "cyclic or unsatisfiable agent dependency set")
		}
		sort.Slice(level, func(i, j int) bool { return level[i] < level[j] })

		levels = append(levels, level)
		for _, t := range level {
			inDegree[t] = -1 // mark consumed
			remaining--
			for _, dep := range dependents[t] {
				inDegree[dep]--
			}
		}
	}
	return levels, nil
}

// ExecuteWithDependencies runs one agent type against task, enriching its
// context with prior results keyed "<agentType>Result", honoring the
// concurrency cap and re-entrancy rule, and running Validate afterward.
func (r *Registry) ExecuteWithDependencies(ctx context.Context, t agent.Type, task agent.Task, priorResults map[agent.Type]agent.Result, onProgress agent.ProgressFunc) (agent.Result, error) {
	r.mu.Lock()
	if r.active[t] {
		r.mu.Unlock()
		return agent.Result{}, errs.New(errs.Conflict, fmt.Sprintf("agent type %q is not reentrant", t))
	}
	if r.cap > 0 && len(r.active) >= r.cap {
		r.mu.Unlock()
		return agent.Result{}, errs.New(errs.Conflict, "registry concurrency cap reached")
	}
	a, ok := r.agents[t]
	if !ok {
		r.mu.Unlock()
		return agent.Result{}, errs.New(errs.NotFound, fmt.Sprintf("agent type %q is not registered", t))
	}
	r.active[t] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.active, t)
		r.mu.Unlock()
	}()

	if task.Context == nil {
		task.Context = make(map[string]interface{})
	}
	for producingType, result := range priorResults {
		task.Context[string(producingType)+"Result"] = result.Output
	}

	result, err := a.Execute(ctx, task, onProgress)
	if err != nil {
		return result, err
	}

	validation := a.Validate(result)
	if !validation.OK {
		joined := ""
		for i, e := range validation.Errors {
			if i > 0 {
				joined += "; "
			}
			joined += e
		}
		// A failure of the agent's own Validate is distinct from a generic
		// Execute/provider failure: spec.md lists it among the non-retryable
		// failure kinds alongside plan-invalid and cost-cap-exceeded, so this
		// is wrapped as errs.Validation rather than left to the caller's
		// generic !Success handling (which would otherwise retry it as a
		// transient provider error).
		msg := "validation failed: " + joined
		return agent.Result{Success: false, Error: msg}, errs.New(errs.Validation, msg)
	}
	return result, nil
}

// ExecuteParallel starts every type in types concurrently, returning a result
// per type. A type that finds the concurrency cap already reached when it
// starts is reported at once as a failed result in the returned map; it does
// not wait for a slot to open.
func (r *Registry) ExecuteParallel(ctx context.Context, types []agent.Type, task agent.Task, priorResults map[agent.Type]agent.Result) map[agent.Type]agent.Result {
	results := make(map[agent.Type]agent.Result, len(types))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, t := range types {
		wg.Add(1)
		go func(t agent.Type) {
			defer wg.Done()
			perTask := task
			result, err := r.ExecuteWithDependencies(ctx, t, perTask, priorResults, nil)
			if err != nil {
				result = agent.Result{Success: false, Error: err.Error()}
			}
			mu.Lock()
			results[t] = result
			mu.Unlock()
		}(t)
	}
	wg.Wait()
	return results
}
