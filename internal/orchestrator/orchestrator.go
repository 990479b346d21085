package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"orchestrator/internal/agent"
	"orchestrator/internal/agentregistry"
	"orchestrator/internal/errs"
	"orchestrator/internal/eventbus"
	"orchestrator/internal/eventstore"
	"orchestrator/internal/logging"
	"orchestrator/internal/modes"
	"orchestrator/internal/retry"
	"orchestrator/internal/workerpool"
)

// Orchestrator is the coordinator of spec §4.1. It exclusively owns a Task
// during execution; the event bus and event store are shared collaborators.
type Orchestrator struct {
	bus      *eventbus.Bus
	store    eventstore.Store
	registry *agentregistry.Registry
	modeMgr  *modes.Manager
	pool     *workerpool.Pool
	log      *logging.Logger

	mu      sync.RWMutex
	tasks   map[string]*Task
	cancels map[string]context.CancelFunc
}

// New constructs an Orchestrator with its collaborators.
func New(bus *eventbus.Bus, store eventstore.Store, registry *agentregistry.Registry, modeMgr *modes.Manager, pool *workerpool.Pool) *Orchestrator {
	return &Orchestrator{
		bus:      bus,
		store:    store,
		registry: registry,
		modeMgr:  modeMgr,
		pool:     pool,
		log:      logging.New("orchestrator"),
		tasks:    make(map[string]*Task),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Submit creates a task in pending status, publishes task.created, and
// enqueues it for asynchronous execution. Returns immediately with its id.
func (o *Orchestrator) Submit(description string, projectID string, mode modes.Name, priority int) (string, error) {
	if description == "" {
		return "", errs.New(errs.Validation, "description must not be empty")
	}
	if priority < 0 || priority > 100 {
		return "", errs.New(errs.Validation, "priority must be within [0,100]")
	}
	if mode == "" {
		mode = o.modeMgr.Active()
	}
	if _, ok := o.modeMgr.Strategy(mode); !ok {
		return "", errs.New(errs.Validation, "unknown mode "+string(mode))
	}

	task := &Task{
		ID:          uuid.New().String(),
		Description: description,
		ProjectID:   projectID,
		Status:      StatusPending,
		Priority:    priority,
		Mode:        mode,
		Results:     make(map[int]map[string]agent.Result),
		CreatedAt:   time.Now().UTC(),
	}

	o.mu.Lock()
	o.tasks[task.ID] = task
	o.mu.Unlock()

	o.publish("task.created", task, nil)

	ctx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancels[task.ID] = cancel
	o.mu.Unlock()

	go o.run(ctx, task.ID)

	return task.ID, nil
}

// Get returns a snapshot of a task, including phases and results.
func (o *Orchestrator) Get(taskID string) (*Task, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	t, ok := o.tasks[taskID]
	if !ok {
		return nil, errs.New(errs.NotFound, "unknown task "+taskID)
	}
	return t.Clone(), nil
}

// List returns a snapshot of every task known to the orchestrator.
func (o *Orchestrator) List() []*Task {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*Task, 0, len(o.tasks))
	for _, t := range o.tasks {
		out = append(out, t.Clone())
	}
	return out
}

// Cancel marks a pending/running task for cancellation at the next
// checkpoint. Idempotent; a no-op on a terminal task.
func (o *Orchestrator) Cancel(taskID string) error {
	o.mu.Lock()
	t, ok := o.tasks[taskID]
	if !ok {
		o.mu.Unlock()
		return errs.New(errs.NotFound, "unknown task "+taskID)
	}
	if isTerminal(t.Status) {
		o.mu.Unlock()
		return nil
	}
	cancel := o.cancels[taskID]
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Retry produces a new task with the same description/mode/priority. Only
// legal from failed.
func (o *Orchestrator) Retry(taskID string) (string, error) {
	o.mu.RLock()
	t, ok := o.tasks[taskID]
	o.mu.RUnlock()
	if !ok {
		return "", errs.New(errs.NotFound, "unknown task "+taskID)
	}
	if t.Status != StatusFailed {
		return "", errs.New(errs.Validation, "only a failed task may be retried")
	}
	return o.Submit(t.Description, t.ProjectID, t.Mode, t.Priority)
}

// Subscribe streams bus events matching eventType (or eventbus.Wildcard)
// until the returned unsubscribe func is called.
func (o *Orchestrator) Subscribe(eventType string, handler eventbus.Handler) (func(), error) {
	id, err := o.bus.Subscribe(eventType, handler)
	if err != nil {
		return nil, err
	}
	return func() { o.bus.Unsubscribe(id) }, nil
}

func isTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (o *Orchestrator) publish(eventType string, t *Task, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["task_id"] = t.ID
	ev := o.bus.Publish(eventType, data, eventbus.PublishOptions{
		AggregateID:   t.ID,
		AggregateType: "task",
	})
	if o.store != nil {
		if err := o.store.Append(context.Background(), ev); err != nil {
			o.log.Warn("append event", logging.Fields{"event_type": eventType, "task_id": t.ID, "error": err.Error()})
		}
	}
}

// run drives one task through analyze -> decompose -> execute -> finalize.
func (o *Orchestrator) run(ctx context.Context, taskID string) {
	o.mu.RLock()
	task := o.tasks[taskID]
	o.mu.RUnlock()

	strategy, ok := o.modeMgr.Strategy(task.Mode)
	if !ok {
		o.fail(task, errs.New(errs.Internal, "strategy vanished for mode "+string(task.Mode)), 0, "")
		return
	}
	cfg := strategy.Config()

	o.setStatus(task, StatusAnalyzing)
	complexity := modes.ClassifyComplexity(task.Description)
	o.publish("task.started", task, map[string]interface{}{"complexity": string(complexity)})

	phaseSpecs, err := strategy.Decompose(task.Description, complexity)
	if err != nil {
		o.fail(task, err, 0, "")
		return
	}
	if err := validatePlan(phaseSpecs); err != nil {
		o.fail(task, err, 0, "")
		return
	}

	o.mu.Lock()
	task.Phases = buildPhases(phaseSpecs)
	now := time.Now().UTC()
	task.StartedAt = &now
	task.Status = StatusRunning
	o.mu.Unlock()

	for i := range task.Phases {
		if ctx.Err() != nil {
			o.cancelTask(task)
			return
		}
		if err := o.runPhase(ctx, task, &task.Phases[i], cfg); err != nil {
			if errs.Is(err, errs.Cancelled) {
				o.cancelTask(task)
				return
			}
			o.fail(task, err, task.Phases[i].Ordinal, "")
			return
		}
	}

	o.mu.Lock()
	completedAt := time.Now().UTC()
	task.CompletedAt = &completedAt
	task.Status = StatusCompleted
	o.mu.Unlock()
	o.publish("task.completed", task, map[string]interface{}{"mode": string(task.Mode)})
	o.snapshot(task)
}

// snapshot persists the task's terminal status, token count and cost to the
// event store. Get does not read it; Get serves the in-memory task.
func (o *Orchestrator) snapshot(t *Task) {
	if o.store == nil {
		return
	}
	version, err := o.store.GetLatestVersion(context.Background(), t.ID)
	if err != nil {
		o.log.Warn("read latest version", logging.Fields{"task_id": t.ID, "error": err.Error()})
		return
	}
	o.mu.RLock()
	state := map[string]interface{}{
		"status":      string(t.Status),
		"tokens_used": t.TokensUsed,
		"cost":        t.Cost,
	}
	o.mu.RUnlock()
	snap := eventstore.Snapshot{AggregateID: t.ID, AggregateType: "task", Version: version, State: state, Timestamp: time.Now().UTC()}
	if err := o.store.SaveSnapshot(context.Background(), snap); err != nil {
		o.log.Warn("save snapshot", logging.Fields{"task_id": t.ID, "error": err.Error()})
	}
}

func validatePlan(specs []modes.PhaseSpec) error {
	known := make(map[string]bool)
	for _, p := range specs {
		for _, s := range p.Subtasks {
			known[s.ID] = true
		}
	}
	for _, p := range specs {
		for _, s := range p.Subtasks {
			for _, dep := range s.DependsOn {
				if !known[dep] {
					return errs.New(errs.Validation, fmt.Sprintf("subtask %q depends on unknown subtask %q", s.ID, dep))
				}
			}
		}
	}
	return nil
}

func buildPhases(specs []modes.PhaseSpec) []Phase {
	phases := make([]Phase, 0, len(specs))
	for i, spec := range specs {
		subtasks := make([]Subtask, 0, len(spec.Subtasks))
		for _, s := range spec.Subtasks {
			subtasks = append(subtasks, Subtask{
				ID:          s.ID,
				Description: s.Description,
				AgentType:   s.AgentType,
				Status:      SubtaskPending,
				DependsOn:   s.DependsOn,
			})
		}
		phases = append(phases, Phase{
			Ordinal:  i + 1,
			Name:     spec.Name,
			Parallel: spec.Parallel,
			Required: spec.Required,
			Status:   PhaseStatusPending,
			Subtasks: subtasks,
		})
	}
	return phases
}

func (o *Orchestrator) setStatus(t *Task, status Status) {
	o.mu.Lock()
	t.Status = status
	o.mu.Unlock()
}

func (o *Orchestrator) cancelTask(t *Task) {
	o.mu.Lock()
	completedAt := time.Now().UTC()
	t.CompletedAt = &completedAt
	t.Status = StatusCancelled
	o.mu.Unlock()
	o.publish("task.cancelled", t, map[string]interface{}{"mode": string(t.Mode)})
	o.snapshot(t)
}

func (o *Orchestrator) fail(t *Task, err error, phase int, agentType string) {
	kind := errs.Internal
	msg := err.Error()
	if e, ok := err.(*errs.Error); ok {
		kind = e.Kind
		msg = e.Message
	}
	o.mu.Lock()
	t.Errors = append(t.Errors, TaskError{Type: string(kind), Message: msg, Phase: phase, Agent: agentType})
	completedAt := time.Now().UTC()
	t.CompletedAt = &completedAt
	t.Status = StatusFailed
	o.mu.Unlock()
	o.publish("task.failed", t, map[string]interface{}{"error": msg, "phase": phase, "agent": agentType, "mode": string(t.Mode)})
	o.snapshot(t)
}

// runPhase executes one phase's subtasks per spec §4.1 step 3, honoring
// execution levels, the registry's concurrency cap, and retry/backoff.
func (o *Orchestrator) runPhase(ctx context.Context, t *Task, phase *Phase, cfg modes.Config) error {
	o.mu.Lock()
	phase.Status = PhaseStatusRunning
	o.mu.Unlock()
	o.publish("task.phase.started", t, map[string]interface{}{"phase": phase.Ordinal, "name": phase.Name})
	start := time.Now()

	if len(phase.Subtasks) == 0 {
		o.mu.Lock()
		phase.Status = PhaseStatusCompleted
		phase.DurationMs = time.Since(start).Milliseconds()
		o.mu.Unlock()
		o.publish("task.phase.completed", t, map[string]interface{}{"phase": phase.Ordinal})
		return nil
	}

	agentTypes := make([]agent.Type, 0, len(phase.Subtasks))
	byType := make(map[agent.Type][]*Subtask, len(phase.Subtasks))
	seen := make(map[agent.Type]bool)
	for i := range phase.Subtasks {
		st := &phase.Subtasks[i]
		byType[st.AgentType] = append(byType[st.AgentType], st)
		if !seen[st.AgentType] {
			seen[st.AgentType] = true
			agentTypes = append(agentTypes, st.AgentType)
		}
	}

	// Resolve the real dependency ordering between the agent types present in
	// this phase (spec §4.1 step 3.b) rather than trusting the mode's
	// hand-written per-subtask DependsOn list alone: a subtask's explicit
	// DependsOn still gates it within runSubtask, but the level grouping here
	// is what keeps e.g. an architect subtask from racing its concept subtask
	// inside a single phase.
	levels, err := o.registry.ExecutionOrder(agentTypes)
	if err != nil {
		return o.concludePhase(t, phase, start, err)
	}

	priorResults := o.priorResultsForTask(t)

	runOne := func(st *Subtask) error {
		return o.runSubtask(ctx, t, phase, st, cfg, priorResults)
	}

	for _, level := range levels {
		var levelSubtasks []*Subtask
		for _, typ := range level {
			levelSubtasks = append(levelSubtasks, byType[typ]...)
		}

		var levelErr error
		if phase.Parallel {
			var wg sync.WaitGroup
			errCh := make(chan error, len(levelSubtasks))
			for _, st := range levelSubtasks {
				st := st
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := runOne(st); err != nil {
						errCh <- err
					}
				}()
			}
			wg.Wait()
			close(errCh)
			for err := range errCh {
				if err != nil {
					levelErr = err
					break
				}
			}
		} else {
			for _, st := range levelSubtasks {
				if err := runOne(st); err != nil {
					levelErr = err
					break
				}
			}
		}
		if levelErr != nil {
			return o.concludePhase(t, phase, start, levelErr)
		}
	}

	return o.concludePhase(t, phase, start, nil)
}

func (o *Orchestrator) concludePhase(t *Task, phase *Phase, start time.Time, subtaskErr error) error {
	o.mu.Lock()
	phase.DurationMs = time.Since(start).Milliseconds()
	if subtaskErr != nil {
		if errs.Is(subtaskErr, errs.Cancelled) {
			o.mu.Unlock()
			return subtaskErr
		}
		if phase.Required {
			phase.Status = PhaseStatusFailed
			o.mu.Unlock()
			o.publish("task.phase.failed", t, map[string]interface{}{"phase": phase.Ordinal})
			return subtaskErr
		}
		phase.Status = PhaseStatusSkipped
		o.mu.Unlock()
		o.publish("task.phase.skipped", t, map[string]interface{}{"phase": phase.Ordinal})
		return nil
	}
	phase.Status = PhaseStatusCompleted
	o.mu.Unlock()

	files := collectFiles(phase)
	o.mu.Lock()
	t.FilesModified = mergeFiles(t.FilesModified, files)
	t.CurrentPhase = phase.Ordinal
	o.mu.Unlock()

	o.publish("task.phase.completed", t, map[string]interface{}{"phase": phase.Ordinal, "duration_ms": phase.DurationMs, "files": files, "mode": string(t.Mode)})
	return nil
}

func collectFiles(phase *Phase) []string {
	var files []string
	for _, st := range phase.Subtasks {
		if st.Output != nil {
			files = append(files, st.Output.ModifiedFiles...)
		}
	}
	return files
}

func mergeFiles(existing, add []string) []string {
	set := make(map[string]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, f := range existing {
		set[f] = true
	}
	for _, f := range add {
		if !set[f] {
			set[f] = true
			out = append(out, f)
		}
	}
	return out
}

func (o *Orchestrator) priorResultsForTask(t *Task) map[agent.Type]agent.Result {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[agent.Type]agent.Result)
	for _, phase := range t.Phases {
		for _, st := range phase.Subtasks {
			if st.Output != nil && st.Output.Success {
				out[st.AgentType] = *st.Output
			}
		}
	}
	return out
}

// runSubtask runs one subtask to completion or failure, applying retries
// with backoff and cost-cap enforcement per spec §4.1 steps 3.e-3.g.
func (o *Orchestrator) runSubtask(ctx context.Context, t *Task, phase *Phase, st *Subtask, cfg modes.Config, priorResults map[agent.Type]agent.Result) error {
	for _, dep := range st.DependsOn {
		if !o.dependencySatisfied(t, dep) {
			return errs.New(errs.Internal, "dependency "+dep+" not satisfied before subtask "+st.ID)
		}
	}

	o.mu.Lock()
	st.Status = SubtaskRunning
	o.mu.Unlock()
	o.publish("agent.started", t, map[string]interface{}{"phase": phase.Ordinal, "agent": string(st.AgentType), "subtask": st.ID})

	policy := retry.DefaultPolicy(cfg.MaxRetries)
	timeout := time.Duration(cfg.TaskTimeoutMs) * time.Millisecond

	var result agent.Result
	var finalErr error

	runErr := retry.Do(ctx, policy, errs.Retryable, func(ctx context.Context, attempt int) error {
		v, err := o.pool.Submit(ctx, timeout, func(ctx context.Context) (interface{}, error) {
			task := agent.Task{ID: st.ID, TaskID: t.ID, Description: st.Description, Input: st.Input}
			return o.registry.ExecuteWithDependencies(ctx, st.AgentType, task, priorResults, func(pct int) {
				o.publish("agent.progress", t, map[string]interface{}{"phase": phase.Ordinal, "agent": string(st.AgentType), "progress": pct})
			})
		})
		if err != nil {
			finalErr = err
			return err
		}
		result = v.(agent.Result)
		if !result.Success {
			finalErr = errs.New(errs.Provider, result.Error)
			return finalErr
		}
		return nil
	})

	if runErr != nil {
		o.mu.Lock()
		st.Status = SubtaskFailed
		o.mu.Unlock()
		o.publish("agent.failed", t, map[string]interface{}{"phase": phase.Ordinal, "agent": string(st.AgentType), "subtask": st.ID, "error": runErr.Error()})
		return finalErr
	}

	cost := o.accrueCost(t, result)
	o.mu.Lock()
	st.Status = SubtaskCompleted
	st.Output = &result
	if t.Results[phase.Ordinal] == nil {
		t.Results[phase.Ordinal] = make(map[string]agent.Result)
	}
	t.Results[phase.Ordinal][st.ID] = result
	o.mu.Unlock()
	o.publish("agent.completed", t, map[string]interface{}{"phase": phase.Ordinal, "agent": string(st.AgentType), "subtask": st.ID})

	if cfg.CostLimit != nil && cost >= *cfg.CostLimit {
		o.publish("cost.limit.reached", t, map[string]interface{}{"cost": cost, "limit": *cfg.CostLimit})
		return errs.New(errs.CostExceeded, "task cost cap reached")
	}
	return nil
}

func (o *Orchestrator) dependencySatisfied(t *Task, subtaskID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, phase := range t.Phases {
		for _, st := range phase.Subtasks {
			if st.ID == subtaskID {
				return st.Status == SubtaskCompleted
			}
		}
	}
	return false
}

// accrueCost adds the subtask's token/cost deltas to the task and publishes
// cost.incurred. Token and cost counters are monotonically non-decreasing
// per spec §4.1's numeric semantics.
func (o *Orchestrator) accrueCost(t *Task, result agent.Result) float64 {
	o.mu.Lock()
	t.TokensUsed += result.TokensIn + result.TokensOut
	t.Cost += result.Cost
	cost := t.Cost
	o.mu.Unlock()
	o.publish("cost.incurred", t, map[string]interface{}{"tokens_in": result.TokensIn, "tokens_out": result.TokensOut, "cost": result.Cost, "cumulative_cost": cost})
	return cost
}
