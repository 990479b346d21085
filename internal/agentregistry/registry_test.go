package agentregistry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestrator/internal/agent"
	"orchestrator/internal/errs"
)

// fakeAgent is a minimal agent.Agent used to exercise the registry without
// a real provider backend.
type fakeAgent struct {
	typ   agent.Type
	delay time.Duration
	fail  bool

	mu    sync.Mutex
	calls int
}

func (f *fakeAgent) Type() agent.Type                 { return f.typ }
func (f *fakeAgent) Capabilities() agent.Capabilities { return agent.Capabilities{Name: string(f.typ)} }

func (f *fakeAgent) Execute(ctx context.Context, task agent.Task, onProgress agent.ProgressFunc) (agent.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return agent.Result{}, ctx.Err()
		}
	}
	if f.fail {
		return agent.Result{Success: false, Error: "boom"}, nil
	}
	return agent.Result{Success: true, Output: map[string]interface{}{"ok": true}}, nil
}

func (f *fakeAgent) Validate(result agent.Result) agent.ValidationResult {
	return agent.BaseValidate(result)
}

func TestRegisterGetAndUnregister(t *testing.T) {
	r := New(0)
	require.NoError(t, r.Register(&fakeAgent{typ: agent.TypeConcept}))

	a, ok := r.Get(agent.TypeConcept)
	require.True(t, ok)
	assert.Equal(t, agent.TypeConcept, a.Type())

	err := r.Register(&fakeAgent{typ: agent.TypeConcept})
	assert.True(t, errs.Is(err, errs.Conflict))

	require.NoError(t, r.Unregister(agent.TypeConcept))
	_, ok = r.Get(agent.TypeConcept)
	assert.False(t, ok)
}

func TestActiveCountReflectsInFlightExecutions(t *testing.T) {
	r := New(0)
	fa := &fakeAgent{typ: agent.TypeImplement, delay: 50 * time.Millisecond}
	require.NoError(t, r.Register(fa))

	done := make(chan struct{})
	go func() {
		_, _ = r.ExecuteWithDependencies(context.Background(), agent.TypeImplement, agent.Task{}, nil, nil)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, r.ActiveCount())
	<-done
	assert.Equal(t, 0, r.ActiveCount())
}

func TestExecuteWithDependenciesRejectsReentrancy(t *testing.T) {
	r := New(0)
	fa := &fakeAgent{typ: agent.TypeImplement, delay: 50 * time.Millisecond}
	require.NoError(t, r.Register(fa))

	go func() { _, _ = r.ExecuteWithDependencies(context.Background(), agent.TypeImplement, agent.Task{}, nil, nil) }()
	time.Sleep(10 * time.Millisecond)

	_, err := r.ExecuteWithDependencies(context.Background(), agent.TypeImplement, agent.Task{}, nil, nil)
	assert.True(t, errs.Is(err, errs.Conflict))
}

func TestExecuteWithDependenciesRejectsOverCap(t *testing.T) {
	r := New(1)
	require.NoError(t, r.Register(&fakeAgent{typ: agent.TypeImplement, delay: 50 * time.Millisecond}))
	require.NoError(t, r.Register(&fakeAgent{typ: agent.TypeTest, delay: 50 * time.Millisecond}))

	go func() { _, _ = r.ExecuteWithDependencies(context.Background(), agent.TypeImplement, agent.Task{}, nil, nil) }()
	time.Sleep(10 * time.Millisecond)

	_, err := r.ExecuteWithDependencies(context.Background(), agent.TypeTest, agent.Task{}, nil, nil)
	assert.True(t, errs.Is(err, errs.Conflict))
}

func TestExecuteWithDependenciesEnrichesContextFromPriorResults(t *testing.T) {
	r := New(0)
	var captured agent.Task
	ca := &captureAgent{fakeAgent: fakeAgent{typ: agent.TypeTest}, onExecute: func(task agent.Task) { captured = task }}
	require.NoError(t, r.Register(ca))

	prior := map[agent.Type]agent.Result{
		agent.TypeImplement: {Output: map[string]interface{}{"code": "package main"}},
	}
	_, err := r.ExecuteWithDependencies(context.Background(), agent.TypeTest, agent.Task{}, prior, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"code": "package main"}, captured.Context["implementResult"])
}

// captureAgent records the task it was executed with, for assertions on
// context-enrichment.
type captureAgent struct {
	fakeAgent
	onExecute func(agent.Task)
}

func (c *captureAgent) Execute(ctx context.Context, task agent.Task, onProgress agent.ProgressFunc) (agent.Result, error) {
	if c.onExecute != nil {
		c.onExecute(task)
	}
	return c.fakeAgent.Execute(ctx, task, onProgress)
}

// TestExecuteWithDependenciesPassesThroughExecuteFailureUnwrapped confirms a
// result that fails Execute but still satisfies BaseValidate (it carries an
// Error message) is returned as-is: no error, Success still false.
func TestExecuteWithDependenciesPassesThroughExecuteFailureUnwrapped(t *testing.T) {
	r := New(0)
	require.NoError(t, r.Register(&fakeAgent{typ: agent.TypeImplement, fail: true}))

	result, err := r.ExecuteWithDependencies(context.Background(), agent.TypeImplement, agent.Task{}, nil, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "boom", result.Error)
}

// invalidatingAgent always executes successfully but never passes its own
// Validate, exercising the distinct errs.Validation wrapping path.
type invalidatingAgent struct{ typ agent.Type }

func (a *invalidatingAgent) Type() agent.Type                 { return a.typ }
func (a *invalidatingAgent) Capabilities() agent.Capabilities { return agent.Capabilities{Name: string(a.typ)} }
func (a *invalidatingAgent) Execute(ctx context.Context, task agent.Task, onProgress agent.ProgressFunc) (agent.Result, error) {
	return agent.Result{Success: true}, nil
}
func (a *invalidatingAgent) Validate(result agent.Result) agent.ValidationResult {
	return agent.ValidationResult{OK: false, Errors: []string{"missing output"}}
}

func TestExecuteWithDependenciesWrapsValidateFailureAsValidationError(t *testing.T) {
	r := New(0)
	require.NoError(t, r.Register(&invalidatingAgent{typ: agent.TypeImplement}))

	result, err := r.ExecuteWithDependencies(context.Background(), agent.TypeImplement, agent.Task{}, nil, nil)
	assert.False(t, result.Success)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Validation))
}

func TestExecuteWithDependenciesUnknownType(t *testing.T) {
	r := New(0)
	_, err := r.ExecuteWithDependencies(context.Background(), agent.TypeImplement, agent.Task{}, nil, nil)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestExecutionOrderLinearChain(t *testing.T) {
	r := New(0)
	levels, err := r.ExecutionOrder([]agent.Type{agent.TypeConcept, agent.TypeArchitect, agent.TypeImplement})
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, []agent.Type{agent.TypeConcept}, levels[0])
	assert.Equal(t, []agent.Type{agent.TypeArchitect}, levels[1])
	assert.Equal(t, []agent.Type{agent.TypeImplement}, levels[2])
}

func TestExecutionOrderParallelSiblingsShareALevel(t *testing.T) {
	r := New(0)
	levels, err := r.ExecutionOrder([]agent.Type{
		agent.TypeImplement, agent.TypeTest, agent.TypeReview, agent.TypeSecurity, agent.TypeDocs,
	})
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, []agent.Type{agent.TypeImplement}, levels[0])
	assert.ElementsMatch(t, []agent.Type{agent.TypeTest, agent.TypeReview, agent.TypeSecurity, agent.TypeDocs}, levels[1])
}

func TestExecutionOrderIgnoresDependenciesOutsideRequestedSet(t *testing.T) {
	r := New(0)
	// TypeArchitect depends on TypeConcept, but TypeConcept isn't requested,
	// so it should schedule immediately at level 0.
	levels, err := r.ExecutionOrder([]agent.Type{agent.TypeArchitect})
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, []agent.Type{agent.TypeArchitect}, levels[0])
}

func TestExecuteParallelRunsAllTypesAndReportsErrorsInline(t *testing.T) {
	r := New(0)
	require.NoError(t, r.Register(&fakeAgent{typ: agent.TypeTest}))
	require.NoError(t, r.Register(&fakeAgent{typ: agent.TypeReview, fail: true}))

	results := r.ExecuteParallel(context.Background(), []agent.Type{agent.TypeTest, agent.TypeReview, agent.TypeSecurity}, agent.Task{}, nil)
	require.Len(t, results, 3)
	assert.True(t, results[agent.TypeTest].Success)
	assert.False(t, results[agent.TypeReview].Success)
	assert.False(t, results[agent.TypeSecurity].Success)
	assert.NotEmpty(t, results[agent.TypeSecurity].Error)
}
