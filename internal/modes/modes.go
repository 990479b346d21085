// Package modes implements the Mode Manager and the four execution
// strategies (SPEED, QUALITY, AUTONOMY, COST) of spec §4.2. Strategy
// selection is a static registry populated at startup (spec §9: no dynamic
// class lookup), grounded on the static switch-based constructor table in
// PedroCLI's pkg/agents/factory.go.
package modes

import (
	"strings"
	"sync"

	"orchestrator/internal/agent"
	"orchestrator/internal/errs"
	"orchestrator/internal/eventbus"
)

// Name is the closed set of mode identifiers.
type Name string

const (
	SPEED    Name = "SPEED"
	QUALITY  Name = "QUALITY"
	AUTONOMY Name = "AUTONOMY"
	COST     Name = "COST"
)

// Complexity is the closed classification produced by Orchestrator.analyze.
type Complexity string

const (
	Simple  Complexity = "simple"
	Medium  Complexity = "medium"
	Complex Complexity = "complex"
)

// ModelSelection describes the provider/model/sampling choice for a call.
type ModelSelection struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
}

// ValidationConfig is the per-mode validation profile.
type ValidationConfig struct {
	Typecheck           bool
	Lint                bool
	Build               bool
	Tests               bool
	RequireReview       bool
	RequireSecurityScan bool
	MinCoverage         float64 // 0 means unset
}

// AgentSelection is the primary/secondary/skip agent partition for a task.
type AgentSelection struct {
	Primary   agent.Type
	Secondary []agent.Type
	Skip      []agent.Type
}

// SubtaskSpec is the decomposition-time description of one subtask.
type SubtaskSpec struct {
	ID          string
	Description string
	AgentType   agent.Type
	DependsOn   []string
}

// PhaseSpec is the decomposition-time description of one phase.
type PhaseSpec struct {
	Name     string
	Parallel bool
	Required bool
	Subtasks []SubtaskSpec
}

// Config is the mode configuration record of spec §3.
type Config struct {
	DecompositionDepth   string // shallow, standard, deep
	Parallelization      string // aggressive, balanced, conservative
	ValidationDepth      string // minimal, standard, comprehensive
	RequireHumanApproval bool
	PrimaryModel         ModelSelection
	FallbackModel        ModelSelection
	UseLocalModels       bool
	RequiredAgents       []agent.Type
	OptionalAgents       []agent.Type
	TaskTimeoutMs        int64
	MaxRetries           int
	CostLimit            *float64
}

// Strategy is the per-mode behavior contract of spec §4.2.
type Strategy interface {
	Name() Name
	Decompose(description string, complexity Complexity) ([]PhaseSpec, error)
	SelectAgents(description string) AgentSelection
	ValidationConfig() ValidationConfig
	SelectModel(complexity Complexity) ModelSelection
	Config() Config
}

// ContinuationStrategy is implemented by strategies that can halt early
// (spec: COST.shouldContinue).
type ContinuationStrategy interface {
	ShouldContinue(currentCost float64) bool
}

// ClassifyComplexity applies the closed keyword table of spec §4.1.
func ClassifyComplexity(description string) Complexity {
	d := strings.ToLower(description)
	for _, kw := range []string{"refactor", "architecture", "migrate", "redesign"} {
		if strings.Contains(d, kw) {
			return Complex
		}
	}
	for _, kw := range []string{"add", "create", "implement", "feature"} {
		if strings.Contains(d, kw) {
			return Medium
		}
	}
	for _, kw := range []string{"fix", "update", "change", "modify", "rename", "remove"} {
		if strings.Contains(d, kw) {
			return Simple
		}
	}
	return Medium
}

// Manager holds the active mode and the four strategy instances, and
// publishes mode.switching/mode.switched/mode.config.updated transitions.
type Manager struct {
	mu         sync.RWMutex
	strategies map[Name]Strategy
	active     Name
	switching  bool
	bus        *eventbus.Bus
}

// NewManager builds a Manager with all four baseline strategies registered
// and SPEED active by default.
func NewManager(bus *eventbus.Bus) *Manager {
	m := &Manager{
		strategies: make(map[Name]Strategy),
		active:     SPEED,
		bus:        bus,
	}
	m.strategies[SPEED] = newSpeedStrategy()
	m.strategies[QUALITY] = newQualityStrategy()
	m.strategies[AUTONOMY] = newAutonomyStrategy()
	m.strategies[COST] = newCostStrategy()
	return m
}

// Active returns the currently active mode name.
func (m *Manager) Active() Name {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Strategy returns the Strategy for a given mode (the active one, or any
// named mode, since all four remain constructed regardless of which is active —
// spec §4.1: in-flight tasks keep running under the mode they started with).
func (m *Manager) Strategy(name Name) (Strategy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.strategies[name]
	return s, ok
}

// SwitchMode transitions the active mode, rejecting a concurrent switch.
func (m *Manager) SwitchMode(target Name) error {
	m.mu.Lock()
	if m.switching {
		m.mu.Unlock()
		return errs.New(errs.Conflict, "mode switch already in progress")
	}
	if _, ok := m.strategies[target]; !ok {
		m.mu.Unlock()
		return errs.New(errs.Validation, "unknown mode "+string(target))
	}
	m.switching = true
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish("mode.switching", map[string]interface{}{"target": string(target)}, eventbus.PublishOptions{AggregateType: "mode"})
	}

	m.mu.Lock()
	m.active = target
	m.switching = false
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish("mode.switched", map[string]interface{}{"mode": string(target)}, eventbus.PublishOptions{AggregateType: "mode"})
	}
	return nil
}

// UpdateConfig merges patch into a mode's baseline config via patch and
// publishes mode.config.updated. patch mutates the Config in place.
func (m *Manager) UpdateConfig(name Name, patch func(*Config)) error {
	m.mu.Lock()
	s, ok := m.strategies[name]
	if !ok {
		m.mu.Unlock()
		return errs.New(errs.NotFound, "unknown mode "+string(name))
	}
	cfgHolder, ok := s.(interface{ MutateConfig(func(*Config)) })
	m.mu.Unlock()
	if !ok {
		return errs.New(errs.Internal, "strategy does not support config updates")
	}
	cfgHolder.MutateConfig(patch)
	if m.bus != nil {
		m.bus.Publish("mode.config.updated", map[string]interface{}{"mode": string(name)}, eventbus.PublishOptions{AggregateType: "mode"})
	}
	return nil
}
