package modes

import (
	"sync"

	"orchestrator/internal/agent"
)

type costStrategy struct {
	mu  sync.RWMutex
	cfg Config
}

func newCostStrategy() *costStrategy {
	limit := 1.00
	return &costStrategy{
		cfg: Config{
			DecompositionDepth: "shallow",
			Parallelization:    "conservative",
			ValidationDepth:    "minimal",
			PrimaryModel:       ModelSelection{Provider: "ollama", Model: "local-small", Temperature: 0.2, MaxTokens: 4096},
			FallbackModel:      ModelSelection{Provider: "cloud-cheap", Model: "cheapest", Temperature: 0.2, MaxTokens: 4096},
			UseLocalModels:     true,
			RequiredAgents:     []agent.Type{agent.TypeImplement},
			OptionalAgents:     []agent.Type{agent.TypeTest},
			TaskTimeoutMs:      180_000,
			MaxRetries:         2,
			CostLimit:          &limit,
		},
	}
}

func (s *costStrategy) Name() Name { return COST }

func (s *costStrategy) Decompose(description string, _ Complexity) ([]PhaseSpec, error) {
	return []PhaseSpec{
		{Name: "implement", Required: true, Subtasks: []SubtaskSpec{
			{ID: "implement-1", Description: description, AgentType: agent.TypeImplement},
		}},
		{Name: "test", Required: false, Subtasks: []SubtaskSpec{
			{ID: "test-1", Description: "test: " + description, AgentType: agent.TypeTest, DependsOn: []string{"implement-1"}},
		}},
	}, nil
}

func (s *costStrategy) SelectAgents(_ string) AgentSelection {
	return AgentSelection{Primary: agent.TypeImplement, Secondary: []agent.Type{agent.TypeTest}}
}

func (s *costStrategy) ValidationConfig() ValidationConfig {
	return ValidationConfig{Build: true}
}

// SelectModel uses local models for simple/medium complexity and the
// cheapest cloud model for complex tasks, per spec §4.2.
func (s *costStrategy) SelectModel(complexity Complexity) ModelSelection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if complexity == Complex {
		return s.cfg.FallbackModel
	}
	return s.cfg.PrimaryModel
}

// ShouldContinue implements spec §4.2's COST-only early-stop rule.
func (s *costStrategy) ShouldContinue(currentCost float64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg.CostLimit == nil {
		return true
	}
	return currentCost < *s.cfg.CostLimit
}

func (s *costStrategy) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *costStrategy) MutateConfig(patch func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	patch(&s.cfg)
}
