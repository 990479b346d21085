package modes

import (
	"sync"

	"orchestrator/internal/agent"
)

type speedStrategy struct {
	mu  sync.RWMutex
	cfg Config
}

func newSpeedStrategy() *speedStrategy {
	return &speedStrategy{
		cfg: Config{
			DecompositionDepth: "shallow",
			Parallelization:    "aggressive",
			ValidationDepth:    "minimal",
			PrimaryModel:       ModelSelection{Provider: "ollama", Model: "default", Temperature: 0.2, MaxTokens: 4096},
			RequiredAgents:     []agent.Type{agent.TypeImplement},
			OptionalAgents:     []agent.Type{agent.TypeTest},
			TaskTimeoutMs:      120_000,
			MaxRetries:         1,
		},
	}
}

func (s *speedStrategy) Name() Name { return SPEED }

func (s *speedStrategy) Decompose(description string, _ Complexity) ([]PhaseSpec, error) {
	return []PhaseSpec{
		{
			Name:     "implement",
			Parallel: true,
			Required: true,
			Subtasks: []SubtaskSpec{
				{ID: "implement-1", Description: description, AgentType: agent.TypeImplement},
			},
		},
		{
			Name:     "verify",
			Parallel: false,
			Required: false,
			Subtasks: []SubtaskSpec{
				{ID: "verify-1", Description: "verify " + description, AgentType: agent.TypeTest, DependsOn: []string{"implement-1"}},
			},
		},
	}, nil
}

func (s *speedStrategy) SelectAgents(_ string) AgentSelection {
	return AgentSelection{Primary: agent.TypeImplement, Secondary: []agent.Type{agent.TypeTest}}
}

func (s *speedStrategy) ValidationConfig() ValidationConfig {
	return ValidationConfig{Build: true}
}

func (s *speedStrategy) SelectModel(_ Complexity) ModelSelection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.PrimaryModel
}

func (s *speedStrategy) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *speedStrategy) MutateConfig(patch func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	patch(&s.cfg)
}
