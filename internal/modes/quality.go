package modes

import (
	"strings"
	"sync"

	"orchestrator/internal/agent"
)

type qualityStrategy struct {
	mu  sync.RWMutex
	cfg Config
}

func newQualityStrategy() *qualityStrategy {
	return &qualityStrategy{
		cfg: Config{
			DecompositionDepth: "standard",
			Parallelization:    "balanced",
			ValidationDepth:    "comprehensive",
			PrimaryModel:       ModelSelection{Provider: "ollama", Model: "default", Temperature: 0.3, MaxTokens: 8192},
			RequiredAgents:     []agent.Type{agent.TypeConcept, agent.TypeArchitect, agent.TypeImplement, agent.TypeTest, agent.TypeReview, agent.TypeSecurity, agent.TypeDocs},
			TaskTimeoutMs:      600_000,
			MaxRetries:         3,
		},
	}
}

func (s *qualityStrategy) Name() Name { return QUALITY }

func (s *qualityStrategy) Decompose(description string, _ Complexity) ([]PhaseSpec, error) {
	implementSubtasks := []SubtaskSpec{
		{ID: "implement-feature", Description: description, AgentType: agent.TypeImplement, DependsOn: []string{"architect-1"}},
	}
	d := strings.ToLower(description)
	if strings.Contains(d, "ui") || strings.Contains(d, "translation") || strings.Contains(d, "multilingual") {
		implementSubtasks = append(implementSubtasks, SubtaskSpec{
			ID: "implement-translations", Description: "translations for: " + description,
			AgentType: agent.TypeImplement, DependsOn: []string{"architect-1"},
		})
	}

	return []PhaseSpec{
		{
			Name:     "concept-architecture",
			Parallel: false,
			Required: true,
			Subtasks: []SubtaskSpec{
				{ID: "concept-1", Description: "concept: " + description, AgentType: agent.TypeConcept},
				{ID: "architect-1", Description: "architecture: " + description, AgentType: agent.TypeArchitect, DependsOn: []string{"concept-1"}},
			},
		},
		{
			Name:     "implement",
			Parallel: true,
			Required: true,
			Subtasks: implementSubtasks,
		},
		{
			Name:     "test-review-security",
			Parallel: true,
			Required: true,
			Subtasks: []SubtaskSpec{
				{ID: "test-1", Description: "test: " + description, AgentType: agent.TypeTest, DependsOn: []string{"implement-feature"}},
				{ID: "review-1", Description: "review: " + description, AgentType: agent.TypeReview, DependsOn: []string{"implement-feature"}},
				{ID: "security-1", Description: "security: " + description, AgentType: agent.TypeSecurity, DependsOn: []string{"implement-feature"}},
			},
		},
		{
			Name:     "docs",
			Parallel: false,
			Required: true,
			Subtasks: []SubtaskSpec{
				{ID: "docs-1", Description: "docs: " + description, AgentType: agent.TypeDocs, DependsOn: []string{"test-1", "review-1", "security-1"}},
			},
		},
	}, nil
}

func (s *qualityStrategy) SelectAgents(_ string) AgentSelection {
	return AgentSelection{
		Primary:   agent.TypeImplement,
		Secondary: []agent.Type{agent.TypeConcept, agent.TypeArchitect, agent.TypeTest, agent.TypeReview, agent.TypeSecurity, agent.TypeDocs},
	}
}

func (s *qualityStrategy) ValidationConfig() ValidationConfig {
	return ValidationConfig{
		Typecheck: true, Lint: true, Build: true, Tests: true,
		RequireReview: true, RequireSecurityScan: true, MinCoverage: 0.80,
	}
}

func (s *qualityStrategy) SelectModel(_ Complexity) ModelSelection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.PrimaryModel
}

func (s *qualityStrategy) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *qualityStrategy) MutateConfig(patch func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	patch(&s.cfg)
}
