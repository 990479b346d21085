package modes

import (
	"sync"

	"orchestrator/internal/agent"
)

type autonomyStrategy struct {
	mu  sync.RWMutex
	cfg Config
}

func newAutonomyStrategy() *autonomyStrategy {
	return &autonomyStrategy{
		cfg: Config{
			DecompositionDepth:   "deep",
			Parallelization:      "balanced",
			ValidationDepth:      "comprehensive",
			RequireHumanApproval: true,
			PrimaryModel:         ModelSelection{Provider: "ollama", Model: "large", Temperature: 0.3, MaxTokens: 8192},
			FallbackModel:        ModelSelection{Provider: "ollama", Model: "small", Temperature: 0.3, MaxTokens: 4096},
			UseLocalModels:       true,
			RequiredAgents: []agent.Type{
				agent.TypeConcept, agent.TypeArchitect, agent.TypeImplement,
				agent.TypeTest, agent.TypeReview, agent.TypeSecurity, agent.TypeDocs, agent.TypeDeploy,
			},
			OptionalAgents: []agent.Type{agent.TypeOptimize},
			TaskTimeoutMs:  1_800_000,
			MaxRetries:     5,
		},
	}
}

func (s *autonomyStrategy) Name() Name { return AUTONOMY }

func (s *autonomyStrategy) Decompose(description string, _ Complexity) ([]PhaseSpec, error) {
	return []PhaseSpec{
		{Name: "analysis", Required: true, Subtasks: []SubtaskSpec{
			{ID: "analysis-1", Description: "analysis: " + description, AgentType: agent.TypeConcept},
		}},
		{Name: "architecture", Required: true, Subtasks: []SubtaskSpec{
			{ID: "architecture-1", Description: "architecture: " + description, AgentType: agent.TypeArchitect, DependsOn: []string{"analysis-1"}},
		}},
		{Name: "implementation", Parallel: true, Required: true, Subtasks: []SubtaskSpec{
			{ID: "implementation-1", Description: "implement: " + description, AgentType: agent.TypeImplement, DependsOn: []string{"architecture-1"}},
		}},
		{Name: "testing", Required: true, Subtasks: []SubtaskSpec{
			{ID: "testing-1", Description: "test: " + description, AgentType: agent.TypeTest, DependsOn: []string{"implementation-1"}},
		}},
		{Name: "review-security", Parallel: true, Required: true, Subtasks: []SubtaskSpec{
			{ID: "review-1", Description: "review: " + description, AgentType: agent.TypeReview, DependsOn: []string{"testing-1"}},
			{ID: "security-1", Description: "security: " + description, AgentType: agent.TypeSecurity, DependsOn: []string{"testing-1"}},
		}},
		{Name: "optimization", Required: false, Subtasks: []SubtaskSpec{
			{ID: "optimization-1", Description: "optimize: " + description, AgentType: agent.TypeOptimize, DependsOn: []string{"testing-1"}},
		}},
		{Name: "docs", Required: true, Subtasks: []SubtaskSpec{
			{ID: "docs-1", Description: "docs: " + description, AgentType: agent.TypeDocs, DependsOn: []string{"review-1", "security-1"}},
		}},
		{Name: "deploy", Required: true, Subtasks: []SubtaskSpec{
			{ID: "deploy-1", Description: "deploy: " + description, AgentType: agent.TypeDeploy, DependsOn: []string{"review-1", "security-1"}},
		}},
	}, nil
}

func (s *autonomyStrategy) SelectAgents(_ string) AgentSelection {
	return AgentSelection{
		Primary: agent.TypeImplement,
		Secondary: []agent.Type{
			agent.TypeConcept, agent.TypeArchitect, agent.TypeTest,
			agent.TypeReview, agent.TypeSecurity, agent.TypeDocs, agent.TypeDeploy,
		},
		Skip: []agent.Type{agent.TypeOptimize},
	}
}

func (s *autonomyStrategy) ValidationConfig() ValidationConfig {
	return ValidationConfig{
		Typecheck: true, Lint: true, Build: true, Tests: true,
		RequireReview: true, RequireSecurityScan: true, MinCoverage: 0.80,
	}
}

func (s *autonomyStrategy) SelectModel(complexity Complexity) ModelSelection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if complexity == Complex {
		return s.cfg.PrimaryModel
	}
	if s.cfg.UseLocalModels {
		return s.cfg.FallbackModel
	}
	return s.cfg.PrimaryModel
}

func (s *autonomyStrategy) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *autonomyStrategy) MutateConfig(patch func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	patch(&s.cfg)
}
