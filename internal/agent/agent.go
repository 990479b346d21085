// Package agent defines the Agent contract of spec §4.3: a component that
// declares capabilities and executes exactly one subtask against an AI
// provider. Grounded on the capability/contract shape implied by PedroCLI's
// pkg/agentregistry.Agent (identity + mode) and pkg/agents/phased_executor.go's
// per-phase agent invocation.
package agent

import (
	"context"
)

// Type is the closed set of agent roles.
type Type string

const (
	TypeConcept    Type = "concept"
	TypeArchitect  Type = "architect"
	TypeImplement  Type = "implement"
	TypeTest       Type = "test"
	TypeReview     Type = "review"
	TypeOptimize   Type = "optimize"
	TypeDocs       Type = "docs"
	TypeDeploy     Type = "deploy"
	TypeSecurity   Type = "security"
	TypeRefactor   Type = "refactor"
	TypeDebug      Type = "debug"
	TypeMigrate    Type = "migrate"
)

// Capabilities describes what an agent declares about itself.
type Capabilities struct {
	Name                string
	Description         string
	Capabilities        []string
	Inputs              []string
	Outputs             []string
	RequiredContext     []string
	EstimatedDurationMs int64
}

// Task is the unit of work handed to Agent.Execute: one PhaseTask/Subtask.
type Task struct {
	ID          string
	TaskID      string
	Description string
	Context     map[string]interface{} // "<agentType>Result" -> output, per spec §9
	Input       map[string]interface{}
}

// Result is the outcome of executing a Task, per spec §3's AgentResult.
type Result struct {
	Success       bool
	Error         string
	Suggestions   []string
	Output        map[string]interface{}
	ModifiedFiles []string
	DurationMs    int64
	TokensIn      int
	TokensOut     int
	Cost          float64
}

// ValidationResult is the outcome of Agent.Validate.
type ValidationResult struct {
	OK     bool
	Errors []string
}

// ProgressFunc reports 0-100 clamped, monotonically non-decreasing progress.
type ProgressFunc func(percent int)

// Agent executes one kind of subtask. Implementations must honor ctx
// cancellation at every external call.
type Agent interface {
	Type() Type
	Capabilities() Capabilities
	Execute(ctx context.Context, task Task, onProgress ProgressFunc) (Result, error)
	Validate(result Result) ValidationResult
}

// BaseValidate implements the minimum rule every agent must uphold:
// success=false implies a non-empty error string.
func BaseValidate(result Result) ValidationResult {
	if !result.Success && result.Error == "" {
		return ValidationResult{OK: false, Errors: []string{"failed result missing error message"}}
	}
	return ValidationResult{OK: true}
}

// ClampProgress clamps p into [0,100] and never reports a value lower than last.
func ClampProgress(p, last int) int {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	if p < last {
		return last
	}
	return p
}
