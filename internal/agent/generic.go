package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"orchestrator/internal/provider"
)

// PromptAgent is a single provider-backed Agent whose behavior is
// parameterized by Type, a capability declaration, and a prompt template.
// It stands in for the per-language agent bodies spec.md places out of
// scope, generalizing PedroCLI's BaseAgent (pkg/agents/base.go) from a
// tool-calling coding assistant down to the execute(Task)->Result contract.
type PromptAgent struct {
	typ      Type
	caps     Capabilities
	provider provider.Provider
	model    string
}

// NewPromptAgent builds a PromptAgent bound to one backend and model.
func NewPromptAgent(typ Type, caps Capabilities, p provider.Provider, model string) *PromptAgent {
	return &PromptAgent{typ: typ, caps: caps, provider: p, model: model}
}

func (a *PromptAgent) Type() Type                 { return a.typ }
func (a *PromptAgent) Capabilities() Capabilities { return a.caps }

// maxTokensCeiling bounds the doubled-maxTokens retry below (spec boundary
// behavior: "retry once with maxTokens×2 bounded by provider max"). The three
// shipped backends (Ollama, llama.cpp, the OpenAI-compatible cloud provider)
// all serve models well under a 32k-token completion budget in practice, so
// this is the deterministic ceiling rather than a live per-model lookup.
const maxTokensCeiling = 32768

func (a *PromptAgent) Execute(ctx context.Context, task Task, onProgress ProgressFunc) (Result, error) {
	start := time.Now()
	if onProgress != nil {
		onProgress(5)
	}

	systemPrompt := a.caps.Description
	userPrompt := task.Description
	if len(task.Context) > 0 {
		if ctxJSON, err := json.Marshal(task.Context); err == nil {
			userPrompt += "\n\nPrior results:\n" + string(ctxJSON)
		}
	}
	prompt := provider.BuildChatPrompt(systemPrompt, userPrompt)
	opts := provider.Options{Model: a.model, Temperature: 0.2, MaxTokens: 4096}

	genResult, err := a.provider.Generate(ctx, prompt, opts)
	if err != nil {
		return Result{Success: false, Error: err.Error(), DurationMs: time.Since(start).Milliseconds()}, err
	}
	if onProgress != nil {
		onProgress(50)
	}

	// Boundary behavior: a truncated completion gets exactly one retry at
	// double the token budget, capped at maxTokensCeiling. If it still comes
	// back truncated (or the retry budget is already at the ceiling), the
	// agent succeeds with the output explicitly marked truncated rather than
	// failing or retrying indefinitely.
	truncated := false
	if genResult.FinishReason == provider.FinishLength {
		doubled := opts.MaxTokens * 2
		if doubled > maxTokensCeiling {
			doubled = maxTokensCeiling
		}
		if doubled > opts.MaxTokens {
			retryOpts := opts
			retryOpts.MaxTokens = doubled
			if retried, retryErr := a.provider.Generate(ctx, prompt, retryOpts); retryErr == nil {
				genResult = retried
			}
		}
		truncated = genResult.FinishReason == provider.FinishLength
	}
	if onProgress != nil {
		onProgress(80)
	}

	cost, err := a.provider.EstimateCost(genResult.TokensIn, genResult.TokensOut, genResult.Model)
	if err != nil {
		cost = 0
	}

	output := map[string]interface{}{
		"response":  genResult.Content,
		"code":      provider.ExtractFencedCode(genResult.Content),
		"truncated": truncated,
	}

	if onProgress != nil {
		onProgress(100)
	}

	return Result{
		Success:    genResult.FinishReason != provider.FinishError,
		Output:     output,
		DurationMs: time.Since(start).Milliseconds(),
		TokensIn:   genResult.TokensIn,
		TokensOut:  genResult.TokensOut,
		Cost:       provider.RoundCost(cost),
	}, nil
}

func (a *PromptAgent) Validate(result Result) ValidationResult {
	if v := BaseValidate(result); !v.OK {
		return v
	}
	if result.Success && len(result.Output) == 0 {
		return ValidationResult{OK: false, Errors: []string{fmt.Sprintf("%s agent returned no output", a.typ)}}
	}
	return ValidationResult{OK: true}
}

// DefaultCapabilities returns the capability declaration shipped for each
// closed agent type, per spec §4.3's type table.
func DefaultCapabilities(typ Type) Capabilities {
	switch typ {
	case TypeConcept:
		return Capabilities{Name: "concept", Description: "Clarifies requirements and produces a design brief", Capabilities: []string{"requirements-analysis"}, Outputs: []string{"brief"}, EstimatedDurationMs: 30_000}
	case TypeArchitect:
		return Capabilities{Name: "architect", Description: "Designs system structure and interfaces", Capabilities: []string{"system-design"}, Outputs: []string{"design"}, EstimatedDurationMs: 60_000}
	case TypeImplement:
		return Capabilities{Name: "implement", Description: "Writes source code implementing a design", Capabilities: []string{"code-generation"}, Outputs: []string{"files"}, EstimatedDurationMs: 120_000}
	case TypeTest:
		return Capabilities{Name: "test", Description: "Writes and runs tests against implemented code", Capabilities: []string{"test-generation"}, Outputs: []string{"test-report"}, EstimatedDurationMs: 90_000}
	case TypeReview:
		return Capabilities{Name: "review", Description: "Reviews code for correctness and style", Capabilities: []string{"code-review"}, Outputs: []string{"findings"}, EstimatedDurationMs: 45_000}
	case TypeOptimize:
		return Capabilities{Name: "optimize", Description: "Improves performance of implemented code", Capabilities: []string{"performance-tuning"}, Outputs: []string{"files"}, EstimatedDurationMs: 90_000}
	case TypeDocs:
		return Capabilities{Name: "docs", Description: "Writes documentation for a change", Capabilities: []string{"doc-generation"}, Outputs: []string{"docs"}, EstimatedDurationMs: 30_000}
	case TypeDeploy:
		return Capabilities{Name: "deploy", Description: "Prepares deployment artifacts and steps", Capabilities: []string{"deployment"}, Outputs: []string{"deploy-plan"}, EstimatedDurationMs: 60_000}
	case TypeSecurity:
		return Capabilities{Name: "security", Description: "Audits a change for security issues", Capabilities: []string{"security-audit"}, Outputs: []string{"findings"}, EstimatedDurationMs: 60_000}
	case TypeRefactor:
		return Capabilities{Name: "refactor", Description: "Restructures code without changing behavior", Capabilities: []string{"refactoring"}, Outputs: []string{"files"}, EstimatedDurationMs: 90_000}
	case TypeDebug:
		return Capabilities{Name: "debug", Description: "Diagnoses and fixes a reported defect", Capabilities: []string{"debugging"}, Outputs: []string{"files"}, EstimatedDurationMs: 90_000}
	case TypeMigrate:
		return Capabilities{Name: "migrate", Description: "Migrates code across versions or platforms", Capabilities: []string{"migration"}, Outputs: []string{"files"}, EstimatedDurationMs: 120_000}
	default:
		return Capabilities{Name: string(typ), Description: "generic agent"}
	}
}
