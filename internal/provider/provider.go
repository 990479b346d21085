// Package provider abstracts AI text-generation backends per spec §4.5,
// grounded on PedroCLI's pkg/llm.Backend interface and pkg/llm/factory.go's
// constructor registry keyed by backend type string.
package provider

import (
	"context"
)

// FinishReason closes the taxonomy of generation outcomes.
type FinishReason string

const (
	FinishStop   FinishReason = "stop"
	FinishLength FinishReason = "length"
	FinishError  FinishReason = "error"
)

// Options parameterizes a single generation call.
type Options struct {
	Model         string
	Temperature   float64 // [0,2]
	MaxTokens     int     // >0
	StopSequences []string
	SystemPrompt  string
	TimeoutMs     int
}

// Result is the outcome of a one-shot generation call.
type Result struct {
	Content      string
	Model        string
	TokensIn     int
	TokensOut    int
	FinishReason FinishReason
	DurationMs   int64
}

// StreamChunk is one element of a generateStream sequence.
type StreamChunk struct {
	Content string
	Done    bool
}

// ModelInfo describes a model the provider can serve.
type ModelInfo struct {
	ID           string
	ContextSize  int
	PriceInPer1K float64
	PriceOutPer1K float64
}

// Health reports provider liveness.
type Health struct {
	Healthy   bool
	LatencyMs int64
	Error     string
}

// Provider is the abstract text-generation contract every backend implements.
type Provider interface {
	Generate(ctx context.Context, prompt string, opts Options) (Result, error)
	GenerateStream(ctx context.Context, prompt string, opts Options) (<-chan StreamChunk, error)
	ListModels(ctx context.Context) ([]ModelInfo, error)
	HealthCheck(ctx context.Context) Health
	EstimateCost(tokensIn, tokensOut int, model string) (float64, error)
}

// Registry maps backend type names to constructed Providers, mirroring
// pkg/llm/factory.go's static switch-based lookup.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register installs a named provider, overwriting any prior entry.
func (r *Registry) Register(name string, p Provider) {
	r.providers[name] = p
}

// Get looks up a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names lists registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	return names
}
