package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"orchestrator/internal/errs"
)

// LlamaCppProvider implements Provider against an OpenAI-compatible
// llama-server endpoint, grounded on pkg/llm/llamacpp.go and pkg/llm/server.go.
type LlamaCppProvider struct {
	baseURL string
	client  *http.Client
	models  []ModelInfo
}

// NewLlamaCppProvider constructs a provider pointed at a running llama-server.
func NewLlamaCppProvider(baseURL string, models []ModelInfo) *LlamaCppProvider {
	return &LlamaCppProvider{baseURL: baseURL, client: &http.Client{}, models: models}
}

func (l *LlamaCppProvider) Generate(ctx context.Context, prompt string, opts Options) (Result, error) {
	start := time.Now()

	body := map[string]interface{}{
		"prompt":      prompt,
		"temperature": opts.Temperature,
		"n_predict":   opts.MaxTokens,
		"stop":        opts.StopSequences,
	}
	reqBody, err := json.Marshal(body)
	if err != nil {
		return Result{}, errs.Wrap(errs.Internal, "marshal llama.cpp request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/completion", bytes.NewReader(reqBody))
	if err != nil {
		return Result{}, errs.Wrap(errs.Internal, "build llama.cpp request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return Result{}, errs.Wrap(errs.Transient, "llama.cpp request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return Result{}, errs.New(errs.Provider, fmt.Sprintf("llama.cpp returned status %d: %s", resp.StatusCode, string(b)))
	}

	var out struct {
		Content          string `json:"content"`
		Stop             bool   `json:"stop"`
		TokensPredicted  int    `json:"tokens_predicted"`
		TokensEvaluated  int    `json:"tokens_evaluated"`
		StoppedEOS       bool   `json:"stopped_eos"`
		StoppedLimit     bool   `json:"stopped_limit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, errs.Wrap(errs.Internal, "decode llama.cpp response", err)
	}

	finish := FinishStop
	if out.StoppedLimit {
		finish = FinishLength
	}

	return Result{
		Content:      out.Content,
		Model:        opts.Model,
		TokensIn:     out.TokensEvaluated,
		TokensOut:    out.TokensPredicted,
		FinishReason: finish,
		DurationMs:   time.Since(start).Milliseconds(),
	}, nil
}

func (l *LlamaCppProvider) GenerateStream(ctx context.Context, prompt string, opts Options) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 1)
	go func() {
		defer close(ch)
		result, err := l.Generate(ctx, prompt, opts)
		if err != nil {
			ch <- StreamChunk{Done: true}
			return
		}
		ch <- StreamChunk{Content: result.Content, Done: false}
		ch <- StreamChunk{Done: true}
	}()
	return ch, nil
}

func (l *LlamaCppProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return l.models, nil
}

func (l *LlamaCppProvider) HealthCheck(ctx context.Context) Health {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/health", nil)
	if err != nil {
		return Health{Healthy: false, Error: err.Error()}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Health{Healthy: false, Error: err.Error()}
	}
	defer resp.Body.Close()
	return Health{Healthy: resp.StatusCode == http.StatusOK, LatencyMs: time.Since(start).Milliseconds()}
}

func (l *LlamaCppProvider) EstimateCost(tokensIn, tokensOut int, model string) (float64, error) {
	for _, m := range l.models {
		if m.ID == model {
			return EstimateCost(tokensIn, tokensOut, m.PriceInPer1K, m.PriceOutPer1K), nil
		}
	}
	return 0, nil
}
