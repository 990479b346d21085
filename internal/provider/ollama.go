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

// OllamaProvider implements Provider against a local Ollama server,
// grounded on pkg/llm/ollama.go's request/response shape.
type OllamaProvider struct {
	baseURL string
	client  *http.Client
	models  []ModelInfo
}

// NewOllamaProvider constructs a provider pointed at baseURL (defaulting to
// the standard local Ollama port when empty).
func NewOllamaProvider(baseURL string, models []ModelInfo) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{baseURL: baseURL, client: &http.Client{}, models: models}
}

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts Options) (Result, error) {
	start := time.Now()

	body := map[string]interface{}{
		"model":  opts.Model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": opts.Temperature,
			"num_predict": opts.MaxTokens,
		},
	}
	reqBody, err := json.Marshal(body)
	if err != nil {
		return Result{}, errs.Wrap(errs.Internal, "marshal ollama request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return Result{}, errs.Wrap(errs.Internal, "build ollama request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return Result{}, errs.Wrap(errs.Transient, "ollama request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return Result{}, errs.New(errs.Provider, fmt.Sprintf("ollama returned status %d: %s", resp.StatusCode, string(b)))
	}

	var out struct {
		Response     string `json:"response"`
		Done         bool   `json:"done"`
		PromptEvalCt int    `json:"prompt_eval_count"`
		EvalCount    int    `json:"eval_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, errs.Wrap(errs.Internal, "decode ollama response", err)
	}

	finish := FinishStop
	if opts.MaxTokens > 0 && out.EvalCount >= opts.MaxTokens {
		finish = FinishLength
	}

	return Result{
		Content:      out.Response,
		Model:        opts.Model,
		TokensIn:     out.PromptEvalCt,
		TokensOut:    out.EvalCount,
		FinishReason: finish,
		DurationMs:   time.Since(start).Milliseconds(),
	}, nil
}

func (o *OllamaProvider) GenerateStream(ctx context.Context, prompt string, opts Options) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 1)
	go func() {
		defer close(ch)
		result, err := o.Generate(ctx, prompt, opts)
		if err != nil {
			ch <- StreamChunk{Done: true}
			return
		}
		ch <- StreamChunk{Content: result.Content, Done: false}
		ch <- StreamChunk{Done: true}
	}()
	return ch, nil
}

func (o *OllamaProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return o.models, nil
}

func (o *OllamaProvider) HealthCheck(ctx context.Context) Health {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return Health{Healthy: false, Error: err.Error()}
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return Health{Healthy: false, Error: err.Error()}
	}
	defer resp.Body.Close()
	return Health{Healthy: resp.StatusCode == http.StatusOK, LatencyMs: time.Since(start).Milliseconds()}
}

func (o *OllamaProvider) EstimateCost(tokensIn, tokensOut int, model string) (float64, error) {
	for _, m := range o.models {
		if m.ID == model {
			return EstimateCost(tokensIn, tokensOut, m.PriceInPer1K, m.PriceOutPer1K), nil
		}
	}
	return 0, nil
}
