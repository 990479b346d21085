package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"orchestrator/internal/errs"
)

// CloudProvider implements Provider against a hosted OpenAI-compatible
// chat-completions API, authenticating with an OAuth2 client-credentials
// token that clientcredentials.Config refreshes transparently. Generalized
// from llamacpp.go's HTTP-backend shape for a backend that needs bearer-token
// auth rather than a bare local endpoint.
type CloudProvider struct {
	baseURL string
	client  *http.Client
	models  []ModelInfo
}

// NewCloudProvider builds a provider whose requests carry an OAuth2 bearer
// token obtained via the client-credentials grant.
func NewCloudProvider(baseURL, tokenURL, clientID, clientSecret string, models []ModelInfo) *CloudProvider {
	oauthCfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return &CloudProvider{
		baseURL: baseURL,
		client:  oauthCfg.Client(context.Background()),
		models:  models,
	}
}

func (c *CloudProvider) Generate(ctx context.Context, prompt string, opts Options) (Result, error) {
	start := time.Now()

	body := map[string]interface{}{
		"model": opts.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": opts.Temperature,
		"max_tokens":  opts.MaxTokens,
		"stop":        opts.StopSequences,
	}
	reqBody, err := json.Marshal(body)
	if err != nil {
		return Result{}, errs.Wrap(errs.Internal, "marshal cloud provider request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return Result{}, errs.Wrap(errs.Internal, "build cloud provider request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, errs.Wrap(errs.Transient, "cloud provider request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return Result{}, errs.New(errs.Provider, fmt.Sprintf("cloud provider returned status %d: %s", resp.StatusCode, string(b)))
	}

	var out struct {
		Choices []struct {
			Message      struct{ Content string `json:"content"` } `json:"message"`
			FinishReason string                                     `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, errs.Wrap(errs.Internal, "decode cloud provider response", err)
	}
	if len(out.Choices) == 0 {
		return Result{}, errs.New(errs.Provider, "cloud provider returned no choices")
	}

	finish := FinishStop
	if out.Choices[0].FinishReason == "length" {
		finish = FinishLength
	}

	return Result{
		Content:      out.Choices[0].Message.Content,
		Model:        opts.Model,
		TokensIn:     out.Usage.PromptTokens,
		TokensOut:    out.Usage.CompletionTokens,
		FinishReason: finish,
		DurationMs:   time.Since(start).Milliseconds(),
	}, nil
}

func (c *CloudProvider) GenerateStream(ctx context.Context, prompt string, opts Options) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 1)
	go func() {
		defer close(ch)
		result, err := c.Generate(ctx, prompt, opts)
		if err != nil {
			ch <- StreamChunk{Done: true}
			return
		}
		ch <- StreamChunk{Content: result.Content, Done: false}
		ch <- StreamChunk{Done: true}
	}()
	return ch, nil
}

func (c *CloudProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return c.models, nil
}

func (c *CloudProvider) HealthCheck(ctx context.Context) Health {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return Health{Healthy: false, Error: err.Error()}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Health{Healthy: false, Error: err.Error()}
	}
	defer resp.Body.Close()
	return Health{Healthy: resp.StatusCode == http.StatusOK, LatencyMs: time.Since(start).Milliseconds()}
}

func (c *CloudProvider) EstimateCost(tokensIn, tokensOut int, model string) (float64, error) {
	for _, m := range c.models {
		if m.ID == model {
			return EstimateCost(tokensIn, tokensOut, m.PriceInPer1K, m.PriceOutPer1K), nil
		}
	}
	return 0, nil
}
