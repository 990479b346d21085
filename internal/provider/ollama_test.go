package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3", body["model"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"response":          "hello there",
			"done":              true,
			"prompt_eval_count": 10,
			"eval_count":        5,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, []ModelInfo{{ID: "llama3", PriceInPer1K: 0.01, PriceOutPer1K: 0.02}})
	result, err := p.Generate(context.Background(), "say hi", Options{Model: "llama3", MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Content)
	assert.Equal(t, 10, result.TokensIn)
	assert.Equal(t, 5, result.TokensOut)
	assert.Equal(t, FinishStop, result.FinishReason)
}

func TestOllamaProviderGenerateNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, nil)
	_, err := p.Generate(context.Background(), "say hi", Options{Model: "llama3"})
	assert.Error(t, err)
}

func TestOllamaProviderHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, nil)
	h := p.HealthCheck(context.Background())
	assert.True(t, h.Healthy)
}

func TestOllamaProviderEstimateCostUsesModelPricing(t *testing.T) {
	p := NewOllamaProvider("http://unused", []ModelInfo{{ID: "llama3", PriceInPer1K: 0.01, PriceOutPer1K: 0.02}})
	cost, err := p.EstimateCost(1000, 1000, "llama3")
	require.NoError(t, err)
	assert.InDelta(t, 0.03, cost, 1e-9)
}

func TestOllamaProviderEstimateCostUnknownModelIsZero(t *testing.T) {
	p := NewOllamaProvider("http://unused", nil)
	cost, err := p.EstimateCost(1000, 1000, "unknown")
	require.NoError(t, err)
	assert.Equal(t, 0.0, cost)
}

func TestOllamaProviderGenerateStreamEmitsContentThenDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"response": "chunked", "done": true})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, nil)
	ch, err := p.GenerateStream(context.Background(), "say hi", Options{Model: "llama3"})
	require.NoError(t, err)

	var chunks []StreamChunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	require.Len(t, chunks, 2)
	assert.Equal(t, "chunked", chunks[0].Content)
	assert.True(t, chunks[1].Done)
}
