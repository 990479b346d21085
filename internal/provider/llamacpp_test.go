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

func TestLlamaCppProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/completion", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content":          "generated text",
			"stop":             true,
			"tokens_predicted": 12,
			"tokens_evaluated": 7,
			"stopped_limit":    true,
		})
	}))
	defer srv.Close()

	p := NewLlamaCppProvider(srv.URL, nil)
	result, err := p.Generate(context.Background(), "prompt", Options{MaxTokens: 12})
	require.NoError(t, err)
	assert.Equal(t, "generated text", result.Content)
	assert.Equal(t, 7, result.TokensIn)
	assert.Equal(t, 12, result.TokensOut)
	assert.Equal(t, FinishLength, result.FinishReason)
}

func TestLlamaCppProviderGenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewLlamaCppProvider(srv.URL, nil)
	_, err := p.Generate(context.Background(), "prompt", Options{})
	assert.Error(t, err)
}

func TestLlamaCppProviderHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
	}))
	defer srv.Close()

	p := NewLlamaCppProvider(srv.URL, nil)
	h := p.HealthCheck(context.Background())
	assert.True(t, h.Healthy)
}
