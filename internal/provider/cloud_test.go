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

func newCloudTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "cloud response"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 20, "completion_tokens": 10},
		})
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	})
	return httptest.NewServer(mux)
}

func TestCloudProviderGenerateAuthenticatesWithBearerToken(t *testing.T) {
	srv := newCloudTestServer(t)
	defer srv.Close()

	p := NewCloudProvider(srv.URL, srv.URL+"/oauth/token", "client-id", "client-secret", nil)
	result, err := p.Generate(context.Background(), "hello", Options{Model: "gpt-cloud"})
	require.NoError(t, err)
	assert.Equal(t, "cloud response", result.Content)
	assert.Equal(t, 20, result.TokensIn)
	assert.Equal(t, 10, result.TokensOut)
	assert.Equal(t, FinishStop, result.FinishReason)
}

func TestCloudProviderHealthCheck(t *testing.T) {
	srv := newCloudTestServer(t)
	defer srv.Close()

	p := NewCloudProvider(srv.URL, srv.URL+"/oauth/token", "client-id", "client-secret", nil)
	h := p.HealthCheck(context.Background())
	assert.True(t, h.Healthy)
}

func TestCloudProviderEstimateCost(t *testing.T) {
	p := NewCloudProvider("http://unused", "http://unused/token", "id", "secret",
		[]ModelInfo{{ID: "gpt-cloud", PriceInPer1K: 0.02, PriceOutPer1K: 0.04}})
	cost, err := p.EstimateCost(1000, 1000, "gpt-cloud")
	require.NoError(t, err)
	assert.InDelta(t, 0.06, cost, 1e-9)
}
