package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFencedCode(t *testing.T) {
	text := "Here is the change:\n```go\npackage main\n\nfunc main() {}\n```\nLet me know if you need more."
	assert.Equal(t, "package main\n\nfunc main() {}", ExtractFencedCode(text))
}

func TestExtractFencedCodeFallsBackToRawText(t *testing.T) {
	assert.Equal(t, "just plain text", ExtractFencedCode("  just plain text  "))
}

func TestExtractJSONFromFencedBlock(t *testing.T) {
	text := "sure, here:\n```json\n{\"ok\": true, \"count\": 3}\n```\n"
	var out struct {
		OK    bool `json:"ok"`
		Count int  `json:"count"`
	}
	require.NoError(t, ExtractJSON(text, &out))
	assert.True(t, out.OK)
	assert.Equal(t, 3, out.Count)
}

func TestExtractJSONFromRawText(t *testing.T) {
	var out map[string]interface{}
	require.NoError(t, ExtractJSON(`{"a": 1}`, &out))
	assert.Equal(t, float64(1), out["a"])
}

func TestExtractJSONFromSurroundingNarration(t *testing.T) {
	text := "The result is {\"status\": \"done\"} and that's final."
	var out struct {
		Status string `json:"status"`
	}
	require.NoError(t, ExtractJSON(text, &out))
	assert.Equal(t, "done", out.Status)
}

func TestBuildChatPrompt(t *testing.T) {
	assert.Equal(t, "sys\n\nuser", BuildChatPrompt("sys", "user"))
	assert.Equal(t, "user", BuildChatPrompt("", "user"))
}

func TestRoundCostRoundsToSixDigits(t *testing.T) {
	assert.InDelta(t, 0.000123, RoundCost(0.00012301), 1e-9)
	assert.InDelta(t, 0.1, RoundCost(0.1), 1e-9)
	assert.InDelta(t, 0.0, RoundCost(0.0), 1e-9)
}

func TestEstimateCost(t *testing.T) {
	cost := EstimateCost(1000, 500, 0.01, 0.03)
	assert.InDelta(t, 0.025, cost, 1e-9)
}
