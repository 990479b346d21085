package provider

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
)

var fencedCodeBlock = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9_+-]*)\\n(.*?)```")
var fencedJSONBlock = regexp.MustCompile("(?s)```json\\s*\\n(.*?)```")

// ExtractFencedCode returns the content of the first fenced code block, or
// the raw text unchanged if none is found — grounded on
// pkg/agents/phased_executor.go's sanitize* helpers, which strip
// surrounding markdown narration from model output.
func ExtractFencedCode(text string) string {
	if m := fencedCodeBlock.FindStringSubmatch(text); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ExtractJSON tolerantly extracts a JSON value from model output: it prefers
// a fenced ```json block, then falls back to parsing the raw text, and
// finally to the first top-level {...} or [...] span it can find.
func ExtractJSON(text string, out interface{}) error {
	if m := fencedJSONBlock.FindStringSubmatch(text); len(m) == 2 {
		if err := json.Unmarshal([]byte(m[1]), out); err == nil {
			return nil
		}
	}
	trimmed := strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}
	if span := extractJSONSpan(trimmed); span != "" {
		return json.Unmarshal([]byte(span), out)
	}
	return json.Unmarshal([]byte(trimmed), out)
}

func extractJSONSpan(text string) string {
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return ""
	}
	open := text[start]
	close := byte('}')
	if open == '[' {
		close = ']'
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// BuildChatPrompt assembles a single prompt string from system+user prompts,
// the shape every Backend implementation in pkg/llm expects as input.
func BuildChatPrompt(systemPrompt, userPrompt string) string {
	if systemPrompt == "" {
		return userPrompt
	}
	return systemPrompt + "\n\n" + userPrompt
}

// RoundCost rounds a cost value half-even to 6 fractional digits, per
// spec §4.1's numeric semantics.
func RoundCost(v float64) float64 {
	const scale = 1e6
	scaled := v * scale
	floor := math.Floor(scaled)
	diff := scaled - floor
	var rounded float64
	switch {
	case diff < 0.5:
		rounded = floor
	case diff > 0.5:
		rounded = floor + 1
	default:
		// Exactly .5: round to even.
		if math.Mod(floor, 2) == 0 {
			rounded = floor
		} else {
			rounded = floor + 1
		}
	}
	return rounded / scale
}

// EstimateCost computes the per-call cost per spec §4.1:
// (in/1000)*priceIn + (out/1000)*priceOut, rounded half-even to 6 digits.
func EstimateCost(tokensIn, tokensOut int, priceInPer1K, priceOutPer1K float64) float64 {
	cost := (float64(tokensIn)/1000.0)*priceInPer1K + (float64(tokensOut)/1000.0)*priceOutPer1K
	return RoundCost(cost)
}
