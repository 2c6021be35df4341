package billing

import (
	"encoding/json"
	"math"
)

// Tokens is the triple extracted from one completion's usage payload.
type Tokens struct {
	Input  int64 `json:"inputTokens"`
	Output int64 `json:"outputTokens"`
	Cache  int64 `json:"cacheTokens"`
}

// fieldPath addresses a number inside a decoded usage object, outermost key first.
type fieldPath []string

// Rules are tried in order; the first path that resolves to a non-negative whole number
// wins.
// New API revisions are supported by appending paths here.
var (
	inputRules = []fieldPath{
		{"input_tokens"},
		{"prompt_tokens"},
	}
	outputRules = []fieldPath{
		{"output_tokens"},
		{"completion_tokens"},
	}
	cacheRules = []fieldPath{
		{"input_token_details", "cached_tokens"},
		{"input_tokens_details", "cached_tokens"},
		{"prompt_tokens_details", "cached_tokens"},
		{"prompt_tokens_cached"},
	}
)

// ExtractTokens normalizes a raw usage payload. Malformed or missing input yields zeros.
func ExtractTokens(raw json.RawMessage) Tokens {
	var usage map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &usage) != nil {
		return Tokens{}
	}
	return Tokens{
		Input:  firstPresent(usage, inputRules),
		Output: firstPresent(usage, outputRules),
		Cache:  firstPresent(usage, cacheRules),
	}
}

func firstPresent(usage map[string]any, rules []fieldPath) int64 {
	for _, path := range rules {
		if n, ok := lookup(usage, path); ok {
			return n
		}
	}
	return 0
}

func lookup(obj map[string]any, path fieldPath) (int64, bool) {
	var cur any = obj
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return 0, false
		}
		if cur, ok = m[key]; !ok {
			return 0, false
		}
	}

	// Only whole counts that fit an int64 are tokens; 1<<63 is the first float64 past
	// math.MaxInt64.
	f, ok := cur.(float64)
	if !ok || math.IsNaN(f) || f < 0 || f >= 1<<63 || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
