package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vnmchuo/quill/internal/provider"
)

func TestComplete_Mock(t *testing.T) {
	var got responsesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("Expected /responses, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "resp_1",
			"model": "gpt-5-mini",
			"output": [
				{"type": "reasoning", "content": []},
				{"type": "message", "content": [{"type": "output_text", "text": "  Bonjour "}, {"type": "output_text", "text": "le monde\n"}]}
			],
			"usage": {"input_tokens": 15, "input_tokens_details": {"cached_tokens": 4}, "output_tokens": 25}
		}`))
	}))
	defer server.Close()

	p := New("test-key", server.URL+"/")

	resp, err := p.Complete(context.Background(), &provider.Request{
		Model:           "gpt-5-mini",
		ReasoningEffort: "low",
		Verbosity:       "high",
		Messages: []provider.Message{
			{Role: "system", Content: "sys"},
			{Role: "user", Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Content != "Bonjour le monde" {
		t.Errorf("Expected trimmed joined text, got %q", resp.Content)
	}
	if resp.Provider != "openai" || resp.ID != "resp_1" {
		t.Errorf("Unexpected response metadata: %+v", resp)
	}
	if !strings.Contains(string(resp.Usage), `"cached_tokens": 4`) {
		t.Errorf("Expected raw usage passed through, got %s", resp.Usage)
	}

	if got.Model != "gpt-5-mini" || len(got.Input) != 2 || got.Input[1].Content != "hi" {
		t.Errorf("Unexpected request body: %+v", got)
	}
	if got.Reasoning == nil || got.Reasoning.Effort != "low" {
		t.Errorf("Expected reasoning effort low, got %+v", got.Reasoning)
	}
	if got.Text == nil || got.Text.Verbosity != "high" {
		t.Errorf("Expected verbosity high, got %+v", got.Text)
	}
}

func TestComplete_OutputTextPreferred(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output_text":"direct","output":[{"type":"message","content":[{"type":"output_text","text":"ignored"}]}]}`))
	}))
	defer server.Close()

	resp, err := New("k", server.URL).Complete(context.Background(), &provider.Request{Model: "gpt-5"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "direct" {
		t.Errorf("Expected output_text, got %q", resp.Content)
	}
}

func TestComplete_OmitsEmptyOptions(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"output":[]}`))
	}))
	defer server.Close()

	if _, err := New("k", server.URL).Complete(context.Background(), &provider.Request{Model: "gpt-5"}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if _, ok := raw["reasoning"]; ok {
		t.Error("reasoning should be omitted when empty")
	}
	if _, ok := raw["text"]; ok {
		t.Error("text should be omitted when empty")
	}
}

func TestComplete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer server.Close()

	_, err := New("k", server.URL).Complete(context.Background(), &provider.Request{Model: "gpt-5"})
	if err == nil || !strings.Contains(err.Error(), "status 401") || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("Expected status error with body, got %v", err)
	}
}

func TestComplete_UnreadableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	if _, err := New("k", server.URL).Complete(context.Background(), &provider.Request{Model: "gpt-5"}); err == nil {
		t.Error("Expected decode error")
	}
}

func TestName(t *testing.T) {
	p := New("key", "")
	if p.Name() != "openai" {
		t.Errorf("Expected 'openai', got %s", p.Name())
	}
}

func TestSupportedModels(t *testing.T) {
	p := New("key", "")
	found := false
	for _, m := range p.SupportedModels() {
		if m == "gpt-5-mini" {
			found = true
			break
		}
	}
	if !found {
		t.Error("gpt-5-mini should be in supported models")
	}
}
