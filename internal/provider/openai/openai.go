package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vnmchuo/quill/internal/provider"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type OpenAIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type responsesRequest struct {
	Model     string            `json:"model"`
	Input     []inputMessage    `json:"input"`
	Reasoning *reasoningOptions `json:"reasoning,omitempty"`
	Text      *textOptions      `json:"text,omitempty"`
}

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type reasoningOptions struct {
	Effort string `json:"effort"`
}

type textOptions struct {
	Verbosity string `json:"verbosity"`
}

type responsesResponse struct {
	ID         string          `json:"id"`
	Model      string          `json:"model"`
	OutputText *string         `json:"output_text"`
	Output     []outputItem    `json:"output"`
	Usage      json.RawMessage `json:"usage"`
}

type outputItem struct {
	Type    string          `json:"type"`
	Content []outputContent `json:"content"`
}

type outputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func New(apiKey, baseURL string) provider.Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	body, err := json.Marshal(p.mapRequest(req))
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/responses", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var out responsesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("openai api returned an unreadable response: %w", err)
	}

	return &provider.Response{
		ID:        out.ID,
		Content:   strings.TrimSpace(out.text()),
		Model:     out.Model,
		Provider:  p.Name(),
		LatencyMs: time.Since(start).Milliseconds(),
		Usage:     out.Usage,
	}, nil
}

// text prefers the aggregated output_text and otherwise joins every output_text part.
func (r *responsesResponse) text() string {
	if r.OutputText != nil {
		return *r.OutputText
	}
	var b strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				b.WriteString(c.Text)
			}
		}
	}
	return b.String()
}

func (p *OpenAIProvider) mapRequest(req *provider.Request) responsesRequest {
	input := make([]inputMessage, len(req.Messages))
	for i, m := range req.Messages {
		input[i] = inputMessage{Role: m.Role, Content: m.Content}
	}

	out := responsesRequest{
		Model: req.Model,
		Input: input,
	}
	if req.ReasoningEffort != "" {
		out.Reasoning = &reasoningOptions{Effort: req.ReasoningEffort}
	}
	if req.Verbosity != "" {
		out.Text = &textOptions{Verbosity: req.Verbosity}
	}
	return out
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) SupportedModels() []string {
	return []string{"gpt-5", "gpt-5-mini", "gpt-5-nano"}
}
