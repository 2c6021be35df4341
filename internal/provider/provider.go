package provider

import (
	"context"
	"encoding/json"
)

type Request struct {
	Model           string
	ReasoningEffort string // "minimal", "low", "medium", "high"
	Verbosity       string // "low", "medium", "high"
	Messages        []Message
}

type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

type Response struct {
	ID        string
	Content   string
	Model     string
	Provider  string
	LatencyMs int64
	// Usage is the provider's usage object as returned, left for billing to interpret.
	Usage json.RawMessage
}

type Provider interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Name() string
	SupportedModels() []string
}
