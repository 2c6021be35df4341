// Package prompt turns a profile, its reference documents and the user's text into a
// completion request.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/vnmchuo/quill/internal/apperr"
	"github.com/vnmchuo/quill/internal/profile"
	"github.com/vnmchuo/quill/internal/provider"
)

const (
	DefaultModel           = "gpt-5"
	DefaultReasoningEffort = "medium"
	DefaultVerbosity       = "medium"
	DefaultIntent          = "clarify"

	createPersona = "Tu es un rédacteur francophone précis. Respecte la consigne. Réponds uniquement par le texte demandé."
	editPersona   = "Tu es un éditeur francophone rigoureux. Ne change pas le sens. Garde la voix de l'auteur. Réponds uniquement par le texte révisé."
)

// DocumentReader returns the concatenated reference documents of a profile.
type DocumentReader interface {
	ReadAll(ctx context.Context, profileID string) string
}

// Options are the per-request model settings; empty fields take the defaults.
type Options struct {
	Model           string `json:"model"`
	ReasoningEffort string `json:"reasoningEffort"`
	Verbosity       string `json:"verbosity"`
}

func (o Options) WithDefaults() Options {
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.ReasoningEffort == "" {
		o.ReasoningEffort = DefaultReasoningEffort
	}
	if o.Verbosity == "" {
		o.Verbosity = DefaultVerbosity
	}
	return o
}

type Assembler struct {
	docs DocumentReader
}

func NewAssembler(docs DocumentReader) *Assembler {
	return &Assembler{docs: docs}
}

func (a *Assembler) BuildCreateRequest(ctx context.Context, profileID string, p profile.Profile, userPrompt string, opts Options) (*provider.Request, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return nil, apperr.Validation("prompt is required")
	}
	system := a.systemMessage(ctx, createPersona, profileID, p.CreateInstruction)
	user := fmt.Sprintf("Crée un texte répondant à: %s", userPrompt)
	return newRequest(opts, system, user), nil
}

func (a *Assembler) BuildEditRequest(ctx context.Context, profileID string, p profile.Profile, selectedText, intent string, opts Options) (*provider.Request, error) {
	if strings.TrimSpace(selectedText) == "" {
		return nil, apperr.Validation("text is required")
	}
	if intent == "" {
		intent = DefaultIntent
	}
	system := a.systemMessage(ctx, editPersona, profileID, p.EditInstruction)
	user := fmt.Sprintf("Intention: %s\nTexte:\n%s", intent, selectedText)
	return newRequest(opts, system, user), nil
}

func (a *Assembler) systemMessage(ctx context.Context, persona, profileID, instruction string) string {
	var b strings.Builder
	b.WriteString(persona)
	if instruction = strings.TrimSpace(instruction); instruction != "" {
		b.WriteString("\n\nInstructions du profil :\n")
		b.WriteString(instruction)
	}
	if docs := a.docs.ReadAll(ctx, profileID); docs != "" {
		b.WriteString("\n\nDocumentation de référence :\n")
		b.WriteString(docs)
	}
	return b.String()
}

func newRequest(opts Options, system, user string) *provider.Request {
	opts = opts.WithDefaults()
	return &provider.Request{
		Model:           opts.Model,
		ReasoningEffort: opts.ReasoningEffort,
		Verbosity:       opts.Verbosity,
		Messages: []provider.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
}
