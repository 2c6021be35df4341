package proxy

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vnmchuo/quill/internal/apperr"
	"github.com/vnmchuo/quill/internal/attachment"
	"github.com/vnmchuo/quill/internal/billing"
	"github.com/vnmchuo/quill/internal/logger"
	"github.com/vnmchuo/quill/internal/pricing"
	"github.com/vnmchuo/quill/internal/profile"
	"github.com/vnmchuo/quill/internal/prompt"
	"github.com/vnmchuo/quill/internal/provider"
	"github.com/vnmchuo/quill/pkg/ratelimit"
)

// estimatedTokens is charged against the client's budget before each completion.
const estimatedTokens = 1000

type Handler struct {
	router    *Router
	ledger    *billing.Ledger
	profiles  *profile.Store
	docs      *attachment.Manager
	assembler *prompt.Assembler
	limiter   *ratelimit.Limiter // nil disables rate limiting
	tracer    trace.Tracer
	maxFiles  int
}

type Deps struct {
	Router    *Router
	Ledger    *billing.Ledger
	Profiles  *profile.Store
	Docs      *attachment.Manager
	Assembler *prompt.Assembler
	Limiter   *ratelimit.Limiter
	Tracer    trace.Tracer

	// MaxUploadFiles caps documents per upload; zero means DefaultMaxUploadFiles.
	MaxUploadFiles int
}

func NewHandler(d Deps) *Handler {
	if d.MaxUploadFiles <= 0 {
		d.MaxUploadFiles = DefaultMaxUploadFiles
	}
	return &Handler{
		router:    d.Router,
		ledger:    d.Ledger,
		profiles:  d.Profiles,
		docs:      d.Docs,
		assembler: d.Assembler,
		limiter:   d.Limiter,
		tracer:    d.Tracer,
		maxFiles:  d.MaxUploadFiles,
	}
}

// uploadLimit is the largest multipart body a full batch of maximum-size documents
// can produce.
func (h *Handler) uploadLimit() int64 {
	return int64(h.maxFiles)*h.docs.MaxSize() + uploadOverhead
}

type generateRequest struct {
	Prompt    string         `json:"prompt"`
	Config    prompt.Options `json:"config"`
	ProfileID string         `json:"profileId"`
}

type rewriteRequest struct {
	Text      string         `json:"text"`
	Intent    string         `json:"intent"`
	Config    prompt.Options `json:"config"`
	ProfileID string         `json:"profileId"`
}

type completionResponse struct {
	Result     string         `json:"result"`
	TokenUsage billing.Tokens `json:"tokenUsage"`
}

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	h.complete(w, r, "completion.generate", body.ProfileID, func(ctx context.Context, id string, p profile.Profile) (*provider.Request, error) {
		return h.assembler.BuildCreateRequest(ctx, id, p, body.Prompt, body.Config)
	})
}

func (h *Handler) HandleRewrite(w http.ResponseWriter, r *http.Request) {
	var body rewriteRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	h.complete(w, r, "completion.rewrite", body.ProfileID, func(ctx context.Context, id string, p profile.Profile) (*provider.Request, error) {
		return h.assembler.BuildEditRequest(ctx, id, p, body.Text, body.Intent, body.Config)
	})
}

type buildFunc func(ctx context.Context, profileID string, p profile.Profile) (*provider.Request, error)

// complete resolves the profile, builds the request, runs it and records its usage.
func (h *Handler) complete(w http.ResponseWriter, r *http.Request, spanName, profileID string, build buildFunc) {
	ctx, span := h.tracer.Start(r.Context(), spanName)
	defer span.End()

	fail := func(err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.Message(err))
		writeError(w, r.WithContext(ctx), err)
	}

	if err := h.allow(ctx, r); err != nil {
		w.Header().Set("Retry-After", "60")
		fail(err)
		return
	}

	id, p, err := h.resolveProfile(profileID)
	if err != nil {
		fail(err)
		return
	}

	req, err := build(ctx, id, p)
	if err != nil {
		fail(err)
		return
	}
	span.SetAttributes(
		attribute.String("profile_id", id),
		attribute.String("model", req.Model),
		attribute.String("reasoning_effort", req.ReasoningEffort),
		attribute.String("verbosity", req.Verbosity),
	)

	selected, err := h.router.Route(ctx, req)
	if err != nil {
		fail(err)
		return
	}

	resp, err := h.router.Execute(ctx, req, selected)
	if err != nil {
		fail(err)
		return
	}

	tokens := h.ledger.Record(req.Model, resp.Usage)
	span.SetAttributes(
		attribute.String("provider", resp.Provider),
		attribute.Int64("input_tokens", tokens.Input),
		attribute.Int64("output_tokens", tokens.Output),
		attribute.Int64("cache_tokens", tokens.Cache),
		attribute.Int64("latency_ms", resp.LatencyMs),
	)
	h.ledger.Report(ctx)

	writeJSON(w, http.StatusOK, completionResponse{Result: resp.Content, TokenUsage: tokens})
}

func (h *Handler) allow(ctx context.Context, r *http.Request) error {
	if h.limiter == nil {
		return nil
	}
	allowed, err := h.limiter.Allow(ctx, clientKey(r), estimatedTokens)
	if err != nil {
		logger.Warn(ctx, "rate limiter unavailable", "error", err.Error())
		return apperr.New(apperr.KindRateLimited, "rate limit exceeded", err)
	}
	if !allowed {
		return apperr.New(apperr.KindRateLimited, "rate limit exceeded", nil)
	}
	return nil
}

// resolveProfile falls back to the active profile when id is empty.
func (h *Handler) resolveProfile(id string) (string, profile.Profile, error) {
	if id == "" {
		activeID, p := h.profiles.Active()
		return activeID, p, nil
	}
	p, err := h.profiles.Get(id)
	if err != nil {
		return "", profile.Profile{}, err
	}
	return id, p, nil
}

type budgetResponse struct {
	billing.Snapshot
	Pricing pricing.Table `json:"pricing"`
}

func (h *Handler) HandleBudget(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, budgetResponse{
		Snapshot: h.ledger.Snapshot(),
		Pricing:  h.ledger.Pricing(),
	})
}

func (h *Handler) HandleBudgetReset(w http.ResponseWriter, r *http.Request) {
	h.ledger.Reset()
	logger.Info(r.Context(), "session stats reset")
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "session stats reset",
		"stats":   h.ledger.Stats(),
	})
}
