package billing

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/vnmchuo/quill/internal/logger"
	"github.com/vnmchuo/quill/internal/pricing"
)

// Stat is the running total for one model since the last reset.
type Stat struct {
	Requests     int64 `json:"requests"`
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	CacheTokens  int64 `json:"cacheTokens"`
}

type Costs struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
	Cache  float64 `json:"cache"`
	Total  float64 `json:"total"`
}

type TokenTotals struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
	Cache  int64 `json:"cache"`
	Total  int64 `json:"total"`
}

type ModelReport struct {
	Requests int64       `json:"requests"`
	Tokens   TokenTotals `json:"tokens"`
	Costs    Costs       `json:"costs"`
}

type Totals struct {
	Requests int64       `json:"totalRequests"`
	Tokens   TokenTotals `json:"totalTokens"`
	CostUSD  float64     `json:"totalCostUSD"`
}

type Snapshot struct {
	Totals Totals                 `json:"session"`
	Models map[string]ModelReport `json:"models"`
}

// Ledger accumulates token usage per model and prices it with a pricing.Table.
// Models are registered lazily on first use; only invoked models appear beyond the
// known set passed to NewLedger. It is safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	table pricing.Table
	known []string
	stats map[string]*Stat
}

// NewLedger creates a ledger pre-seeded with known models. With no known models the
// table's models are used.
func NewLedger(table pricing.Table, known ...string) *Ledger {
	if len(known) == 0 {
		known = table.Models()
	}
	l := &Ledger{
		table: table,
		known: append([]string(nil), known...),
	}
	l.stats = l.seed()
	return l
}

func (l *Ledger) seed() map[string]*Stat {
	stats := make(map[string]*Stat, len(l.known))
	for _, m := range l.known {
		stats[m] = &Stat{}
	}
	return stats
}

func (l *Ledger) Pricing() pricing.Table {
	return l.table
}

// Record extracts the token triple from raw and adds it to model's totals.
func (l *Ledger) Record(model string, raw json.RawMessage) Tokens {
	tokens := ExtractTokens(raw)

	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.stats[model]
	if !ok {
		s = &Stat{}
		l.stats[model] = s
	}
	s.Requests++
	s.InputTokens += tokens.Input
	s.OutputTokens += tokens.Output
	s.CacheTokens += tokens.Cache

	return tokens
}

func (l *Ledger) CostOf(model string) Costs {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.stats[model]
	if !ok {
		return Costs{}
	}
	return costOf(*s, l.table.RateFor(model))
}

func costOf(s Stat, rate pricing.Entry) Costs {
	c := Costs{
		Input:  float64(s.InputTokens) * rate.Input,
		Output: float64(s.OutputTokens) * rate.Output,
		Cache:  float64(s.CacheTokens) * rate.Cache,
	}
	c.Total = c.Input + c.Output + c.Cache
	return c
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{Models: make(map[string]ModelReport)}
	for _, model := range l.sortedModels() {
		s := *l.stats[model]
		if s.Requests == 0 {
			continue
		}

		costs := costOf(s, l.table.RateFor(model))
		tokens := TokenTotals{
			Input:  s.InputTokens,
			Output: s.OutputTokens,
			Cache:  s.CacheTokens,
			Total:  s.InputTokens + s.OutputTokens + s.CacheTokens,
		}
		snap.Models[model] = ModelReport{Requests: s.Requests, Tokens: tokens, Costs: costs}

		snap.Totals.Requests += s.Requests
		snap.Totals.Tokens.Input += tokens.Input
		snap.Totals.Tokens.Output += tokens.Output
		snap.Totals.Tokens.Cache += tokens.Cache
		snap.Totals.CostUSD += costs.Total
	}
	snap.Totals.Tokens.Total = snap.Totals.Tokens.Input + snap.Totals.Tokens.Output + snap.Totals.Tokens.Cache

	return snap
}

// Stats returns a copy of the raw counters, including known models with no requests.
func (l *Ledger) Stats() map[string]Stat {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]Stat, len(l.stats))
	for m, s := range l.stats {
		out[m] = *s
	}
	return out
}

// Reset zeroes the known models and drops every dynamically registered one.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats = l.seed()
}

// Report logs the session totals, one line per model with traffic.
func (l *Ledger) Report(ctx context.Context) {
	snap := l.Snapshot()
	models := make([]string, 0, len(snap.Models))
	for m := range snap.Models {
		models = append(models, m)
	}
	sort.Strings(models)

	for _, m := range models {
		r := snap.Models[m]
		logger.Info(ctx, "session usage",
			"model", m,
			"requests", r.Requests,
			"input_tokens", r.Tokens.Input,
			"output_tokens", r.Tokens.Output,
			"cache_tokens", r.Tokens.Cache,
			"cost_usd", r.Costs.Total,
		)
	}
	logger.Info(ctx, "session total",
		"requests", snap.Totals.Requests,
		"tokens", snap.Totals.Tokens.Total,
		"cost_usd", snap.Totals.CostUSD,
	)
}

func (l *Ledger) sortedModels() []string {
	models := make([]string, 0, len(l.stats))
	for m := range l.stats {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}
