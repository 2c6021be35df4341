package proxy

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vnmchuo/quill/internal/apperr"
	"github.com/vnmchuo/quill/internal/provider"
)

var ErrNoProvider = errors.New("all providers unavailable")

// Router picks a provider for a request and runs it behind that provider's circuit breaker.
type Router struct {
	providers []provider.Provider
	breakers  map[string]*gobreaker.CircuitBreaker
}

func NewRouter(providers []provider.Provider) *Router {
	breakers := make(map[string]*gobreaker.CircuitBreaker)
	for _, p := range providers {
		settings := gobreaker.Settings{
			Name:        p.Name(),
			MaxRequests: 3,
			Interval:    5 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			// A client hanging up is not a provider failure.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}
		breakers[p.Name()] = gobreaker.NewCircuitBreaker(settings)
	}
	return &Router{
		providers: providers,
		breakers:  breakers,
	}
}

// Route returns the first available provider serving req.Model, or the first
// available provider at all when none lists the model.
func (r *Router) Route(ctx context.Context, req *provider.Request) (provider.Provider, error) {
	var fallback provider.Provider
	for _, p := range r.providers {
		if r.breakers[p.Name()].State() == gobreaker.StateOpen {
			continue
		}
		if fallback == nil {
			fallback = p
		}
		for _, m := range p.SupportedModels() {
			if m == req.Model {
				return p, nil
			}
		}
	}

	if fallback == nil {
		return nil, apperr.Upstream(ErrNoProvider)
	}
	return fallback, nil
}

// Execute runs the completion through the provider's breaker. Failures come back as
// upstream errors carrying the provider's message.
func (r *Router) Execute(ctx context.Context, req *provider.Request, p provider.Provider) (*provider.Response, error) {
	cb := r.breakers[p.Name()]
	result, err := cb.Execute(func() (interface{}, error) {
		return p.Complete(ctx, req)
	})
	if err != nil {
		return nil, apperr.Upstream(err)
	}
	return result.(*provider.Response), nil
}

// State reports the breaker state of the named provider.
func (r *Router) State(name string) gobreaker.State {
	cb, ok := r.breakers[name]
	if !ok {
		return gobreaker.StateOpen
	}
	return cb.State()
}
