package ratelimit

import (
	"context"
	"sync"
	"time"

	extratelimit "github.com/vnmchuo/ratelimiter"
	"golang.org/x/time/rate"
)

// localStore is a token bucket per key refilling tpm tokens per minute.
type localStore struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newLocalStore(tpm int64) *localStore {
	return &localStore{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(tpm) / 60),
		burst:    int(tpm),
	}
}

func (s *localStore) limiter(key string) *rate.Limiter {
	s.mu.RLock()
	l, ok := s.limiters[key]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.limiters[key]; ok {
		return l
	}
	l = rate.NewLimiter(s.rate, s.burst)
	s.limiters[key] = l
	return l
}

func (s *localStore) AllowN(ctx context.Context, key string, n int) (*extratelimit.Result, error) {
	return &extratelimit.Result{Allowed: s.limiter(key).AllowN(time.Now(), n)}, nil
}

func (s *localStore) Allow(ctx context.Context, key string) (*extratelimit.Result, error) {
	return s.AllowN(ctx, key, 1)
}

func (s *localStore) Status(ctx context.Context, key string) (*extratelimit.Result, error) {
	return &extratelimit.Result{Allowed: s.limiter(key).Tokens() >= 1}, nil
}
