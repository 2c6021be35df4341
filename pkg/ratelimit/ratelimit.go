package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	extratelimit "github.com/vnmchuo/ratelimiter"
)

// Limiter is a thin wrapper around github.com/vnmchuo/ratelimiter, keyed per client.
type Limiter struct {
	store extratelimit.Limiter
}

// NewLimiter shares the token budget across instances through Redis.
func NewLimiter(rdb *redis.Client, tpm int64) *Limiter {
	store := extratelimit.NewRedisStore(rdb,
		extratelimit.WithLimit(int(tpm)),
		extratelimit.WithWindow(time.Minute),
	)
	return &Limiter{store: store}
}

// NewLocalLimiter keeps the token budget in process memory.
func NewLocalLimiter(tpm int64) *Limiter {
	return &Limiter{store: newLocalStore(tpm)}
}

func NewTestLimiter(store extratelimit.Limiter) *Limiter {
	return &Limiter{store: store}
}

func key(clientID string) string {
	return fmt.Sprintf("ratelimit:client:%s", clientID)
}

// Allow spends tokens from the client's per-minute budget.
func (l *Limiter) Allow(ctx context.Context, clientID string, tokens int) (bool, error) {
	res, err := l.store.AllowN(ctx, key(clientID), tokens)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

func (l *Limiter) Status(ctx context.Context, clientID string) (*extratelimit.Result, error) {
	return l.store.Status(ctx, key(clientID))
}
