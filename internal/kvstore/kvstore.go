// Package kvstore is the shared counter and cache store behind the rate
// limiter and the idempotency cache.
package kvstore

import (
	"context"
	"time"
)

type Store interface {
	// Incr increments key and returns the new value. The first increment of a
	// key (or of an expired key) starts at 1 and sets its expiry to ttl.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Sweeper is implemented by stores that need expired rows purged.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}
