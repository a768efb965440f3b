package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Counter is the slice of kvstore.Store the limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type Result struct {
	Allowed    bool          `json:"allowed"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after"`
}

// FixedWindowLimiter counts requests per identifier in windows aligned to
// multiples of the window length. Counters live in a shared store so every
// instance sees the same totals.
type FixedWindowLimiter struct {
	counter Counter
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewFixedWindowLimiter(counter Counter, logger *zap.SugaredLogger) *FixedWindowLimiter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FixedWindowLimiter{counter: counter, logger: logger, now: time.Now}
}

func windowStart(now time.Time, window time.Duration) time.Time {
	w := window.Nanoseconds()
	return time.Unix(0, (now.UnixNano()/w)*w)
}

func windowKey(identifier string, start time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", identifier, start.Unix())
}

// CheckLimit records one request for identifier. When the store fails the
// request is allowed and a warning is logged.
func (l *FixedWindowLimiter) CheckLimit(ctx context.Context, identifier string, limit int, window time.Duration) Result {
	now := l.now()
	start := windowStart(now, window)
	reset := start.Add(window)

	count, err := l.counter.Incr(ctx, windowKey(identifier, start), 2*window)
	if err != nil {
		l.logger.Warnw("rate limit store unavailable, allowing request", "identifier", identifier, "error", err)
		return Result{Allowed: true, Limit: limit, Remaining: limit, ResetAt: reset}
	}

	res := Result{
		Allowed: count <= int64(limit),
		Limit:   limit,
		ResetAt: reset,
	}
	if remaining := int64(limit) - count; remaining > 0 {
		res.Remaining = int(remaining)
	}
	if !res.Allowed {
		res.RetryAfter = reset.Sub(now)
		if res.RetryAfter <= 0 {
			res.RetryAfter = time.Millisecond
		}
	}
	return res
}
