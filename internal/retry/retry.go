// Package retry runs calls to unreliable collaborators with a per-attempt
// timeout and exponential backoff on transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"

	"storefront/internal/apperr"

	"go.uber.org/zap"
)

type Options struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	PerAttemptTimeout time.Duration
	Jitter            time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts:       3,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		PerAttemptTimeout: 30 * time.Second,
		Jitter:            100 * time.Millisecond,
	}
}

// ExhaustedError is returned after MaxAttempts transient failures.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

type Executor struct {
	opts   Options
	logger *zap.SugaredLogger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewExecutor(opts Options, logger *zap.SugaredLogger) *Executor {
	def := DefaultOptions()
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = def.BaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = def.MaxDelay
	}
	if opts.PerAttemptTimeout <= 0 {
		opts.PerAttemptTimeout = def.PerAttemptTimeout
	}
	if opts.Jitter < 0 {
		opts.Jitter = 0
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Executor{opts: opts, logger: logger, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Executor) backoff(attempt int) time.Duration {
	d := e.opts.BaseDelay << attempt
	if d <= 0 || d > e.opts.MaxDelay {
		d = e.opts.MaxDelay
	}
	if e.opts.Jitter > 0 {
		d += rand.N(e.opts.Jitter)
	}
	return d
}

// Execute calls fn until it succeeds, fails with a fatal error, the parent
// context ends, or MaxAttempts is reached.
func Execute[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var last error

	for attempt := 0; attempt < e.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.opts.PerAttemptTimeout)
		v, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !IsTransient(err) {
			return zero, err
		}

		last = err
		if attempt == e.opts.MaxAttempts-1 {
			break
		}
		delay := e.backoff(attempt)
		e.logger.Warnw("transient failure, retrying", "attempt", attempt+1, "delay", delay, "error", err)
		if err := e.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, &ExhaustedError{Attempts: e.opts.MaxAttempts, Last: last}
}

// Do is Execute for calls without a result.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Execute(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

type transientError struct{ err error }

func (t transientError) Error() string { return t.err.Error() }
func (t transientError) Unwrap() error { return t.err }

// MarkTransient flags err as retryable.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

type statusCoder interface {
	StatusCode() int
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te transientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case 429, 502, 503, 504:
			return true
		}
	}
	switch apperr.CodeOf(err) {
	case apperr.CodeRateLimited, apperr.CodeTransient:
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"temporarily unavailable", "connection reset", "connection refused"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
