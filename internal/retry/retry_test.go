package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"storefront/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type httpStatusErr int

func (e httpStatusErr) Error() string   { return fmt.Sprintf("http %d", int(e)) }
func (e httpStatusErr) StatusCode() int { return int(e) }

func newTestExecutor(opts Options) (*Executor, *[]time.Duration) {
	e := NewExecutor(opts, nil)
	var slept []time.Duration
	e.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return e, &slept
}

func TestExecuteRetriesTransientThenSucceeds(t *testing.T) {
	e, slept := newTestExecutor(Options{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond})

	calls := 0
	v, err := Execute(context.Background(), e, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", MarkTransient(errors.New("provider timeout"))
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
	require.Len(t, *slept, 2)
	assert.GreaterOrEqual(t, (*slept)[0], 100*time.Millisecond)
	assert.GreaterOrEqual(t, (*slept)[1], 200*time.Millisecond)
}

func TestExecuteFatalReturnsImmediately(t *testing.T) {
	e, slept := newTestExecutor(Options{})
	calls := 0
	_, err := Execute(context.Background(), e, func(ctx context.Context) (int, error) {
		calls++
		return 0, apperr.Validation("bad input")
	})

	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestExecuteExhausted(t *testing.T) {
	e, _ := newTestExecutor(Options{MaxAttempts: 3})
	calls := 0
	_, err := Execute(context.Background(), e, func(ctx context.Context) (int, error) {
		calls++
		return 0, httpStatusErr(503)
	})

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
	assert.Equal(t, 3, calls)
}

func TestExecuteStopsOnParentCancel(t *testing.T) {
	e := NewExecutor(Options{MaxAttempts: 5, BaseDelay: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Execute(ctx, e, func(ctx context.Context) (int, error) {
			calls++
			return 0, MarkTransient(errors.New("flaky"))
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("executor did not stop after cancellation")
	}
}

func TestPerAttemptTimeoutIsTransient(t *testing.T) {
	e, slept := newTestExecutor(Options{MaxAttempts: 2, PerAttemptTimeout: 10 * time.Millisecond})
	_, err := Execute(context.Background(), e, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.ErrorIs(t, ex.Last, context.DeadlineExceeded)
	assert.Len(t, *slept, 1)
}

func TestBackoffCapped(t *testing.T) {
	e := NewExecutor(Options{BaseDelay: time.Second, MaxDelay: 3 * time.Second}, nil)
	assert.Equal(t, time.Second, e.backoff(0))
	assert.Equal(t, 2*time.Second, e.backoff(1))
	assert.Equal(t, 3*time.Second, e.backoff(2))
	assert.Equal(t, 3*time.Second, e.backoff(40))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("invalid reference"), false},
		{"deadline", context.DeadlineExceeded, true},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"conn refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.example"}, true},
		{"429", httpStatusErr(429), true},
		{"502", httpStatusErr(502), true},
		{"500", httpStatusErr(500), false},
		{"404", httpStatusErr(404), false},
		{"rate limited", apperr.RateLimited(time.Second), true},
		{"validation", apperr.Validation("x"), false},
		{"message", errors.New("service temporarily unavailable"), true},
		{"marked", MarkTransient(errors.New("x")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
