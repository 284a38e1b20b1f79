// Package retry runs an operation until it succeeds or a fixed wall-clock
// budget is spent, doubling the delay after every failure.
//
// It exists to ride out the short window after a bucket or object is created
// during which the object store may still answer with errors.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unkn0wn-root/edgekv/kverrors"
)

const (
	DefaultBaseDelay = time.Second
	DefaultBudget    = 120 * time.Second

	// delays stop growing past this shift; the budget ends the loop long before.
	maxShift = 40
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as final: Do returns it unwrapped without retrying.
// A permanent error still counts as an answer from the store, not a failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Attempt describes a failed attempt that is about to be retried.
type Attempt struct {
	Number int // 1-based number of the attempt that failed
	Delay  time.Duration
	Err    error
}

type config struct {
	base    time.Duration
	budget  time.Duration
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
	warn    func(err error)
	onRetry func(Attempt)
}

type Option func(*config)

// WithBaseDelay sets the delay before the first retry. Non-positive values are ignored.
func WithBaseDelay(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.base = d
		}
	}
}

// WithClock replaces time.Now and the context-aware sleep. Used by tests to
// simulate the budget without waiting.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithWarning replaces the advisory warning emitted on the first failure.
func WithWarning(fn func(err error)) Option {
	return func(c *config) {
		if fn != nil {
			c.warn = fn
		}
	}
}

// OnRetry is called before every backoff sleep.
func OnRetry(fn func(Attempt)) Option {
	return func(c *config) { c.onRetry = fn }
}

// Do calls fn until it returns nil. Before retry n (0-based) it waits
// base*2^n. When a backoff sleep ends past the 120s budget measured from
// the first call, Do returns *kverrors.MaxRetryExceededError instead of
// calling fn again.
func Do(ctx context.Context, fn func(context.Context) error, opts ...Option) error {
	_, err := DoValue(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	return err
}

// DoValue is Do for functions that produce a value.
func DoValue[T any](ctx context.Context, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	cfg := config{
		base:   DefaultBaseDelay,
		budget: DefaultBudget,
		now:    time.Now,
		sleep:  sleepCtx,
		warn:   defaultWarning,
	}
	for _, o := range opts {
		o(&cfg)
	}

	var zero T
	start := cfg.now()
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return v, perm.err
		}
		if attempt == 0 {
			cfg.warn(err)
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("retry cancelled after %d attempts: %w", attempt+1, ctx.Err())
		}

		delay := backoff(cfg.base, attempt)
		if cfg.onRetry != nil {
			cfg.onRetry(Attempt{Number: attempt + 1, Delay: delay, Err: err})
		}
		if serr := cfg.sleep(ctx, delay); serr != nil {
			return zero, fmt.Errorf("retry cancelled after %d attempts: %w", attempt+1, serr)
		}
		if elapsed := cfg.now().Sub(start); elapsed > cfg.budget {
			return zero, &kverrors.MaxRetryExceededError{
				Attempts: attempt + 1,
				Elapsed:  elapsed,
				Last:     err,
			}
		}
	}
}

func backoff(base time.Duration, attempt int) time.Duration {
	if attempt > maxShift {
		attempt = maxShift
	}
	return base * time.Duration(uint64(1)<<uint(attempt))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func defaultWarning(err error) {
	slog.Warn("edgekv: object store may not be synchronized yet, retrying", "err", err)
}
