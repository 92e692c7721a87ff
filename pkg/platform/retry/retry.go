package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts  = 4
	defaultBaseDelay    = 50 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// RetryableFunc represents a unit of work that can be run again from scratch.
type RetryableFunc func(ctx context.Context) error

// Policy is a bounded exponential backoff retry policy.
//
// Retry schedule (default): 0 ms, 50 ms, 100 ms, 200 ms (with 30% jitter).
// Only errors accepted by Retryable are retried; everything else fails fast.
type Policy struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	retryable    func(error) bool
	onRetry      func(attempt int, err error)
	sleep        func(ctx context.Context, d time.Duration) error
}

// Option configures a Policy.
type Option func(*Policy) error

// WithMaxAttempts bounds the total number of attempts, including the first.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) error {
		if n <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = n
		return nil
	}
}

// WithBaseDelay sets the delay before the second attempt.
func WithBaseDelay(d time.Duration) Option {
	return func(p *Policy) error {
		if d < 0 {
			return ErrNegativeBaseDelay
		}
		p.baseDelay = d
		return nil
	}
}

// WithJitterFactor sets the random fraction added on top of each delay.
func WithJitterFactor(f float64) Option {
	return func(p *Policy) error {
		if f < 0 || f > 1 {
			return ErrInvalidJitterFactor
		}
		p.jitterFactor = f
		return nil
	}
}

// WithRetryable sets the predicate deciding which errors are transient.
func WithRetryable(fn func(error) bool) Option {
	return func(p *Policy) error {
		if fn != nil {
			p.retryable = fn
		}
		return nil
	}
}

// WithOnRetry registers a hook called before each retry with the attempt
// number (starting at 1) and the error that caused it.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(p *Policy) error {
		p.onRetry = fn
		return nil
	}
}

// New builds a Policy from options. Without WithRetryable no error is retried.
func New(opts ...Option) (Policy, error) {
	p := Policy{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
		retryable:    func(error) bool { return false },
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		if err := opt(&p); err != nil {
			return Policy{}, err
		}
	}
	return p, nil
}

// MaxAttempts reports the configured attempt bound.
func (p Policy) MaxAttempts() int {
	return p.maxAttempts
}

// Do runs fn until it succeeds, returns a permanent error, attempts are
// exhausted or ctx is done. The last error is returned.
func (p Policy) Do(ctx context.Context, fn RetryableFunc) error {
	attempts := p.maxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if p.onRetry != nil {
				p.onRetry(attempt, lastErr)
			}
			if err := sleep(ctx, p.backoff(attempt)); err != nil {
				return err
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.retryable == nil || !p.retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// backoff is baseDelay * 2^(attempt-1) plus jitter.
func (p Policy) backoff(attempt int) time.Duration {
	delay := p.baseDelay * time.Duration(1<<(attempt-1))
	jitter := rand.Float64() * float64(delay) * p.jitterFactor //nolint:gosec // math/rand is sufficient for jitter
	return delay + time.Duration(jitter)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
