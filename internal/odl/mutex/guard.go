package mutex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"circulation/internal/odl/ports"
)

const releaseTimeout = 5 * time.Second

type guardConfig struct {
	renewEvery time.Duration
	ttl        time.Duration
}

// GuardOption configures Guard.
type GuardOption func(*guardConfig)

// WithRenewal extends the lease to ttl every ttl/3 while fn runs.
func WithRenewal(ttl time.Duration) GuardOption {
	return func(c *guardConfig) {
		if ttl > 0 {
			c.ttl = ttl
			c.renewEvery = ttl / 3
		}
	}
}

// Guard runs fn only if locker can be acquired right now. When another owner
// holds the lock Guard returns ran=false and a nil error without calling fn.
// The lock is released when fn returns, even if ctx was cancelled.
func Guard(ctx context.Context, locker ports.Locker, fn func(ctx context.Context) error, opts ...GuardOption) (ran bool, err error) {
	var cfg guardConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	acquired, err := locker.Acquire(ctx)
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if _, relErr := locker.Release(releaseCtx); relErr != nil {
			err = errors.Join(err, fmt.Errorf("release lock: %w", relErr))
		}
	}()

	if cfg.renewEvery > 0 {
		stop := renew(ctx, locker, cfg)
		defer stop()
	}

	return true, fn(ctx)
}

func renew(ctx context.Context, locker ports.Locker, cfg guardConfig) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(cfg.renewEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ok, err := locker.Extend(ctx, cfg.ttl); err != nil || !ok {
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
