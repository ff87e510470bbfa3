// Package resilience retries storage and network operations that fail for
// transient reasons.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig bounds how often and how patiently an operation is retried.
// Zero fields take their DefaultRetryConfig value.
type RetryConfig struct {
	MaxAttempts    int           // total tries, the first included
	InitialBackoff time.Duration // doubled after every failed try
	MaxBackoff     time.Duration
	Jitter         float64 // each delay moves by up to +/- this fraction

	// OnRetry runs before each sleep with the 1-based number of the failed try.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig suits batch writes and source downloads.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Jitter:         0.25,
	}
}

// Do runs fn until it succeeds, fails with a non-transient error, runs out of
// attempts or ctx ends. The last error from fn is returned.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for operations that return a value.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = withDefaults(cfg)

	var zero T
	delay := cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		switch {
		case err == nil:
			return val, nil
		case attempt >= cfg.MaxAttempts, ctx.Err() != nil, !IsTransient(err):
			return zero, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		if !sleep(ctx, jitter(delay, cfg.Jitter)) {
			return zero, err
		}
		delay = min(delay*2, cfg.MaxBackoff)
	}
}

func withDefaults(cfg RetryConfig) RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	cfg.InitialBackoff = min(cfg.InitialBackoff, cfg.MaxBackoff)
	cfg.Jitter = max(0, min(cfg.Jitter, 1))
	return cfg
}

func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction == 0 {
		return d
	}
	return time.Duration(float64(d) * (1 + fraction*(2*rand.Float64()-1)))
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// RetryLogger returns an OnRetry callback that warns on log.
func RetryLogger(log *zap.Logger, operation string) func(int, error) {
	return func(attempt int, err error) {
		log.Warn("retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
