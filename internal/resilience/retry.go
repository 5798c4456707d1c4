package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryInfo describes a failed attempt that is about to be retried.
type RetryInfo struct {
	Attempt int
	Delay   time.Duration
	Err     error
}

// RetryConfig controls retry behavior with exponential backoff and jitter.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first try.
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Default: 500ms.
	BaseDelay time.Duration

	// MaxDelay caps the un-jittered delay. Default: 4s.
	MaxDelay time.Duration

	// Jitter multiplies each delay by a uniform factor in [0.5, 1.5).
	Jitter bool

	// ShouldRetry decides whether the error from the given attempt (1-based)
	// may be retried. If nil, DefaultClassifier.ShouldRetry is used.
	ShouldRetry func(err error, attempt int) bool

	// OnRetry is called before each retry sleep.
	OnRetry func(RetryInfo)
}

// DefaultRetryConfig returns the policy used for scrape and search calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    4 * time.Second,
		Jitter:      true,
	}
}

// LLMRetryConfig returns the policy used for structured extraction calls.
func LLMRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   800 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      true,
	}
}

// ReflectRetryConfig returns the policy used for page reflection calls.
func ReflectRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    3 * time.Second,
		Jitter:      true,
	}
}

// FromMillis builds a RetryConfig from plain config values, keeping the
// defaults for any non-positive field.
func FromMillis(maxAttempts, baseDelayMs, maxDelayMs int, jitter bool) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if baseDelayMs > 0 {
		cfg.BaseDelay = time.Duration(baseDelayMs) * time.Millisecond
	}
	if maxDelayMs > 0 {
		cfg.MaxDelay = time.Duration(maxDelayMs) * time.Millisecond
	}
	cfg.Jitter = jitter
	return cfg
}

// Do executes fn with retry logic according to cfg.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal executes fn, retrying failures the config deems retryable. It gives
// up immediately on the last attempt, on a non-retryable error, or when ctx
// is done. Context is checked before every sleep and during it.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	var zero T
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}

		if attempt >= cfg.MaxAttempts || !cfg.ShouldRetry(err, attempt) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, err
		}

		delay := Backoff(attempt, cfg)
		if cfg.OnRetry != nil {
			cfg.OnRetry(RetryInfo{Attempt: attempt, Delay: delay, Err: err})
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 4 * time.Second
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = DefaultClassifier.ShouldRetry
	}
	return cfg
}

// Backoff returns the delay after the given failed attempt (1-based):
// min(MaxDelay, BaseDelay*2^(attempt-1)), scaled by [0.5, 1.5) with jitter.
func Backoff(attempt int, cfg RetryConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(RetryInfo) {
	return func(info RetryInfo) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", info.Attempt),
			zap.Duration("delay", info.Delay),
			zap.Error(info.Err),
		)
	}
}

// Logged returns a copy of cfg that logs retries under service and
// operation unless an OnRetry hook is already set.
func (cfg RetryConfig) Logged(service, operation string) RetryConfig {
	if cfg.OnRetry == nil {
		cfg.OnRetry = RetryLogger(service, operation)
	}
	return cfg
}
