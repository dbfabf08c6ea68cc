package resilience

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
)

// RetryConfig holds retry settings.
type RetryConfig struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64 // 0 disables jitter
	IsRetryable  func(error) bool
	// OnRetry is called before each backoff sleep. attempt is 1-based.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryConfig returns the dispatcher's retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		IsRetryable: apperr.IsRetryable,
	}
}

// Retry executes fn with exponential backoff. Returns last error if all attempts fail.
// The attempt number passed to fn is 0-based.
func Retry(ctx context.Context, cfg RetryConfig, fn func(attempt int) error) error {
	cfg = cfg.withDefaults()
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return apperr.Wrap(err, apperr.Cancelled, "retry aborted")
		}

		if lastErr = fn(attempt); lastErr == nil {
			return nil
		}

		if !cfg.IsRetryable(lastErr) || attempt == cfg.MaxAttempts-1 {
			return lastErr
		}

		delay := BackoffDelay(cfg, attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, delay, lastErr)
		} else {
			slog.Debug("retrying after error", "attempt", attempt+1, "max", cfg.MaxAttempts, "delay", delay, "error", lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return apperr.Wrap(ctx.Err(), apperr.Cancelled, "retry aborted")
		case <-timer.C:
		}
	}
	return lastErr
}

// BackoffDelay returns BaseDelay × 2^attempt, capped at MaxDelay, with optional jitter.
func BackoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay << min(attempt, 6)
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.JitterFactor > 0 {
		jitter := float64(delay) * cfg.JitterFactor * (rand.Float64() - 0.5)
		delay = time.Duration(float64(delay) + jitter)
	}
	return delay
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.IsRetryable == nil {
		c.IsRetryable = apperr.IsRetryable
	}
	return c
}
