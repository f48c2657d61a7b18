package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// BackoffConfig controls the exponential backoff schedule.
type BackoffConfig struct {
	InitialDelay time.Duration `json:"initial_delay" validate:"min=10ms,max=10s"`
	MaxDelay     time.Duration `json:"max_delay" validate:"min=100ms,max=5m"`
	Multiplier   float64       `json:"multiplier" validate:"min=1.0,max=10.0"`
	MaxAttempts  int           `json:"max_attempts" validate:"min=1,max=20"`
	Jitter       bool          `json:"jitter"`
}

// DefaultBackoffConfig returns the schedule used when nothing else is configured.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	}
}

// Backoff retries an operation on an exponential schedule with optional jitter.
type Backoff struct {
	config BackoffConfig
}

func NewBackoff(config BackoffConfig) *Backoff {
	return &Backoff{config: config}
}

// Retry runs operation until it succeeds, the attempt budget is spent, or ctx
// is done. Every error is treated as retryable.
func (b *Backoff) Retry(ctx context.Context, operation func() error) error {
	return b.run(ctx, operation, nil)
}

// RetryWithPredicate is like Retry but stops immediately when isRetryable
// reports the error as permanent.
func (b *Backoff) RetryWithPredicate(ctx context.Context, operation func() error, isRetryable func(error) bool) error {
	return b.run(ctx, operation, isRetryable)
}

func (b *Backoff) run(ctx context.Context, operation func() error, isRetryable func(error) bool) error {
	var lastErr error

	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if isRetryable != nil && !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == b.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.delayFor(attempt)):
		}
	}

	return lastErr
}

// GetNextDelay exposes the computed delay for a given attempt so callers can
// log or inspect the schedule.
func (b *Backoff) GetNextDelay(attempt int) time.Duration {
	return b.delayFor(attempt)
}

func (b *Backoff) delayFor(attempt int) time.Duration {
	delay := float64(b.config.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= b.config.Multiplier
		if delay >= float64(b.config.MaxDelay) {
			delay = float64(b.config.MaxDelay)
			break
		}
	}

	if b.config.Jitter {
		// Spread delays across +/-25% so concurrent retriers do not align.
		delay += (rand.Float64() - 0.5) * 0.5 * delay
		if delay < 0 {
			delay = float64(b.config.InitialDelay)
		}
		if delay > float64(b.config.MaxDelay) {
			delay = float64(b.config.MaxDelay)
		}
	}

	return time.Duration(delay)
}
