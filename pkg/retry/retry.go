// Package retry wraps client calls with bounded, predicate-gated retries
// using exponential backoff and jitter.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/taskdeck/taskdeck/pkg/observability"
)

// Policy defines the retry policy interface.
type Policy interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
	NextDelay(attempt int) time.Duration
}

// Config contains retry configuration.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration
	// MaxDelay caps the computed delay.
	MaxDelay time.Duration
	// Multiplier is the exponential base.
	Multiplier float64
	// Jitter scales each delay by a random factor in [0.5, 1.0) so
	// concurrent operations do not retry in lockstep.
	Jitter bool
	// Predicate decides whether an error is worth retrying. A nil
	// predicate retries everything.
	Predicate func(error) bool
}

// DefaultConfig returns the baseline retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// OperationConfig returns the tuned configuration for a named operation.
// Create and reorder get fewer attempts because their payloads are not cheap
// to repeat; search uses a shorter base delay because it is interactive.
func OperationConfig(operation string) Config {
	cfg := DefaultConfig()
	switch operation {
	case "create", "reorder":
		cfg.MaxAttempts = 2
	case "search":
		cfg.BaseDelay = 500 * time.Millisecond
	}
	return cfg
}

// ExponentialBackoff implements Policy with exponential backoff.
type ExponentialBackoff struct {
	config Config
	logger observability.Logger

	// rand source is injectable for deterministic tests.
	randFloat func() float64
}

// NewExponentialBackoff creates a new exponential backoff retry policy.
func NewExponentialBackoff(config Config, logger observability.Logger) *ExponentialBackoff {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 1.0 {
		config.Multiplier = 2.0
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	return &ExponentialBackoff{
		config:    config,
		logger:    logger,
		randFloat: rand.Float64,
	}
}

// Execute runs fn until it succeeds, the predicate rejects its error, or
// MaxAttempts is reached. Non-retryable errors propagate immediately:
// repeating a rejected request cannot succeed, so failing fast is correct.
func (e *ExponentialBackoff) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if e.config.Predicate != nil && !e.config.Predicate(err) {
			return err
		}
		if attempt >= e.config.MaxAttempts {
			e.logger.Warn("retry attempts exhausted", map[string]interface{}{
				"attempts": attempt,
				"error":    err.Error(),
			})
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := e.NextDelay(attempt)
		e.logger.Debug("retrying after delay", map[string]interface{}{
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// NextDelay computes the delay after the given attempt number (1-based):
// min(base * multiplier^(attempt-1) * jitter, max).
func (e *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(e.config.BaseDelay) * math.Pow(e.config.Multiplier, float64(attempt-1))

	if e.config.Jitter {
		delay *= 0.5 + 0.5*e.randFloat()
	}
	if delay > float64(e.config.MaxDelay) {
		delay = float64(e.config.MaxDelay)
	}

	return time.Duration(delay)
}
