package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/taskdeck/taskdeck/pkg/errors"
	"github.com/taskdeck/taskdeck/pkg/observability"
)

func fastConfig(maxAttempts int, predicate func(error) bool) Config {
	return Config{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2.0,
		Predicate:   predicate,
	}
}

func TestExecuteSucceedsFirstTry(t *testing.T) {
	policy := NewExponentialBackoff(fastConfig(3, nil), observability.NewNoopLogger())

	calls := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	policy := NewExponentialBackoff(fastConfig(3, apperrors.IsRetryable), observability.NewNoopLogger())

	calls := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return apperrors.New(apperrors.CategoryServer, "update", "boom")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	policy := NewExponentialBackoff(fastConfig(3, apperrors.IsRetryable), observability.NewNoopLogger())

	calls := 0
	failure := apperrors.New(apperrors.CategoryNetwork, "delete", "offline")
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return failure
	})

	assert.Equal(t, failure, err)
	assert.Equal(t, 3, calls, "exactly maxAttempts calls must occur")
}

func TestExecuteFailsFastOnNonRetryable(t *testing.T) {
	policy := NewExponentialBackoff(fastConfig(3, apperrors.IsRetryable), observability.NewNoopLogger())

	calls := 0
	failure := apperrors.New(apperrors.CategoryValidation, "update", "text too long")
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return failure
	})

	assert.Equal(t, failure, err)
	assert.Equal(t, 1, calls, "validation errors must never be retried")
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	cfg := fastConfig(5, nil)
	cfg.BaseDelay = time.Hour // would block without cancellation
	policy := NewExponentialBackoff(cfg, observability.NewNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- policy.Execute(ctx, func(ctx context.Context) error {
			return fmt.Errorf("always fails")
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
}

func TestNextDelayGrowsAndCaps(t *testing.T) {
	policy := NewExponentialBackoff(Config{
		MaxAttempts: 10,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      false,
	}, nil)

	var prev time.Duration
	for attempt := 1; attempt <= 8; attempt++ {
		delay := policy.NextDelay(attempt)
		assert.GreaterOrEqual(t, delay, prev, "delays must be non-decreasing")
		assert.LessOrEqual(t, delay, 30*time.Second, "delays must be capped at MaxDelay")
		prev = delay
	}

	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextDelay(3))
	assert.Equal(t, 30*time.Second, policy.NextDelay(8))
}

func TestNextDelayJitterRange(t *testing.T) {
	policy := NewExponentialBackoff(Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}, nil)

	// Pin the random source at both extremes of U(0.5, 1.0).
	policy.randFloat = func() float64 { return 0 }
	assert.Equal(t, 500*time.Millisecond, policy.NextDelay(1))

	policy.randFloat = func() float64 { return 0.999999 }
	delay := policy.NextDelay(1)
	assert.Greater(t, delay, 999*time.Millisecond)
	assert.LessOrEqual(t, delay, time.Second)
}

func TestOperationConfig(t *testing.T) {
	assert.Equal(t, 2, OperationConfig("create").MaxAttempts)
	assert.Equal(t, 2, OperationConfig("reorder").MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, OperationConfig("search").BaseDelay)
	assert.Equal(t, 3, OperationConfig("toggle").MaxAttempts)
	assert.Equal(t, time.Second, OperationConfig("toggle").BaseDelay)
}
