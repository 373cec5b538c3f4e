package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/taskdeck/taskdeck/pkg/errors"
)

// WaitReady polls the backend's health endpoint with exponential backoff
// until it answers, maxElapsed passes, or ctx is canceled. Used at startup so
// a briefly restarting backend does not fail the whole session.
func (c *Client) WaitReady(ctx context.Context, maxElapsed time.Duration) error {
	if maxElapsed <= 0 {
		maxElapsed = 30 * time.Second
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxElapsed

	attempt := 0
	operation := func() error {
		attempt++
		err := c.HealthCheck(ctx)
		if err == nil {
			return nil
		}
		if !apperrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		c.logger.Debug("backend not ready", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		})
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return err
	}
	if attempt > 1 {
		c.logger.Info("backend became ready", map[string]interface{}{"attempts": attempt})
	}
	return nil
}
