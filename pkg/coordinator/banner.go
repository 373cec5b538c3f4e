package coordinator

import (
	"context"
	"time"

	apperrors "github.com/taskdeck/taskdeck/pkg/errors"
)

// Banner is the displayable form of a terminal failure. Retry is non-nil
// only for network and server failures, where re-running the exact same call
// can plausibly succeed.
type Banner struct {
	Severity  apperrors.Severity
	Message   string
	Hint      string
	Operation string
	Category  apperrors.Category
	Timestamp time.Time
	Retry     func(ctx context.Context) error
}

// Banner returns the current error banner, or nil when there is none.
func (c *Coordinator) Banner() *Banner {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.banner
}

// DismissBanner clears the current error banner.
func (c *Coordinator) DismissBanner() {
	c.mu.Lock()
	c.banner = nil
	c.mu.Unlock()
	c.notify()
}

// fail classifies err, records it, surfaces a banner, and returns the
// classified error. retryFn is attached only when the category warrants a
// manual "try again" affordance.
func (c *Coordinator) fail(operation string, err error, retryFn func(ctx context.Context) error) error {
	ce := apperrors.Classify(err, operation)

	c.logger.Warn("operation failed", map[string]interface{}{
		"operation": operation,
		"category":  string(ce.Category),
		"error":     ce.Message,
	})
	c.metrics.IncrementCounter("operation_failures_total", 1,
		map[string]string{"operation": operation, "category": string(ce.Category)})

	banner := &Banner{
		Severity:  ce.Severity(),
		Message:   ce.Message,
		Hint:      ce.RecoveryHint(),
		Operation: operation,
		Category:  ce.Category,
		Timestamp: ce.Timestamp,
	}
	if ce.Retryable() {
		banner.Retry = retryFn
	}

	c.mu.Lock()
	c.banner = banner
	c.mu.Unlock()
	if c.onError != nil {
		c.onError(banner)
	}
	c.notify()

	return ce
}

// succeed clears any prior banner after a successful operation.
func (c *Coordinator) succeed(operation string) {
	c.metrics.IncrementCounter("operation_success_total", 1,
		map[string]string{"operation": operation})

	c.mu.Lock()
	c.banner = nil
	c.mu.Unlock()
	c.notify()
}
