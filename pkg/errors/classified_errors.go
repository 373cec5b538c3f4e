// Package errors provides classified errors for the taskdeck client. Every
// failure that reaches a user or a retry decision is wrapped in a
// ClassifiedError carrying a coarse category, a display-safe message, and the
// operation that produced it.
package errors

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Category is the coarse classification of an error.
type Category string

const (
	// CategoryNetwork indicates no HTTP response was received.
	CategoryNetwork Category = "network"
	// CategoryValidation indicates the request was rejected as malformed
	// (4xx with field-level detail; 404 is folded in here for UI purposes).
	CategoryValidation Category = "validation"
	// CategoryAuthentication indicates an invalid or expired token (401).
	CategoryAuthentication Category = "authentication"
	// CategoryPermission indicates the caller lacks access (403).
	CategoryPermission Category = "permission"
	// CategoryServer indicates a backend failure (5xx).
	CategoryServer Category = "server"
	// CategoryUnknown covers everything else, including malformed responses.
	CategoryUnknown Category = "unknown"
)

// Severity is the banner styling class for a category.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ClassifiedError is an error with classification and display information.
type ClassifiedError struct {
	Category  Category          `json:"category"`
	Message   string            `json:"message"`
	Operation string            `json:"operation"`
	Status    int               `json:"status,omitempty"`
	Field     string            `json:"field,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
	Timestamp time.Time         `json:"timestamp"`

	cause error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Category, e.Operation, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Category, e.Message)
}

// Unwrap returns the underlying error.
func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

// Retryable reports whether the error may be retried. Only network and
// server failures are retryable; retrying a 4xx cannot succeed.
func (e *ClassifiedError) Retryable() bool {
	return e.Category == CategoryNetwork || e.Category == CategoryServer
}

// Severity returns the banner styling class for the error.
func (e *ClassifiedError) Severity() Severity {
	switch e.Category {
	case CategoryValidation:
		return SeverityWarning
	case CategoryAuthentication, CategoryPermission:
		return SeverityInfo
	default:
		return SeverityError
	}
}

// RecoveryHint returns an optional per-category hint for the error banner.
func (e *ClassifiedError) RecoveryHint() string {
	return recoveryHints[e.Category]
}

// WithContext adds a context key/value pair to the error.
func (e *ClassifiedError) WithContext(key, value string) *ClassifiedError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// New creates a classified error with an explicit category and message.
func New(category Category, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Category:  category,
		Message:   message,
		Operation: operation,
		Timestamp: time.Now(),
	}
}

// ClassifyStatus maps an HTTP status code to a category. The mapping mirrors
// the backend contract: 401 authentication, 403 permission, other 4xx
// validation, 5xx server.
func ClassifyStatus(status int) Category {
	switch {
	case status == 401:
		return CategoryAuthentication
	case status == 403:
		return CategoryPermission
	case status >= 400 && status < 500:
		return CategoryValidation
	case status >= 500:
		return CategoryServer
	default:
		return CategoryUnknown
	}
}

// FromResponse builds a classified error from an HTTP status and the server's
// error message. The server message is preferred when it reads as suitable
// for end users; otherwise the per-operation and per-category fallbacks apply.
func FromResponse(operation string, status int, serverMessage, field string) *ClassifiedError {
	category := ClassifyStatus(status)
	return &ClassifiedError{
		Category:  category,
		Message:   selectMessage(category, operation, serverMessage),
		Operation: operation,
		Status:    status,
		Field:     field,
		Timestamp: time.Now(),
	}
}

// Classify wraps an arbitrary error from a client call. Transport failures
// where no response was received classify as network; anything else that
// carries no classification is unknown and not retryable.
func Classify(err error, operation string) *ClassifiedError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*ClassifiedError); ok {
		if ce.Operation == "" {
			ce.Operation = operation
		}
		return ce
	}

	category := CategoryUnknown
	var netErr net.Error
	switch {
	case As(err, &netErr):
		category = CategoryNetwork
	case Is(err, context.DeadlineExceeded):
		category = CategoryNetwork
	}

	return &ClassifiedError{
		Category:  category,
		Message:   selectMessage(category, operation, ""),
		Operation: operation,
		Timestamp: time.Now(),
		cause:     err,
	}
}

// CategoryOf returns the category of err, or CategoryUnknown when err carries
// no classification.
func CategoryOf(err error) Category {
	var ce *ClassifiedError
	if As(err, &ce) {
		return ce.Category
	}
	return CategoryUnknown
}

// IsRetryable reports whether err is a retryable classified error. Plain
// unclassified errors are not retried.
func IsRetryable(err error) bool {
	var ce *ClassifiedError
	if As(err, &ce) {
		return ce.Retryable()
	}
	return false
}
