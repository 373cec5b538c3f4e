// Package resilience provides the client-side coordination primitives that
// keep the UI responsive while calls are in flight: the operation gate
// (per-category concurrency caps with stuck-slot recovery), a search
// throttle, and a circuit breaker around the backend endpoint.
package resilience

import "time"

// Operation is a named category of user action. It is the unit of
// concurrency control.
type Operation string

const (
	OpCreate  Operation = "create"
	OpUpdate  Operation = "update"
	OpDelete  Operation = "delete"
	OpToggle  Operation = "toggle"
	OpReorder Operation = "reorder"
	OpSearch  Operation = "search"
)

// Operations lists all known operation categories.
var Operations = []Operation{OpCreate, OpUpdate, OpDelete, OpToggle, OpReorder, OpSearch}

// IsValid reports whether the operation is a known category.
func (o Operation) IsValid() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete, OpToggle, OpReorder, OpSearch:
		return true
	}
	return false
}

// Singleton reports whether at most one instance of the operation may be in
// flight at a time. Update, delete and toggle are scoped per task id instead.
func (o Operation) Singleton() bool {
	switch o {
	case OpCreate, OpReorder, OpSearch:
		return true
	}
	return false
}

// DefaultTimeout returns the watchdog timeout after which an unreleased slot
// for the operation is force-released. A hung network promise must never
// permanently block a UI action.
func (o Operation) DefaultTimeout() time.Duration {
	switch o {
	case OpCreate:
		return 15 * time.Second
	case OpUpdate, OpDelete:
		return 10 * time.Second
	case OpToggle:
		return 8 * time.Second
	case OpReorder:
		return 12 * time.Second
	case OpSearch:
		return 5 * time.Second
	default:
		return 10 * time.Second
	}
}
