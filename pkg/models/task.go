package models

import (
	"fmt"
	"strings"
	"time"
)

// MaxTaskTextLen is the maximum length of a task's text field.
const MaxTaskTextLen = 500

// Task represents a single todo item owned by one user.
type Task struct {
	// Core fields
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Completed bool         `json:"completed"`
	Category  TaskCategory `json:"category"`
	Priority  TaskPriority `json:"priority"`

	// Optional metadata
	DueDate *time.Time `json:"dueDate,omitempty"`
	Tags    []string   `json:"tags,omitempty"`

	// Ownership and manual sort position. Order values define a total
	// order among one user's tasks but are not required to be contiguous.
	UserID string `json:"userId"`
	Order  int    `json:"order"`

	// Timestamps
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TaskCategory groups tasks for filtering.
type TaskCategory string

const (
	CategoryWork     TaskCategory = "work"
	CategoryPersonal TaskCategory = "personal"
	CategoryShopping TaskCategory = "shopping"
	CategoryHealth   TaskCategory = "health"
)

// IsValid reports whether the category is one of the known values.
func (c TaskCategory) IsValid() bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategoryShopping, CategoryHealth:
		return true
	}
	return false
}

// TaskPriority represents the urgency of a task.
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

// IsValid reports whether the priority is one of the known values.
func (p TaskPriority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Validate checks the task's client-editable fields. It is run before a
// create or update is sent so obviously bad input never reaches the wire.
func (t *Task) Validate() error {
	text := strings.TrimSpace(t.Text)
	if text == "" {
		return fmt.Errorf("task text must not be empty")
	}
	if len(text) > MaxTaskTextLen {
		return fmt.Errorf("task text exceeds %d characters", MaxTaskTextLen)
	}
	if t.Category != "" && !t.Category.IsValid() {
		return fmt.Errorf("unknown category %q", t.Category)
	}
	if t.Priority != "" && !t.Priority.IsValid() {
		return fmt.Errorf("unknown priority %q", t.Priority)
	}
	return nil
}

// Clone returns a deep copy of the task. Tag slices are copied so that
// optimistic updates never alias a snapshot's backing array.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	if t.DueDate != nil {
		due := *t.DueDate
		cp.DueDate = &due
	}
	if t.Tags != nil {
		cp.Tags = append([]string(nil), t.Tags...)
	}
	return &cp
}

// Equal reports whether two tasks have identical field values.
func (t *Task) Equal(other *Task) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.ID != other.ID || t.Text != other.Text || t.Completed != other.Completed ||
		t.Category != other.Category || t.Priority != other.Priority ||
		t.UserID != other.UserID || t.Order != other.Order {
		return false
	}
	if (t.DueDate == nil) != (other.DueDate == nil) {
		return false
	}
	if t.DueDate != nil && !t.DueDate.Equal(*other.DueDate) {
		return false
	}
	if len(t.Tags) != len(other.Tags) {
		return false
	}
	for i := range t.Tags {
		if t.Tags[i] != other.Tags[i] {
			return false
		}
	}
	return true
}

// CreateTaskRequest is the payload for POST /api/todos.
type CreateTaskRequest struct {
	Text     string       `json:"text"`
	Category TaskCategory `json:"category,omitempty"`
	Priority TaskPriority `json:"priority,omitempty"`
	DueDate  *time.Time   `json:"dueDate,omitempty"`
	Tags     []string     `json:"tags,omitempty"`
}

// UpdateTaskRequest is the payload for PUT /api/todos/:id. Nil fields are
// omitted so the server applies a partial update.
type UpdateTaskRequest struct {
	Text      *string       `json:"text,omitempty"`
	Completed *bool         `json:"completed,omitempty"`
	Category  *TaskCategory `json:"category,omitempty"`
	Priority  *TaskPriority `json:"priority,omitempty"`
	DueDate   *time.Time    `json:"dueDate,omitempty"`
	Tags      []string      `json:"tags,omitempty"`
	Order     *int          `json:"order,omitempty"`
}

// TaskOrder pairs a task id with its new display order.
type TaskOrder struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// ReorderRequest is the payload for PUT /api/todos/reorder.
type ReorderRequest struct {
	TaskOrders []TaskOrder `json:"todoOrders"`
}

// TaskFilter selects a subset of tasks on list and search calls.
type TaskFilter struct {
	Category  TaskCategory
	Priority  TaskPriority
	Completed *bool
}

// Query returns the filter as URL query parameters.
func (f TaskFilter) Query() map[string]string {
	q := make(map[string]string)
	if f.Category != "" {
		q["category"] = string(f.Category)
	}
	if f.Priority != "" {
		q["priority"] = string(f.Priority)
	}
	if f.Completed != nil {
		q["completed"] = fmt.Sprintf("%t", *f.Completed)
	}
	return q
}
