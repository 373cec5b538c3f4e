package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{
			name: "valid task",
			task: Task{Text: "Buy milk", Category: CategoryShopping, Priority: PriorityMedium},
		},
		{
			name:    "empty text",
			task:    Task{Text: "   "},
			wantErr: true,
		},
		{
			name:    "text too long",
			task:    Task{Text: strings.Repeat("a", MaxTaskTextLen+1)},
			wantErr: true,
		},
		{
			name:    "unknown category",
			task:    Task{Text: "x", Category: "chores"},
			wantErr: true,
		},
		{
			name:    "unknown priority",
			task:    Task{Text: "x", Priority: "urgent"},
			wantErr: true,
		},
		{
			name: "empty enums allowed",
			task: Task{Text: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTaskClone(t *testing.T) {
	due := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	orig := &Task{
		ID:       "abc123",
		Text:     "Buy milk",
		Category: CategoryShopping,
		Priority: PriorityHigh,
		DueDate:  &due,
		Tags:     []string{"errand", "groceries"},
	}

	cp := orig.Clone()
	require.True(t, orig.Equal(cp))

	// Mutating the clone must not touch the original.
	cp.Tags[0] = "changed"
	*cp.DueDate = cp.DueDate.Add(time.Hour)
	assert.Equal(t, "errand", orig.Tags[0])
	assert.True(t, orig.DueDate.Equal(due))
}

func TestTaskEqual(t *testing.T) {
	due := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	base := Task{ID: "1", Text: "a", Order: 2, DueDate: &due, Tags: []string{"x"}}

	same := *base.Clone()
	assert.True(t, base.Equal(&same))

	diffOrder := *base.Clone()
	diffOrder.Order = 3
	assert.False(t, base.Equal(&diffOrder))

	noDue := *base.Clone()
	noDue.DueDate = nil
	assert.False(t, base.Equal(&noDue))

	diffTags := *base.Clone()
	diffTags.Tags = []string{"y"}
	assert.False(t, base.Equal(&diffTags))
}

func TestTaskFilterQuery(t *testing.T) {
	done := true
	f := TaskFilter{Category: CategoryWork, Priority: PriorityLow, Completed: &done}
	q := f.Query()
	assert.Equal(t, "work", q["category"])
	assert.Equal(t, "low", q["priority"])
	assert.Equal(t, "true", q["completed"])

	assert.Empty(t, TaskFilter{}.Query())
}
