package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck/pkg/models"
)

func seed(texts ...string) *TaskStore {
	s := NewTaskStore()
	tasks := make([]*models.Task, len(texts))
	for i, text := range texts {
		tasks[i] = &models.Task{ID: text, Text: text, Order: i}
	}
	s.ReplaceAll(tasks)
	return s
}

func TestSnapshotIsIsolatedFromMutations(t *testing.T) {
	s := seed("A", "B", "C")
	snapshot := s.Snapshot()

	require.True(t, s.Update("B", func(task *models.Task) {
		task.Text = "B-edited"
		task.Completed = true
	}))

	// The snapshot still holds the pre-mutation values.
	assert.Equal(t, "B", snapshot[1].Text)
	assert.False(t, snapshot[1].Completed)

	got, _ := s.Get("B")
	assert.Equal(t, "B-edited", got.Text)
}

func TestRestoreReturnsExactPriorState(t *testing.T) {
	s := seed("A", "B", "C")
	snapshot := s.Snapshot()

	s.Update("A", func(task *models.Task) { task.Completed = true })
	_, _, ok := s.Remove("C")
	require.True(t, ok)
	s.Insert(&models.Task{ID: "tmp-1", Text: "new"})

	s.Restore(snapshot)
	assert.True(t, s.Equal(snapshot), "rollback must be exact, not partial")
	assert.Equal(t, []string{"A", "B", "C"}, s.IDs())
}

func TestInsertPrependsNewestFirst(t *testing.T) {
	s := seed("A", "B")
	s.Insert(&models.Task{ID: "tmp-new", Text: "newest"})
	assert.Equal(t, []string{"tmp-new", "A", "B"}, s.IDs())
}

func TestRemoveRemembersIndexAndInsertAtRestoresIt(t *testing.T) {
	s := seed("A", "B", "C")

	removed, index, ok := s.Remove("B")
	require.True(t, ok)
	assert.Equal(t, 1, index)
	assert.Equal(t, []string{"A", "C"}, s.IDs())

	s.InsertAt(removed, index)
	assert.Equal(t, []string{"A", "B", "C"}, s.IDs())

	_, _, ok = s.Remove("missing")
	assert.False(t, ok)
}

func TestInsertAtClampsIndex(t *testing.T) {
	s := seed("A")
	s.InsertAt(&models.Task{ID: "Z"}, 99)
	assert.Equal(t, []string{"A", "Z"}, s.IDs())
	s.InsertAt(&models.Task{ID: "Y"}, -5)
	assert.Equal(t, []string{"Y", "A", "Z"}, s.IDs())
}

func TestReplaceSwapsTemporaryID(t *testing.T) {
	s := seed("A")
	s.Insert(&models.Task{ID: "tmp-1", Text: "optimistic"})

	require.True(t, s.Replace("tmp-1", &models.Task{ID: "srv-9", Text: "confirmed"}))
	assert.Equal(t, []string{"srv-9", "A"}, s.IDs())
	assert.False(t, s.Replace("tmp-1", &models.Task{ID: "x"}), "stale id is gone")
}

func TestReorderAssignsDenseContiguousOrders(t *testing.T) {
	s := seed("A", "B", "C")

	// Drag C to position 0.
	orders, ok := s.Reorder([]string{"C", "A", "B"})
	require.True(t, ok)

	assert.Equal(t, []models.TaskOrder{
		{ID: "C", Order: 0},
		{ID: "A", Order: 1},
		{ID: "B", Order: 2},
	}, orders)
	assert.Equal(t, []string{"C", "A", "B"}, s.IDs())

	// Each task's order field matches its new index.
	for i, id := range s.IDs() {
		task, _ := s.Get(id)
		assert.Equal(t, i, task.Order)
	}

	// The payload covers every id exactly once with orders spanning 0..N-1.
	seen := map[string]bool{}
	for i, o := range orders {
		assert.False(t, seen[o.ID])
		seen[o.ID] = true
		assert.Equal(t, i, o.Order)
	}
}

func TestReorderRejectsNonPermutations(t *testing.T) {
	s := seed("A", "B", "C")
	before := s.Snapshot()

	tests := []struct {
		name string
		ids  []string
	}{
		{"missing id", []string{"A", "B"}},
		{"unknown id", []string{"A", "B", "X"}},
		{"duplicate id", []string{"A", "B", "B"}},
		{"too many", []string{"A", "B", "C", "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := s.Reorder(tt.ids)
			assert.False(t, ok)
			assert.True(t, s.Equal(before), "a rejected reorder must not change the list")
		})
	}
}

func TestSortByOrder(t *testing.T) {
	s := NewTaskStore()
	s.ReplaceAll([]*models.Task{
		{ID: "B", Order: 2},
		{ID: "A", Order: 0},
		{ID: "C", Order: 7},
	})
	s.SortByOrder()
	assert.Equal(t, []string{"A", "B", "C"}, s.IDs())
}

func TestEqual(t *testing.T) {
	s := seed("A", "B")
	snap := s.Snapshot()
	assert.True(t, s.Equal(snap))

	s.Update("A", func(task *models.Task) { task.Completed = true })
	assert.False(t, s.Equal(snap))
}
