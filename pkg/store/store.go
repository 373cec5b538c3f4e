// Package store holds the client's transient, possibly-stale copy of the
// task list. The backend owns the records; this store exists so optimistic
// updates can be applied and rolled back without a round trip.
//
// Every mutation is copy-on-write: the task being changed is cloned and a new
// backing slice is built, so a snapshot taken before a mutation is never
// clobbered by concurrent optimistic updates to other tasks.
package store

import (
	"sort"
	"sync"

	"github.com/taskdeck/taskdeck/pkg/models"
)

// TaskStore is an in-memory, copy-on-write task list.
type TaskStore struct {
	mu    sync.RWMutex
	tasks []*models.Task
}

// NewTaskStore creates an empty store.
func NewTaskStore() *TaskStore {
	return &TaskStore{}
}

// ReplaceAll swaps in a new authoritative task list, cloning the input.
func (s *TaskStore) ReplaceAll(tasks []*models.Task) {
	cloned := cloneAll(tasks)
	s.mu.Lock()
	s.tasks = cloned
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the current list, suitable for rollback.
func (s *TaskStore) Snapshot() []*models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.tasks)
}

// Restore replaces the list with a previously taken snapshot, exactly.
func (s *TaskStore) Restore(snapshot []*models.Task) {
	s.ReplaceAll(snapshot)
}

// Tasks returns a deep copy of the current list for rendering.
func (s *TaskStore) Tasks() []*models.Task {
	return s.Snapshot()
}

// Len returns the number of tasks.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Get returns a copy of the task with the given id.
func (s *TaskStore) Get(id string) (*models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return nil, false
}

// Insert prepends a task: the newest entry renders first until a manual
// reorder assigns explicit positions.
func (s *TaskStore) Insert(task *models.Task) {
	cloned := task.Clone()
	s.mu.Lock()
	next := make([]*models.Task, 0, len(s.tasks)+1)
	next = append(next, cloned)
	next = append(next, s.tasks...)
	s.tasks = next
	s.mu.Unlock()
}

// InsertAt puts a task back at a remembered index, clamping out-of-range
// positions. Used to undo an optimistic delete.
func (s *TaskStore) InsertAt(task *models.Task, index int) {
	cloned := task.Clone()
	s.mu.Lock()
	if index < 0 {
		index = 0
	}
	if index > len(s.tasks) {
		index = len(s.tasks)
	}
	next := make([]*models.Task, 0, len(s.tasks)+1)
	next = append(next, s.tasks[:index]...)
	next = append(next, cloned)
	next = append(next, s.tasks[index:]...)
	s.tasks = next
	s.mu.Unlock()
}

// Update applies mutate to a clone of the task with the given id and swaps
// the clone in. Returns false when the id is unknown.
func (s *TaskStore) Update(id string, mutate func(*models.Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t.ID == id {
			cloned := t.Clone()
			mutate(cloned)
			next := make([]*models.Task, len(s.tasks))
			copy(next, s.tasks)
			next[i] = cloned
			s.tasks = next
			return true
		}
	}
	return false
}

// Replace substitutes the task with the given id by a new record, keeping
// its position. Used to reconcile a temporary id with the server's record.
func (s *TaskStore) Replace(id string, task *models.Task) bool {
	cloned := task.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t.ID == id {
			next := make([]*models.Task, len(s.tasks))
			copy(next, s.tasks)
			next[i] = cloned
			s.tasks = next
			return true
		}
	}
	return false
}

// Remove deletes the task with the given id, returning the removed record
// and the index it occupied so a rollback can put it back exactly.
func (s *TaskStore) Remove(id string) (*models.Task, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t.ID == id {
			removed := t.Clone()
			next := make([]*models.Task, 0, len(s.tasks)-1)
			next = append(next, s.tasks[:i]...)
			next = append(next, s.tasks[i+1:]...)
			s.tasks = next
			return removed, i, true
		}
	}
	return nil, -1, false
}

// Reorder rearranges the list to match the given id sequence and assigns
// dense 0-based order values. The sequence must be a permutation of the
// current id set; otherwise nothing changes and ok is false. The returned
// orders are the payload for the reorder endpoint: each id exactly once,
// orders spanning 0..N-1.
func (s *TaskStore) Reorder(ids []string) ([]models.TaskOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) != len(s.tasks) {
		return nil, false
	}
	byID := make(map[string]*models.Task, len(s.tasks))
	for _, t := range s.tasks {
		byID[t.ID] = t
	}

	next := make([]*models.Task, 0, len(ids))
	orders := make([]models.TaskOrder, 0, len(ids))
	for i, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, false
		}
		delete(byID, id) // reject duplicate ids
		cloned := t.Clone()
		cloned.Order = i
		next = append(next, cloned)
		orders = append(orders, models.TaskOrder{ID: id, Order: i})
	}

	s.tasks = next
	return orders, true
}

// SortByOrder sorts the list by manual order, ascending. Called after the
// server confirms a reorder that may have normalized values.
func (s *TaskStore) SortByOrder() {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]*models.Task, len(s.tasks))
	copy(next, s.tasks)
	sort.SliceStable(next, func(i, j int) bool { return next[i].Order < next[j].Order })
	s.tasks = next
}

// Equal reports whether the store's list is structurally equal to other:
// same ids, same field values, same order.
func (s *TaskStore) Equal(other []*models.Task) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.tasks) != len(other) {
		return false
	}
	for i := range s.tasks {
		if !s.tasks[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// IDs returns the current id sequence, in display order.
func (s *TaskStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		ids[i] = t.ID
	}
	return ids
}

func cloneAll(tasks []*models.Task) []*models.Task {
	cloned := make([]*models.Task, len(tasks))
	for i, t := range tasks {
		cloned[i] = t.Clone()
	}
	return cloned
}
