// Package coordinator orchestrates each user action end to end: claim a slot
// in the operation gate, apply the optimistic mutation, run the retry-wrapped
// backend call, then reconcile with the server's answer or roll the local
// state back exactly to its pre-action snapshot.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/taskdeck/taskdeck/pkg/errors"
	"github.com/taskdeck/taskdeck/pkg/models"
	"github.com/taskdeck/taskdeck/pkg/observability"
	"github.com/taskdeck/taskdeck/pkg/resilience"
	"github.com/taskdeck/taskdeck/pkg/retry"
	"github.com/taskdeck/taskdeck/pkg/store"
)

// API is the slice of the backend client the coordinator drives. Defined
// here so tests can substitute a fake.
type API interface {
	ListTasks(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error)
	SearchTasks(ctx context.Context, query string, filter models.TaskFilter) ([]*models.Task, error)
	CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (*models.Task, error)
	ReorderTasks(ctx context.Context, orders []models.TaskOrder) ([]*models.Task, error)
	DeleteTask(ctx context.Context, id string) (*models.Task, error)
}

// TempIDPrefix marks optimistic create ids until the server assigns one.
const TempIDPrefix = "tmp-"

// Config tunes the coordinator.
type Config struct {
	// Gate configures the operation gate.
	Gate resilience.GateConfig

	// Retry overrides the per-operation retry configs; the predicate is
	// always forced to the classified-retryable check.
	Retry map[string]retry.Config

	// SearchRate and SearchBurst tune the search throttle.
	SearchRate  float64
	SearchBurst int

	Logger  observability.Logger
	Metrics observability.MetricsClient

	// OnChange fires after every visible state change (task list, search
	// results, or banner). The presentation layer re-renders on it.
	OnChange func()

	// OnError fires when an operation fails terminally, with the banner
	// about to be shown.
	OnError func(banner *Banner)
}

// Coordinator drives optimistic mutations against the backend.
type Coordinator struct {
	api      API
	store    *store.TaskStore
	gate     *resilience.OperationGate
	limiter  *resilience.SearchLimiter
	logger   observability.Logger
	metrics  observability.MetricsClient
	onChange func()
	onError  func(*Banner)

	policies map[string]retry.Policy
	timeouts map[resilience.Operation]time.Duration

	mu            sync.Mutex
	banner        *Banner
	searchResults []*models.Task
}

// New creates a coordinator over the given API and task store.
func New(api API, st *store.TaskStore, cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}

	timeouts := make(map[resilience.Operation]time.Duration, len(resilience.Operations))
	for _, op := range resilience.Operations {
		timeouts[op] = op.DefaultTimeout()
	}
	for op, d := range cfg.Gate.Timeouts {
		if d > 0 {
			timeouts[op] = d
		}
	}

	policies := make(map[string]retry.Policy)
	for _, op := range []string{"create", "update", "delete", "toggle", "reorder", "search", "list"} {
		rc, ok := cfg.Retry[op]
		if !ok {
			rc = retry.OperationConfig(op)
		}
		rc.Predicate = apperrors.IsRetryable
		policies[op] = retry.NewExponentialBackoff(rc, logger.WithPrefix("retry"))
	}

	c := &Coordinator{
		api:      api,
		store:    st,
		gate:     resilience.NewOperationGate(cfg.Gate, logger.WithPrefix("gate"), metrics),
		limiter:  resilience.NewSearchLimiter(cfg.SearchRate, cfg.SearchBurst),
		logger:   logger,
		metrics:  metrics,
		onChange: cfg.OnChange,
		onError:  cfg.OnError,
		policies: policies,
		timeouts: timeouts,
	}

	// Stale slots from a previous lifecycle must never survive into this one.
	c.gate.Reset()
	return c
}

// Gate exposes the operation gate, mainly for stats output.
func (c *Coordinator) Gate() *resilience.OperationGate {
	return c.gate
}

// Tasks returns the current task list for rendering.
func (c *Coordinator) Tasks() []*models.Task {
	return c.store.Tasks()
}

// SearchResults returns the last successful search's result set.
func (c *Coordinator) SearchResults() []*models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.Task(nil), c.searchResults...)
}

// Refresh replaces the local list with the server's, optionally filtered.
func (c *Coordinator) Refresh(ctx context.Context, filter models.TaskFilter) error {
	var tasks []*models.Task
	err := c.policies["list"].Execute(ctx, func(ctx context.Context) error {
		var callErr error
		tasks, callErr = c.api.ListTasks(ctx, filter)
		return callErr
	})
	if err != nil {
		return c.fail("list", err, nil)
	}

	c.store.ReplaceAll(tasks)
	c.succeed("list")
	return nil
}

// Create adds a task. The entry appears immediately under a temporary id and
// is reconciled with the server's record on acknowledgment.
func (c *Coordinator) Create(ctx context.Context, req models.CreateTaskRequest) error {
	probe := models.Task{Text: req.Text, Category: req.Category, Priority: req.Priority}
	if err := probe.Validate(); err != nil {
		return c.fail("create", apperrors.New(apperrors.CategoryValidation, "create", err.Error()), nil)
	}

	if !c.gate.Begin(resilience.OpCreate, "") {
		return nil // concurrency cap: drop silently, this is a debounce
	}
	defer c.gate.End(resilience.OpCreate, "")

	snapshot := c.store.Snapshot()

	now := time.Now()
	tmpID := TempIDPrefix + uuid.NewString()
	optimistic := &models.Task{
		ID:        tmpID,
		Text:      req.Text,
		Category:  req.Category,
		Priority:  req.Priority,
		DueDate:   req.DueDate,
		Tags:      req.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.store.Insert(optimistic)
	c.notify()

	var created *models.Task
	err := c.execute(ctx, resilience.OpCreate, "create", func(ctx context.Context) error {
		var callErr error
		created, callErr = c.api.CreateTask(ctx, req)
		return callErr
	})
	if err != nil {
		c.store.Restore(snapshot)
		return c.fail("create", err, func(ctx context.Context) error {
			return c.Create(ctx, req)
		})
	}

	if created != nil {
		c.store.Replace(tmpID, created)
	}
	c.succeed("create")
	return nil
}

// Toggle flips a task's completion flag.
func (c *Coordinator) Toggle(ctx context.Context, id string) error {
	prior, ok := c.store.Get(id)
	if !ok {
		return c.fail("toggle", apperrors.New(apperrors.CategoryValidation, "toggle",
			fmt.Sprintf("no task with id %q", id)), nil)
	}

	if !c.gate.Begin(resilience.OpToggle, id) {
		return nil
	}
	defer c.gate.End(resilience.OpToggle, id)

	completed := !prior.Completed
	c.store.Update(id, func(t *models.Task) {
		t.Completed = completed
		t.UpdatedAt = time.Now()
	})
	c.notify()

	var updated *models.Task
	err := c.execute(ctx, resilience.OpToggle, "toggle", func(ctx context.Context) error {
		var callErr error
		updated, callErr = c.api.UpdateTask(ctx, id, models.UpdateTaskRequest{Completed: &completed})
		return callErr
	})
	if err != nil {
		c.store.Replace(id, prior)
		return c.fail("toggle", err, func(ctx context.Context) error {
			return c.Toggle(ctx, id)
		})
	}

	if updated != nil {
		c.store.Replace(id, updated)
	}
	c.succeed("toggle")
	return nil
}

// Update applies a partial edit to a task.
func (c *Coordinator) Update(ctx context.Context, id string, req models.UpdateTaskRequest) error {
	if req.Text != nil {
		probe := models.Task{Text: *req.Text}
		if err := probe.Validate(); err != nil {
			return c.fail("update", apperrors.New(apperrors.CategoryValidation, "update", err.Error()), nil)
		}
	}

	prior, ok := c.store.Get(id)
	if !ok {
		return c.fail("update", apperrors.New(apperrors.CategoryValidation, "update",
			fmt.Sprintf("no task with id %q", id)), nil)
	}

	if !c.gate.Begin(resilience.OpUpdate, id) {
		return nil
	}
	defer c.gate.End(resilience.OpUpdate, id)

	c.store.Update(id, func(t *models.Task) {
		applyUpdate(t, req)
		t.UpdatedAt = time.Now()
	})
	c.notify()

	var updated *models.Task
	err := c.execute(ctx, resilience.OpUpdate, "update", func(ctx context.Context) error {
		var callErr error
		updated, callErr = c.api.UpdateTask(ctx, id, req)
		return callErr
	})
	if err != nil {
		c.store.Replace(id, prior)
		return c.fail("update", err, func(ctx context.Context) error {
			return c.Update(ctx, id, req)
		})
	}

	if updated != nil {
		c.store.Replace(id, updated)
	}
	c.succeed("update")
	return nil
}

// Delete removes a task. On terminal failure the row reappears at its
// original index.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	if !c.gate.Begin(resilience.OpDelete, id) {
		return nil
	}
	defer c.gate.End(resilience.OpDelete, id)

	removed, index, ok := c.store.Remove(id)
	if !ok {
		return c.fail("delete", apperrors.New(apperrors.CategoryValidation, "delete",
			fmt.Sprintf("no task with id %q", id)), nil)
	}
	c.notify()

	err := c.execute(ctx, resilience.OpDelete, "delete", func(ctx context.Context) error {
		_, callErr := c.api.DeleteTask(ctx, id)
		return callErr
	})
	if err != nil {
		c.store.InsertAt(removed, index)
		return c.fail("delete", err, func(ctx context.Context) error {
			return c.Delete(ctx, id)
		})
	}

	c.succeed("delete")
	return nil
}

// Reorder rearranges the list to match ids, a permutation of the current id
// set, and submits dense 0-based order values.
func (c *Coordinator) Reorder(ctx context.Context, ids []string) error {
	if !c.gate.Begin(resilience.OpReorder, "") {
		return nil
	}
	defer c.gate.End(resilience.OpReorder, "")

	snapshot := c.store.Snapshot()

	orders, ok := c.store.Reorder(ids)
	if !ok {
		return c.fail("reorder", apperrors.New(apperrors.CategoryValidation, "reorder",
			"reorder must cover exactly the current task ids"), nil)
	}
	c.notify()

	var confirmed []*models.Task
	err := c.execute(ctx, resilience.OpReorder, "reorder", func(ctx context.Context) error {
		var callErr error
		confirmed, callErr = c.api.ReorderTasks(ctx, orders)
		return callErr
	})
	if err != nil {
		c.store.Restore(snapshot)
		return c.fail("reorder", err, func(ctx context.Context) error {
			return c.Reorder(ctx, ids)
		})
	}

	if len(confirmed) > 0 {
		c.store.ReplaceAll(confirmed)
		c.store.SortByOrder()
	}
	c.succeed("reorder")
	return nil
}

// Search runs a read-only text search. It never touches the task list; on
// failure the previous result set is left as it was.
func (c *Coordinator) Search(ctx context.Context, query string, filter models.TaskFilter) error {
	if !c.limiter.Allow() {
		c.logger.Debug("search throttled", map[string]interface{}{"query": query})
		return nil
	}
	if !c.gate.Begin(resilience.OpSearch, "") {
		return nil
	}
	defer c.gate.End(resilience.OpSearch, "")

	var results []*models.Task
	err := c.execute(ctx, resilience.OpSearch, "search", func(ctx context.Context) error {
		var callErr error
		results, callErr = c.api.SearchTasks(ctx, query, filter)
		return callErr
	})
	if err != nil {
		return c.fail("search", err, func(ctx context.Context) error {
			return c.Search(ctx, query, filter)
		})
	}

	c.mu.Lock()
	c.searchResults = results
	c.mu.Unlock()
	c.succeed("search")
	return nil
}

// ClearCompleted deletes every completed task through the normal per-id
// delete protocol, so each row gets its own gate slot and rollback.
func (c *Coordinator) ClearCompleted(ctx context.Context) error {
	var firstErr error
	for _, t := range c.store.Tasks() {
		if !t.Completed {
			continue
		}
		if err := c.Delete(ctx, t.ID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// execute runs fn under the operation's retry policy with a deadline bound
// to the gate's watchdog window, so a request the gate has given up on is
// actually aborted rather than left to mutate state later.
func (c *Coordinator) execute(ctx context.Context, op resilience.Operation, name string, fn func(ctx context.Context) error) error {
	deadline, cancel := context.WithTimeout(ctx, c.timeouts[op])
	defer cancel()

	start := time.Now()
	err := c.policies[name].Execute(deadline, fn)
	c.metrics.RecordDuration("operation_seconds", time.Since(start).Seconds(),
		map[string]string{"operation": name})
	return err
}

func applyUpdate(t *models.Task, req models.UpdateTaskRequest) {
	if req.Text != nil {
		t.Text = *req.Text
	}
	if req.Completed != nil {
		t.Completed = *req.Completed
	}
	if req.Category != nil {
		t.Category = *req.Category
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	}
	if req.Tags != nil {
		t.Tags = append([]string(nil), req.Tags...)
	}
	if req.Order != nil {
		t.Order = *req.Order
	}
}

func (c *Coordinator) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}
