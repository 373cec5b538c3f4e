package resilience

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskdeck/taskdeck/pkg/observability"
)

// DefaultIDCap is the default number of distinct task ids that may be in
// flight concurrently for an id-scoped operation category.
const DefaultIDCap = 5

// GateConfig holds configuration for an OperationGate.
type GateConfig struct {
	// IDCap caps concurrent distinct ids per id-scoped category.
	IDCap int

	// Timeouts overrides the per-category watchdog timeouts.
	Timeouts map[Operation]time.Duration
}

// OperationGate tracks which operation categories are in flight and rejects
// attempts that exceed each category's concurrency cap. Rejection is not an
// error: the caller drops the action silently so double-clicks never pile up.
// There is no queueing.
//
// A slot that is not released within its watchdog timeout is force-released
// and logged as a stuck-operation recovery. The gate only clears its own
// bookkeeping; callers who want the underlying request aborted must also
// bound the call's context (the coordinator does).
type OperationGate struct {
	mu       sync.Mutex
	idCap    int
	timeouts map[Operation]time.Duration

	singles map[Operation]*gateSlot
	scoped  map[Operation]map[string]*gateSlot

	onStuck func(op Operation, id string)

	logger  observability.Logger
	metrics observability.MetricsClient

	begins    atomic.Int64
	rejected  atomic.Int64
	recovered atomic.Int64
}

type gateSlot struct {
	startedAt time.Time
	timer     *time.Timer
}

// NewOperationGate creates a gate with the given configuration.
func NewOperationGate(config GateConfig, logger observability.Logger, metrics observability.MetricsClient) *OperationGate {
	if config.IDCap <= 0 {
		config.IDCap = DefaultIDCap
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}

	timeouts := make(map[Operation]time.Duration, len(Operations))
	for _, op := range Operations {
		timeouts[op] = op.DefaultTimeout()
	}
	for op, d := range config.Timeouts {
		if d > 0 {
			timeouts[op] = d
		}
	}

	return &OperationGate{
		idCap:    config.IDCap,
		timeouts: timeouts,
		singles:  make(map[Operation]*gateSlot),
		scoped:   make(map[Operation]map[string]*gateSlot),
		logger:   logger,
		metrics:  metrics,
	}
}

// SetStuckHandler registers a callback invoked after a slot is force-released
// by the watchdog. The callback runs outside the gate's lock.
func (g *OperationGate) SetStuckHandler(fn func(op Operation, id string)) {
	g.mu.Lock()
	g.onStuck = fn
	g.mu.Unlock()
}

// Begin claims a slot for the operation and reports whether the caller may
// proceed. For singleton categories id is ignored; for id-scoped categories
// it names the target task. A false return means the category's cap is
// reached (or the same id is already in flight) and the action must be
// dropped.
func (g *OperationGate) Begin(op Operation, id string) bool {
	return g.BeginWithTimeout(op, id, 0)
}

// BeginWithTimeout is Begin with an explicit watchdog timeout. A zero timeout
// uses the category default.
func (g *OperationGate) BeginWithTimeout(op Operation, id string, timeout time.Duration) bool {
	if !op.IsValid() {
		return false
	}
	if timeout <= 0 {
		timeout = g.timeouts[op]
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.begins.Add(1)

	if op.Singleton() {
		if _, inFlight := g.singles[op]; inFlight {
			g.reject(op)
			return false
		}
		slot := &gateSlot{startedAt: time.Now()}
		slot.timer = time.AfterFunc(timeout, func() { g.recover(op, "", slot) })
		g.singles[op] = slot
		g.gaugeActive(op, 1)
		return true
	}

	ids := g.scoped[op]
	if ids == nil {
		ids = make(map[string]*gateSlot)
		g.scoped[op] = ids
	}
	if _, inFlight := ids[id]; inFlight {
		// Same id, same category: serialize rather than race.
		g.reject(op)
		return false
	}
	if len(ids) >= g.idCap {
		g.reject(op)
		return false
	}
	slot := &gateSlot{startedAt: time.Now()}
	slot.timer = time.AfterFunc(timeout, func() { g.recover(op, id, slot) })
	ids[id] = slot
	g.gaugeActive(op, float64(len(ids)))
	return true
}

// End releases the slot claimed by Begin. Calling End with no matching Begin
// outstanding is a no-op; every Begin must be matched by exactly one End.
func (g *OperationGate) End(op Operation, id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if op.Singleton() {
		if slot, ok := g.singles[op]; ok {
			slot.timer.Stop()
			delete(g.singles, op)
			g.gaugeActive(op, 0)
		}
		return
	}

	if ids := g.scoped[op]; ids != nil {
		if slot, ok := ids[id]; ok {
			slot.timer.Stop()
			delete(ids, id)
			g.gaugeActive(op, float64(len(ids)))
		}
	}
}

// InFlight reports whether the operation (and id, for scoped categories) is
// currently claimed.
func (g *OperationGate) InFlight(op Operation, id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if op.Singleton() {
		_, ok := g.singles[op]
		return ok
	}
	ids := g.scoped[op]
	if ids == nil {
		return false
	}
	_, ok := ids[id]
	return ok
}

// Reset clears all slots and cancels all pending watchdog timers. Invoked on
// startup to guard against stale state from a previous lifecycle.
func (g *OperationGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for op, slot := range g.singles {
		slot.timer.Stop()
		delete(g.singles, op)
	}
	for op, ids := range g.scoped {
		for id, slot := range ids {
			slot.timer.Stop()
			delete(ids, id)
		}
		delete(g.scoped, op)
	}
}

// GateStats is a snapshot of gate counters.
type GateStats struct {
	Active    map[Operation]int
	Begins    int64
	Rejected  int64
	Recovered int64
}

// Stats returns a snapshot of the gate's counters.
func (g *OperationGate) Stats() GateStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	active := make(map[Operation]int)
	for op := range g.singles {
		active[op] = 1
	}
	for op, ids := range g.scoped {
		if len(ids) > 0 {
			active[op] = len(ids)
		}
	}
	return GateStats{
		Active:    active,
		Begins:    g.begins.Load(),
		Rejected:  g.rejected.Load(),
		Recovered: g.recovered.Load(),
	}
}

// recover force-releases a slot whose watchdog fired. The slot identity check
// guards against releasing a newer slot that reused the same key.
func (g *OperationGate) recover(op Operation, id string, slot *gateSlot) {
	g.mu.Lock()
	var released bool
	if op.Singleton() {
		if current, ok := g.singles[op]; ok && current == slot {
			delete(g.singles, op)
			released = true
		}
	} else if ids := g.scoped[op]; ids != nil {
		if current, ok := ids[id]; ok && current == slot {
			delete(ids, id)
			released = true
		}
	}
	onStuck := g.onStuck
	g.mu.Unlock()

	if !released {
		return
	}

	g.recovered.Add(1)
	g.logger.Warn("stuck operation force-released", map[string]interface{}{
		"operation": string(op),
		"task_id":   id,
		"held_for":  time.Since(slot.startedAt).String(),
	})
	g.metrics.IncrementCounter("gate_stuck_recoveries_total", 1, map[string]string{"operation": string(op)})

	if onStuck != nil {
		onStuck(op, id)
	}
}

func (g *OperationGate) reject(op Operation) {
	g.rejected.Add(1)
	g.metrics.IncrementCounter("gate_rejections_total", 1, map[string]string{"operation": string(op)})
	g.logger.Debug("operation rejected at concurrency cap", map[string]interface{}{
		"operation": string(op),
	})
}

func (g *OperationGate) gaugeActive(op Operation, n float64) {
	g.metrics.RecordGauge("gate_active", n, map[string]string{"operation": string(op)})
}
