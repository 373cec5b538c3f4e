package resilience

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/taskdeck/taskdeck/pkg/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestGate(cfg GateConfig) (*OperationGate, *observability.InMemoryMetricsClient) {
	metrics := observability.NewInMemoryMetricsClient()
	return NewOperationGate(cfg, observability.NewNoopLogger(), metrics), metrics
}

func TestSingletonCategoriesCapAtOne(t *testing.T) {
	g, metrics := newTestGate(GateConfig{})
	defer g.Reset()

	for _, op := range []Operation{OpCreate, OpReorder, OpSearch} {
		t.Run(string(op), func(t *testing.T) {
			require.True(t, g.Begin(op, ""))
			assert.False(t, g.Begin(op, ""), "second %s must be rejected while one is in flight", op)

			g.End(op, "")
			assert.True(t, g.Begin(op, ""), "slot must be reusable after End")
			g.End(op, "")
		})
	}

	assert.Equal(t, float64(3), metrics.Counter("gate_rejections_total", map[string]string{"operation": "create"})+
		metrics.Counter("gate_rejections_total", map[string]string{"operation": "reorder"})+
		metrics.Counter("gate_rejections_total", map[string]string{"operation": "search"}))
}

func TestIDScopedCategoriesCapDistinctIDs(t *testing.T) {
	g, _ := newTestGate(GateConfig{IDCap: 3})
	defer g.Reset()

	require.True(t, g.Begin(OpUpdate, "a"))
	require.True(t, g.Begin(OpUpdate, "b"))
	require.True(t, g.Begin(OpUpdate, "c"))
	assert.False(t, g.Begin(OpUpdate, "d"), "cap of 3 distinct ids reached")

	// Other categories have their own caps.
	assert.True(t, g.Begin(OpDelete, "a2"))
	g.End(OpDelete, "a2")

	g.End(OpUpdate, "b")
	assert.True(t, g.Begin(OpUpdate, "d"), "slot freed by End must be claimable")

	g.Reset()
}

func TestSameIDSameCategoryIsSerialized(t *testing.T) {
	g, _ := newTestGate(GateConfig{})
	defer g.Reset()

	require.True(t, g.Begin(OpToggle, "abc123"))
	assert.False(t, g.Begin(OpToggle, "abc123"), "same id in the same category must be rejected")

	// Same id in a different category is allowed; the server resolves the
	// race last-write-wins.
	assert.True(t, g.Begin(OpUpdate, "abc123"))

	g.End(OpToggle, "abc123")
	g.End(OpUpdate, "abc123")
}

func TestEndWithoutBeginIsNoOp(t *testing.T) {
	g, _ := newTestGate(GateConfig{})
	defer g.Reset()

	assert.NotPanics(t, func() {
		g.End(OpCreate, "")
		g.End(OpUpdate, "never-began")
	})

	// State is unchanged: a fresh Begin still succeeds.
	assert.True(t, g.Begin(OpCreate, ""))
	g.End(OpCreate, "")
	assert.Equal(t, 0, len(g.Stats().Active))
}

func TestWatchdogForceReleasesStuckSlot(t *testing.T) {
	g, metrics := newTestGate(GateConfig{})
	defer g.Reset()

	var mu sync.Mutex
	var stuckOp Operation
	var stuckID string
	released := make(chan struct{})
	g.SetStuckHandler(func(op Operation, id string) {
		mu.Lock()
		stuckOp, stuckID = op, id
		mu.Unlock()
		close(released)
	})

	require.True(t, g.BeginWithTimeout(OpUpdate, "abc123", 20*time.Millisecond))

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("watchdog did not fire")
	}

	mu.Lock()
	assert.Equal(t, OpUpdate, stuckOp)
	assert.Equal(t, "abc123", stuckID)
	mu.Unlock()

	assert.False(t, g.InFlight(OpUpdate, "abc123"))
	assert.True(t, g.Begin(OpUpdate, "abc123"), "slot must be claimable after recovery")
	g.End(OpUpdate, "abc123")

	assert.Equal(t, float64(1), metrics.Counter("gate_stuck_recoveries_total", map[string]string{"operation": "update"}))
	assert.Equal(t, int64(1), g.Stats().Recovered)
}

func TestWatchdogDoesNotReleaseSuccessor(t *testing.T) {
	g, _ := newTestGate(GateConfig{})
	defer g.Reset()

	// Claim, release, and immediately reclaim the same key. The first
	// slot's (stopped) timer must not be able to release the second slot.
	require.True(t, g.BeginWithTimeout(OpToggle, "x", 20*time.Millisecond))
	g.End(OpToggle, "x")
	require.True(t, g.BeginWithTimeout(OpToggle, "x", time.Hour))

	time.Sleep(50 * time.Millisecond)
	assert.True(t, g.InFlight(OpToggle, "x"), "successor slot must survive the first slot's timeout window")
	g.End(OpToggle, "x")
}

func TestResetClearsEverything(t *testing.T) {
	g, _ := newTestGate(GateConfig{})

	require.True(t, g.Begin(OpCreate, ""))
	require.True(t, g.Begin(OpUpdate, "a"))
	require.True(t, g.Begin(OpDelete, "b"))

	g.Reset()

	stats := g.Stats()
	assert.Empty(t, stats.Active)
	assert.True(t, g.Begin(OpCreate, ""))
	assert.True(t, g.Begin(OpUpdate, "a"))
	g.Reset()
}

func TestInvalidOperationRejected(t *testing.T) {
	g, _ := newTestGate(GateConfig{})
	assert.False(t, g.Begin(Operation("refresh-all"), ""))
}

func TestStats(t *testing.T) {
	g, _ := newTestGate(GateConfig{})
	defer g.Reset()

	require.True(t, g.Begin(OpSearch, ""))
	require.True(t, g.Begin(OpUpdate, "a"))
	require.True(t, g.Begin(OpUpdate, "b"))
	assert.False(t, g.Begin(OpSearch, ""))

	stats := g.Stats()
	assert.Equal(t, 1, stats.Active[OpSearch])
	assert.Equal(t, 2, stats.Active[OpUpdate])
	assert.Equal(t, int64(4), stats.Begins)
	assert.Equal(t, int64(1), stats.Rejected)
}
