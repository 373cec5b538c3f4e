package observability

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStandardLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(log.Writer())

	l := NewStandardLogger("test").(*StandardLogger).WithLevel(LogLevelWarn)

	l.Debug("debug msg", nil)
	l.Info("info msg", nil)
	assert.Empty(t, buf.String(), "messages below the level must be suppressed")

	l.Warn("warn msg", map[string]interface{}{"operation": "create"})
	out := buf.String()
	assert.Contains(t, out, "warn msg")
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "[test]")
	assert.Contains(t, out, "operation=create")
}

func TestWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(log.Writer())

	l := NewStandardLogger("root").WithPrefix("gate")
	l.Error("stuck operation", nil)
	assert.Contains(t, buf.String(), "[gate]")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("debug"))
	assert.Equal(t, LogLevelWarn, ParseLevel("WARN"))
	assert.Equal(t, LogLevelInfo, ParseLevel("nonsense"))
}

func TestInMemoryMetrics(t *testing.T) {
	m := NewInMemoryMetricsClient()

	labels := map[string]string{"operation": "create"}
	m.IncrementCounter("gate_rejections_total", 1, labels)
	m.IncrementCounter("gate_rejections_total", 1, labels)
	m.RecordGauge("gate_active", 3, nil)

	assert.Equal(t, float64(2), m.Counter("gate_rejections_total", labels))
	assert.Equal(t, float64(3), m.Gauge("gate_active", nil))
	assert.Zero(t, m.Counter("gate_rejections_total", map[string]string{"operation": "delete"}))
}
