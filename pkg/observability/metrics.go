package observability

import "sync"

// MetricsClient defines the interface for recording metrics. The gate, retry
// policies, and REST client record through it; consumers choose the backend.
type MetricsClient interface {
	IncrementCounter(name string, value float64, labels map[string]string)
	RecordGauge(name string, value float64, labels map[string]string)
	RecordDuration(name string, seconds float64, labels map[string]string)
}

// NoopMetricsClient discards all metrics.
type NoopMetricsClient struct{}

// NewNoopMetricsClient creates a new NoopMetricsClient.
func NewNoopMetricsClient() MetricsClient {
	return &NoopMetricsClient{}
}

// IncrementCounter implements MetricsClient.IncrementCounter
func (m *NoopMetricsClient) IncrementCounter(name string, value float64, labels map[string]string) {}

// RecordGauge implements MetricsClient.RecordGauge
func (m *NoopMetricsClient) RecordGauge(name string, value float64, labels map[string]string) {}

// RecordDuration implements MetricsClient.RecordDuration
func (m *NoopMetricsClient) RecordDuration(name string, seconds float64, labels map[string]string) {
}

// InMemoryMetricsClient accumulates metrics in memory. Intended for tests and
// for the CLI's --stats output.
type InMemoryMetricsClient struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
}

// NewInMemoryMetricsClient creates a new InMemoryMetricsClient.
func NewInMemoryMetricsClient() *InMemoryMetricsClient {
	return &InMemoryMetricsClient{
		counters: make(map[string]float64),
		gauges:   make(map[string]float64),
	}
}

// IncrementCounter implements MetricsClient.IncrementCounter
func (m *InMemoryMetricsClient) IncrementCounter(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[keyWithLabels(name, labels)] += value
}

// RecordGauge implements MetricsClient.RecordGauge
func (m *InMemoryMetricsClient) RecordGauge(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[keyWithLabels(name, labels)] = value
}

// RecordDuration implements MetricsClient.RecordDuration
func (m *InMemoryMetricsClient) RecordDuration(name string, seconds float64, labels map[string]string) {
	m.RecordGauge(name, seconds, labels)
}

// Counter returns the accumulated value for a counter.
func (m *InMemoryMetricsClient) Counter(name string, labels map[string]string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[keyWithLabels(name, labels)]
}

// Gauge returns the last recorded value for a gauge.
func (m *InMemoryMetricsClient) Gauge(name string, labels map[string]string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[keyWithLabels(name, labels)]
}

func keyWithLabels(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	// Stable enough for tests: labels are few and written by our own code.
	key := name
	for _, label := range []string{"operation", "category", "reason", "status"} {
		if v, ok := labels[label]; ok {
			key += "|" + label + "=" + v
		}
	}
	return key
}
