package merge

import (
	"maps"
	"sync"
	"time"
)

// MergeMetrics holds counters for one merger run
type MergeMetrics struct {
	FilesFed       int64
	DirsTracked    int64
	DirsFull       int64
	Promotions     int64
	GroupsEmitted  int64
	DirsReported   int64
	ProcessingTime time.Duration
	LastUpdated    time.Time

	OperationCounts map[string]int64
}

// MetricsCollector provides concurrency-safe metrics collection for the merger
type MetricsCollector struct {
	mu      sync.Mutex
	metrics *MergeMetrics
	started time.Time
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: &MergeMetrics{
			OperationCounts: make(map[string]int64),
		},
		started: time.Now(),
	}
}

// IncrementOperation bumps the named operation counter
func (mc *MetricsCollector) IncrementOperation(op string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.metrics.OperationCounts[op]++
	mc.metrics.LastUpdated = time.Now()
}

// Update applies fn to the metrics under the collector lock
func (mc *MetricsCollector) Update(fn func(m *MergeMetrics)) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	fn(mc.metrics)
	mc.metrics.LastUpdated = time.Now()
}

// Snapshot returns a copy of the current metrics
func (mc *MetricsCollector) Snapshot() *MergeMetrics {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	snapshot := *mc.metrics
	snapshot.ProcessingTime = time.Since(mc.started)
	snapshot.OperationCounts = maps.Clone(mc.metrics.OperationCounts)
	return &snapshot
}
