// Package metrics tracks task execution latency for the status endpoint,
// using an HDR histogram guarded by a mutex; recording and percentile
// queries take the same lock.
package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minRecordableMicros = 1
	maxRecordableMicros = 60 * 60 * 1_000_000 // 1 hour, in microseconds
	significantFigures   = 3
)

// LatencyTracker records task execution durations and answers percentile
// queries. Safe for concurrent use.
type LatencyTracker struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

// NewLatencyTracker creates an empty tracker.
func NewLatencyTracker() *LatencyTracker {
	return &LatencyTracker{
		hist: hdrhistogram.New(minRecordableMicros, maxRecordableMicros, significantFigures),
	}
}

// Record adds one completed task's duration to the histogram. Out-of-range
// durations (under one microsecond, or longer than the configured ceiling) are dropped
// rather than returned as an error — a single outlier must never disrupt
// latency reporting for every other task.
func (t *LatencyTracker) Record(d time.Duration) {
	micros := d.Microseconds()
	if micros < minRecordableMicros || micros > maxRecordableMicros {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.hist.RecordValue(micros)
}

// Percentiles is a snapshot of p50/p95/p99, in milliseconds.
type Percentiles struct {
	P50 float64
	P95 float64
	P99 float64
}

// Snapshot returns the current p50/p95/p99.
func (t *LatencyTracker) Snapshot() Percentiles {
	t.mu.Lock()
	defer t.mu.Unlock()
	toMillis := func(q float64) float64 {
		return float64(t.hist.ValueAtQuantile(q)) / 1000.0
	}
	return Percentiles{
		P50: toMillis(50),
		P95: toMillis(95),
		P99: toMillis(99),
	}
}
