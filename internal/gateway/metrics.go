package gateway

import (
	"sort"
	"sync"
)

// maxHistogramSamples bounds each histogram to a rolling window.
const maxHistogramSamples = 500

// Metrics holds in-process per-dependency counters and latency histograms.
// They are emitted as structured logs; no external sink is coupled here.
type Metrics struct {
	mu         sync.Mutex
	counters   map[string]int64
	histograms map[string][]float64
}

// NewMetrics creates an empty metrics registry.
func NewMetrics() *Metrics {
	return &Metrics{
		counters:   make(map[string]int64),
		histograms: make(map[string][]float64),
	}
}

// Inc increments a counter.
func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
}

// Observe records a histogram observation, e.g. a call duration in
// milliseconds.
func (m *Metrics) Observe(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := append(m.histograms[name], value)
	if len(bucket) > maxHistogramSamples {
		bucket = bucket[len(bucket)-maxHistogramSamples:]
	}
	m.histograms[name] = bucket
}

// HistogramSummary summarizes one histogram's rolling window.
type HistogramSummary struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

// Snapshot returns current counters and histogram summaries.
type Snapshot struct {
	Counters   map[string]int64            `json:"counters"`
	Histograms map[string]HistogramSummary `json:"histograms"`
}

// Snapshot returns a copy of all counters and histogram summaries.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Counters:   make(map[string]int64, len(m.counters)),
		Histograms: make(map[string]HistogramSummary, len(m.histograms)),
	}

	for name, v := range m.counters {
		snap.Counters[name] = v
	}

	for name, samples := range m.histograms {
		if len(samples) == 0 {
			continue
		}
		sorted := make([]float64, len(samples))
		copy(sorted, samples)
		sort.Float64s(sorted)

		snap.Histograms[name] = HistogramSummary{
			Count: len(sorted),
			P50:   percentile(sorted, 0.5),
			P95:   percentile(sorted, 0.95),
			P99:   percentile(sorted, 0.99),
			Max:   sorted[len(sorted)-1],
		}
	}

	return snap
}

// Reset clears all counters and histograms.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = make(map[string]int64)
	m.histograms = make(map[string][]float64)
}

func percentile(sorted []float64, q float64) float64 {
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
