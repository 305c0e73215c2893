// Package metrics provides lightweight, zero-dependency metrics primitives
// for internal instrumentation. Counter and Gauge use atomic operations;
// Histogram uses a mutex. This is not an exporter surface: scraping/exposing
// these values over HTTP is an external collaborator's concern.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing value; Add ignores negative deltas.
type Counter struct {
	name  string
	value atomic.Int64
}

// NewCounter returns a named Counter starting at zero.
func NewCounter(name string) *Counter {
	return &Counter{name: name}
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64) {
	if n < 0 {
		return
	}
	c.value.Add(n)
}
func (c *Counter) Value() int64 { return c.value.Load() }
func (c *Counter) Name() string { return c.name }

// Gauge is a value that can move up or down.
type Gauge struct {
	name  string
	value atomic.Int64
}

// NewGauge returns a named Gauge starting at zero.
func NewGauge(name string) *Gauge {
	return &Gauge{name: name}
}

func (g *Gauge) Set(n int64)    { g.value.Store(n) }
func (g *Gauge) Inc()           { g.value.Add(1) }
func (g *Gauge) Dec()           { g.value.Add(-1) }
func (g *Gauge) Value() int64   { return g.value.Load() }
func (g *Gauge) Name() string   { return g.name }

// Histogram accumulates observed durations/sizes and can report simple
// quantiles. It is guarded by a mutex since observations are not a single
// scalar.
type Histogram struct {
	name string
	mu   sync.Mutex
	obs  []float64
}

// NewHistogram returns a named, empty Histogram.
func NewHistogram(name string) *Histogram {
	return &Histogram{name: name}
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.obs = append(h.obs, v)
}

// Count returns the number of observations recorded.
func (h *Histogram) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.obs)
}

// Quantile returns the value at the given quantile in [0,1]. Returns 0 if
// no observations have been recorded.
func (h *Histogram) Quantile(q float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.obs) == 0 {
		return 0
	}
	sorted := make([]float64, len(h.obs))
	copy(sorted, h.obs)
	sort.Float64s(sorted)
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}

func (h *Histogram) Name() string { return h.name }
