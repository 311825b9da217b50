package metrics

import (
	"sync"

	"go.uber.org/atomic"
)

// Kind identifies which primitive a Metric is.
type Kind int

const (
	KindCounter Kind = iota
	KindGauge
	KindAverage
	KindSum
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindAverage:
		return "average"
	case KindSum:
		return "sum"
	default:
		return "unknown"
	}
}

// Unit describes how a value should be rendered by exporters.
type Unit int

const (
	UnitNone Unit = iota
	UnitBytes
	UnitSeconds
	UnitRatio
)

// Metric is the capability every leaf in the tree exposes to exporters.
type Metric interface {
	Name() string
	Help() string
	Kind() Kind
	Unit() Unit
	Value() float64
}

type desc struct {
	name string
	help string
	unit Unit
}

func (d desc) Name() string { return d.name }
func (d desc) Help() string { return d.help }
func (d desc) Unit() Unit   { return d.unit }

// =============================================================================
// Counter
// =============================================================================

// Counter is a monotonically increasing count.
type Counter struct {
	desc
	v atomic.Int64
}

// NewCounter creates a detached counter. Use Set.Counter to create one inside a tree.
func NewCounter(name, help string) *Counter {
	return &Counter{desc: desc{name: name, help: help}}
}

func (c *Counter) Kind() Kind { return KindCounter }

// Inc increments the counter by one.
func (c *Counter) Inc() { c.v.Inc() }

// Add increments the counter by n. Negative deltas are ignored.
func (c *Counter) Add(n int64) {
	if n <= 0 {
		return
	}
	c.v.Add(n)
}

// Count returns the current count.
func (c *Counter) Count() int64 { return c.v.Load() }

func (c *Counter) Value() float64 { return float64(c.v.Load()) }

// =============================================================================
// Gauge
// =============================================================================

// Gauge holds the last value set.
type Gauge struct {
	desc
	v atomic.Float64
}

// NewGauge creates a detached gauge.
func NewGauge(name, help string, unit Unit) *Gauge {
	return &Gauge{desc: desc{name: name, help: help, unit: unit}}
}

func (g *Gauge) Kind() Kind { return KindGauge }

// Set replaces the gauge value.
func (g *Gauge) Set(v float64) { g.v.Store(v) }

// Add adjusts the gauge value by delta.
func (g *Gauge) Add(delta float64) { g.v.Add(delta) }

func (g *Gauge) Value() float64 { return g.v.Load() }

// =============================================================================
// Average
// =============================================================================

// Average tracks the count and sum of recorded samples and reports their mean.
// Count and sum are updated together so a reader never sees one without the other.
type Average struct {
	desc
	mu    sync.Mutex
	count uint64
	sum   float64
}

// NewAverage creates a detached average.
func NewAverage(name, help string, unit Unit) *Average {
	return &Average{desc: desc{name: name, help: help, unit: unit}}
}

func (a *Average) Kind() Kind { return KindAverage }

// Record adds one sample.
func (a *Average) Record(sample float64) {
	a.mu.Lock()
	a.count++
	a.sum += sample
	a.mu.Unlock()
}

// RecordN adds n samples whose values total sum. n == 0 is a no-op.
func (a *Average) RecordN(sum float64, n uint64) {
	if n == 0 {
		return
	}
	a.mu.Lock()
	a.count += n
	a.sum += sum
	a.mu.Unlock()
}

// Snapshot returns the sample count and sum observed at one instant.
func (a *Average) Snapshot() (count uint64, sum float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count, a.sum
}

// Count returns the number of samples recorded.
func (a *Average) Count() uint64 {
	count, _ := a.Snapshot()
	return count
}

// Value returns the mean of all samples, or 0 when none were recorded.
func (a *Average) Value() float64 {
	count, sum := a.Snapshot()
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// =============================================================================
// Sum
// =============================================================================

// Sum reports the current total of a fixed set of gauges. It holds no state of its own.
type Sum struct {
	desc
	parts []*Gauge
}

// NewSum creates a detached sum over parts.
func NewSum(name, help string, parts ...*Gauge) *Sum {
	unit := UnitNone
	if len(parts) > 0 {
		unit = parts[0].Unit()
	}
	return &Sum{desc: desc{name: name, help: help, unit: unit}, parts: parts}
}

func (s *Sum) Kind() Kind { return KindSum }

func (s *Sum) Value() float64 {
	var total float64
	for _, p := range s.parts {
		total += p.Value()
	}
	return total
}
