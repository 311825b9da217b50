package documentdb

import (
	"sync"

	"github.com/23skdu/docdbmetrics/internal/metrics"
)

// AttributeStats is a snapshot of one attribute vector.
type AttributeStats struct {
	Name        string `json:"name"`
	MemoryBytes int64  `json:"memory_bytes"`
	BitVectors  int64  `json:"bit_vectors"`
}

type attributeEntry struct {
	memoryUsage *metrics.Gauge
	bitVectors  *metrics.Gauge
}

// AttributeAggregator reports attribute memory both in total and per attribute. Per
// attribute subtrees are created the first time an attribute name is reported.
type AttributeAggregator struct {
	set *metrics.Set

	MemoryUsage *metrics.Gauge
	BitVectors  *metrics.Gauge

	mu   sync.Mutex
	list map[string]*attributeEntry
}

func newAttributeAggregator(parent *metrics.Set) *AttributeAggregator {
	set := parent.Child("attributes")
	return &AttributeAggregator{
		set:         set,
		MemoryUsage: set.Gauge("memory_usage_bytes", "Memory used by all attribute vectors", metrics.UnitBytes),
		BitVectors:  set.Gauge("bit_vectors", "Number of bit vectors across all attribute vectors", metrics.UnitNone),
		list:        make(map[string]*attributeEntry),
	}
}

// entry returns the subtree for name, creating it on first use. Callers hold a.mu.
func (a *AttributeAggregator) entry(name string) *attributeEntry {
	if e, ok := a.list[name]; ok {
		return e
	}
	set := metrics.NewSet("attribute", metrics.Label{Key: "attribute", Value: name})
	e := &attributeEntry{
		memoryUsage: set.Gauge("memory_usage_bytes", "Memory used by the attribute vector", metrics.UnitBytes),
		bitVectors:  set.Gauge("bit_vectors", "Number of bit vectors in the attribute vector", metrics.UnitNone),
	}
	a.set.Attach(set)
	a.list[name] = e
	return e
}

// Update records a snapshot of every attribute. Attributes missing from the snapshot are
// reported as zero, so the totals always equal the sum of the per attribute gauges.
func (a *AttributeAggregator) Update(stats []AttributeStats) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[string]struct{}, len(stats))
	var memory, bitVectors int64
	for _, s := range stats {
		e := a.entry(s.Name)
		e.memoryUsage.Set(float64(s.MemoryBytes))
		e.bitVectors.Set(float64(s.BitVectors))
		seen[s.Name] = struct{}{}
		memory += s.MemoryBytes
		bitVectors += s.BitVectors
	}
	for name, e := range a.list {
		if _, ok := seen[name]; ok {
			continue
		}
		e.memoryUsage.Set(0)
		e.bitVectors.Set(0)
	}
	a.MemoryUsage.Set(float64(memory))
	a.BitVectors.Set(float64(bitVectors))
}

// Len returns the number of attributes that have been reported.
func (a *AttributeAggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.list)
}
