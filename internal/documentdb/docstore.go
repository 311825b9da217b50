package documentdb

import (
	"sync"

	"github.com/23skdu/docdbmetrics/internal/metrics"
)

// CacheStats is a cumulative snapshot of the document store cache.
type CacheStats struct {
	Lookups     int64 `json:"lookups"`
	Hits        int64 `json:"hits"`
	Elements    int64 `json:"elements"`
	MemoryBytes int64 `json:"memory_bytes"`
}

// CacheStatsAggregator tracks the document store: its memory usage and the behaviour of its
// cache.
type CacheStatsAggregator struct {
	MemoryUsage     *metrics.Gauge
	CacheLookups    *metrics.Counter
	CacheHitRate    *metrics.Average
	CacheElements   *metrics.Gauge
	CacheMemoryUsed *metrics.Gauge

	hits metrics.Counter

	mu   sync.Mutex
	last CacheStats
}

func newCacheStatsAggregator(parent *metrics.Set) *CacheStatsAggregator {
	set := parent.Child("docstore")
	return &CacheStatsAggregator{
		MemoryUsage:     set.Gauge("memory_usage_bytes", "Memory used by the document store", metrics.UnitBytes),
		CacheLookups:    set.Counter("cache_lookups", "Number of lookups in the document store cache"),
		CacheHitRate:    set.Average("cache_hit_rate", "Rate of cache hits, only counting periods with lookups", metrics.UnitRatio),
		CacheElements:   set.Gauge("cache_elements", "Number of elements in the document store cache", metrics.UnitNone),
		CacheMemoryUsed: set.Gauge("cache_memory_used_bytes", "Memory used by the document store cache", metrics.UnitBytes),
	}
}

// Update adds the lookups and hits observed since the previous call. A period without lookups
// adds no hit rate sample.
func (c *CacheStatsAggregator) Update(lookupDelta, hitDelta int64) {
	c.CacheLookups.Add(lookupDelta)
	c.hits.Add(hitDelta)
	if lookupDelta > 0 {
		c.CacheHitRate.Record(float64(hitDelta) / float64(lookupDelta))
	}
}

// Hits returns the running hit count.
func (c *CacheStatsAggregator) Hits() int64 { return c.hits.Count() }

// SetCacheGauges records the current cache occupancy.
func (c *CacheStatsAggregator) SetCacheGauges(elements, memoryBytes int64) {
	c.CacheElements.Set(float64(elements))
	c.CacheMemoryUsed.Set(float64(memoryBytes))
}

// SetMemoryUsage records the memory used by the document store as a whole.
func (c *CacheStatsAggregator) SetMemoryUsage(bytes int64) {
	c.MemoryUsage.Set(float64(bytes))
}

// UpdateFromTotals takes cumulative totals from the cache and applies the difference to the
// previous totals. If a total goes backwards the cache was reset and the new totals become the
// baseline without contributing a sample.
func (c *CacheStatsAggregator) UpdateFromTotals(stats CacheStats) {
	c.mu.Lock()
	prev := c.last
	c.last = stats
	c.mu.Unlock()

	c.SetCacheGauges(stats.Elements, stats.MemoryBytes)

	lookups := stats.Lookups - prev.Lookups
	hits := stats.Hits - prev.Hits
	if lookups < 0 || hits < 0 {
		return
	}
	c.Update(lookups, hits)
}
