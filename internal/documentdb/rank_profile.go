package documentdb

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/23skdu/docdbmetrics/internal/matching"
	"github.com/23skdu/docdbmetrics/internal/metrics"
)

// RankProfileAggregator holds the totals for one rank profile and a fixed set of lane
// aggregators sized when the profile was first seen.
type RankProfileAggregator struct {
	name string
	set  *metrics.Set

	Queries        *metrics.Counter
	LimitedQueries *metrics.Counter
	MatchTime      *metrics.Average
	GroupingTime   *metrics.Average
	RerankTime     *metrics.Average

	partitions []*PartitionAggregator
}

func newRankProfileAggregator(name string, lanes int) *RankProfileAggregator {
	if lanes < 1 {
		lanes = 1
	}
	set := metrics.NewSet("rank_profile", metrics.Label{Key: "rank_profile", Value: name})
	rp := &RankProfileAggregator{
		name:           name,
		set:            set,
		Queries:        set.Counter("queries", "Number of queries executed"),
		LimitedQueries: set.Counter("limited_queries", "Number of queries limited in match phase"),
		MatchTime:      set.Average("match_time_seconds", "Average time spent matching and first phase ranking", metrics.UnitSeconds),
		GroupingTime:   set.Average("grouping_time_seconds", "Average time spent on grouping", metrics.UnitSeconds),
		RerankTime:     set.Average("rerank_time_seconds", "Average time spent on second phase ranking", metrics.UnitSeconds),
		partitions:     make([]*PartitionAggregator, lanes),
	}
	for i := range rp.partitions {
		rp.partitions[i] = newPartitionAggregator(i)
		set.Attach(rp.partitions[i].set)
	}
	return rp
}

// Name returns the rank profile name.
func (rp *RankProfileAggregator) Name() string { return rp.name }

// NumPartitions returns the lane count fixed at registration.
func (rp *RankProfileAggregator) NumPartitions() int { return len(rp.partitions) }

// Partition returns lane i, or nil if i is out of range.
func (rp *RankProfileAggregator) Partition(i int) *PartitionAggregator {
	if i < 0 || i >= len(rp.partitions) {
		return nil
	}
	return rp.partitions[i]
}

// Update rolls a query snapshot into the profile and its lanes. A snapshot may cover several
// queries, in which case its times are totals and are averaged per query. Input lanes beyond
// the configured count are dropped and configured lanes without input are left untouched.
func (rp *RankProfileAggregator) Update(stats *matching.Stats) {
	queries := stats.QueryCount()
	rp.Queries.Add(queries)
	rp.LimitedQueries.Add(stats.LimitedQueries)

	weight := uint64(queries)
	rp.MatchTime.RecordN(stats.MatchTime.Seconds(), weight)
	rp.GroupingTime.RecordN(stats.GroupingTime.Seconds(), weight)
	rp.RerankTime.RecordN(stats.RerankTime.Seconds(), weight)

	n := len(stats.Partitions)
	if n > len(rp.partitions) {
		n = len(rp.partitions)
	}
	for i := 0; i < n; i++ {
		rp.partitions[i].Update(stats.Partitions[i], weight)
	}
}

// RankProfileRegistry maps rank profile names to their aggregators. Entries are created on
// first use and never removed.
type RankProfileRegistry struct {
	parent *metrics.Set
	logger zerolog.Logger

	mu       sync.RWMutex
	profiles map[string]*RankProfileAggregator
}

func newRankProfileRegistry(parent *metrics.Set, logger zerolog.Logger) *RankProfileRegistry {
	return &RankProfileRegistry{
		parent:   parent,
		logger:   logger,
		profiles: make(map[string]*RankProfileAggregator),
	}
}

// GetOrCreate returns the aggregator registered under name, creating it with the given lane
// count if it does not exist yet. lanes is ignored once the profile exists. Concurrent callers
// racing on an unseen name all receive the same instance.
func (r *RankProfileRegistry) GetOrCreate(name string, lanes int) *RankProfileAggregator {
	r.mu.RLock()
	rp, ok := r.profiles[name]
	r.mu.RUnlock()
	if ok {
		return rp
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rp, ok := r.profiles[name]; ok {
		return rp
	}

	// Fully built before it becomes visible to exporters.
	rp = newRankProfileAggregator(name, lanes)
	r.parent.Attach(rp.set)
	r.profiles[name] = rp

	r.logger.Info().
		Str("rank_profile", name).
		Int("partitions", rp.NumPartitions()).
		Msg("Registered rank profile metrics")
	return rp
}

// Get returns the aggregator for name if it has been registered.
func (r *RankProfileRegistry) Get(name string) (*RankProfileAggregator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rp, ok := r.profiles[name]
	return rp, ok
}

// Len returns the number of registered profiles.
func (r *RankProfileRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// Names returns the registered profile names in sorted order.
func (r *RankProfileRegistry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
