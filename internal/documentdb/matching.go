package documentdb

import (
	"github.com/rs/zerolog"

	"github.com/23skdu/docdbmetrics/internal/matching"
	"github.com/23skdu/docdbmetrics/internal/metrics"
)

// DefaultRankProfile is used for snapshots that carry no rank profile name.
const DefaultRankProfile = "default"

// MatchingAggregator holds the document type wide matching totals and the per rank profile
// subtrees.
type MatchingAggregator struct {
	lanes int

	DocsMatched         *metrics.Counter
	DocsRanked          *metrics.Counter
	DocsReRanked        *metrics.Counter
	Queries             *metrics.Counter
	QueryCollateralTime *metrics.Average
	QueryLatency        *metrics.Average

	profiles *RankProfileRegistry
}

func newMatchingAggregator(parent *metrics.Set, lanes int, logger zerolog.Logger) *MatchingAggregator {
	set := parent.Child("matching")
	return &MatchingAggregator{
		lanes:               lanes,
		DocsMatched:         set.Counter("docs_matched", "Number of documents matched"),
		DocsRanked:          set.Counter("docs_ranked", "Number of documents ranked (first phase)"),
		DocsReRanked:        set.Counter("docs_reranked", "Number of documents re-ranked (second phase)"),
		Queries:             set.Counter("queries", "Number of queries executed"),
		QueryCollateralTime: set.Average("query_collateral_time_seconds", "Average time spent setting up and tearing down queries", metrics.UnitSeconds),
		QueryLatency:        set.Average("query_latency_seconds", "Average latency when matching a query", metrics.UnitSeconds),
		profiles:            newRankProfileRegistry(set, logger),
	}
}

// RankProfiles returns the rank profile registry.
func (m *MatchingAggregator) RankProfiles() *RankProfileRegistry { return m.profiles }

// Update rolls a query snapshot into the global totals, its rank profile and that profile's
// lanes. Times in a snapshot covering several queries are weighted by the query count.
func (m *MatchingAggregator) Update(stats *matching.Stats) {
	m.DocsMatched.Add(stats.DocsMatched)
	m.DocsRanked.Add(stats.DocsRanked)
	m.DocsReRanked.Add(stats.DocsReRanked)
	queries := stats.QueryCount()
	m.Queries.Add(queries)
	m.QueryCollateralTime.RecordN(stats.QueryCollateralTime.Seconds(), uint64(queries))
	m.QueryLatency.RecordN(stats.QueryLatency.Seconds(), uint64(queries))

	name := stats.RankProfile
	if name == "" {
		name = DefaultRankProfile
	}
	m.profiles.GetOrCreate(name, m.lanes).Update(stats)
}
