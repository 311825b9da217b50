// Package matching holds the per-query statistics produced by the matching engine.
package matching

import "time"

// PartitionStats describes the work done by one execution lane of a query.
type PartitionStats struct {
	DocsMatched  int64         `json:"docs_matched"`
	DocsRanked   int64         `json:"docs_ranked"`
	DocsReRanked int64         `json:"docs_reranked"`
	ActiveTime   time.Duration `json:"active_time"`
	WaitTime     time.Duration `json:"wait_time"`
}

// Stats is the snapshot produced once per completed query. Partitions is indexed by lane id.
type Stats struct {
	RankProfile string `json:"rank_profile"`

	Queries        int64 `json:"queries"`
	LimitedQueries int64 `json:"limited_queries"`
	DocsMatched    int64 `json:"docs_matched"`
	DocsRanked     int64 `json:"docs_ranked"`
	DocsReRanked   int64 `json:"docs_reranked"`

	QueryCollateralTime time.Duration `json:"query_collateral_time"`
	QueryLatency        time.Duration `json:"query_latency"`
	MatchTime           time.Duration `json:"match_time"`
	GroupingTime        time.Duration `json:"grouping_time"`
	RerankTime          time.Duration `json:"rerank_time"`

	Partitions []PartitionStats `json:"partitions,omitempty"`
}

// QueryCount returns the number of queries this snapshot covers. A zero value means the
// producer left it unset, which is one query.
func (s *Stats) QueryCount() int64 {
	if s.Queries <= 0 {
		return 1
	}
	return s.Queries
}

// WasLimited reports whether the query was truncated by a match limit.
func (s *Stats) WasLimited() bool {
	return s.LimitedQueries > 0
}

// Add merges other into s. Partition entries are merged lane by lane and the lane slice grows
// to the longer of the two.
func (s *Stats) Add(other *Stats) {
	s.Queries = s.QueryCount() + other.QueryCount()
	s.LimitedQueries += other.LimitedQueries
	s.DocsMatched += other.DocsMatched
	s.DocsRanked += other.DocsRanked
	s.DocsReRanked += other.DocsReRanked
	s.QueryCollateralTime += other.QueryCollateralTime
	s.QueryLatency += other.QueryLatency
	s.MatchTime += other.MatchTime
	s.GroupingTime += other.GroupingTime
	s.RerankTime += other.RerankTime

	for i, p := range other.Partitions {
		if i >= len(s.Partitions) {
			s.Partitions = append(s.Partitions, p)
			continue
		}
		s.Partitions[i].Add(p)
	}
}

// Add merges other into p.
func (p *PartitionStats) Add(other PartitionStats) {
	p.DocsMatched += other.DocsMatched
	p.DocsRanked += other.DocsRanked
	p.DocsReRanked += other.DocsReRanked
	p.ActiveTime += other.ActiveTime
	p.WaitTime += other.WaitTime
}
