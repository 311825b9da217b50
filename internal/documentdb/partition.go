package documentdb

import (
	"strconv"

	"github.com/23skdu/docdbmetrics/internal/matching"
	"github.com/23skdu/docdbmetrics/internal/metrics"
)

// PartitionAggregator accumulates the work of one execution lane of a rank profile across
// queries.
type PartitionAggregator struct {
	set *metrics.Set

	DocsMatched  *metrics.Counter
	DocsRanked   *metrics.Counter
	DocsReRanked *metrics.Counter
	ActiveTime   *metrics.Average
	WaitTime     *metrics.Average
}

func newPartitionAggregator(index int) *PartitionAggregator {
	set := metrics.NewSet("docid_partition", metrics.Label{Key: "docid_partition", Value: strconv.Itoa(index)})
	return &PartitionAggregator{
		set:          set,
		DocsMatched:  set.Counter("docs_matched", "Number of documents matched by this lane"),
		DocsRanked:   set.Counter("docs_ranked", "Number of documents ranked by this lane"),
		DocsReRanked: set.Counter("docs_reranked", "Number of documents re-ranked by this lane"),
		ActiveTime:   set.Average("active_time_seconds", "Time spent doing actual work", metrics.UnitSeconds),
		WaitTime:     set.Average("wait_time_seconds", "Time spent waiting for other lanes", metrics.UnitSeconds),
	}
}

// Update adds the lane statistics of a snapshot covering queries queries. Lane times are
// totals over those queries and are averaged per query.
func (p *PartitionAggregator) Update(stats matching.PartitionStats, queries uint64) {
	p.DocsMatched.Add(stats.DocsMatched)
	p.DocsRanked.Add(stats.DocsRanked)
	p.DocsReRanked.Add(stats.DocsReRanked)
	p.ActiveTime.RecordN(stats.ActiveTime.Seconds(), queries)
	p.WaitTime.RecordN(stats.WaitTime.Seconds(), queries)
}
