package documentdb

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/docdbmetrics/internal/matching"
	"github.com/23skdu/docdbmetrics/internal/metrics"
)

func newTestDB(t *testing.T, lanes int) *DocumentDB {
	t.Helper()
	return New("music", lanes)
}

func TestMatching_DefaultProfileScenario(t *testing.T) {
	db := newTestDB(t, 2)

	db.Matching().Update(&matching.Stats{
		RankProfile: "default",
		Queries:     1,
		DocsMatched: 5,
		Partitions: []matching.PartitionStats{
			{DocsMatched: 5, ActiveTime: time.Second, WaitTime: 500 * time.Millisecond},
		},
	})

	m := db.Matching()
	assert.Equal(t, int64(1), m.Queries.Count())
	assert.Equal(t, int64(5), m.DocsMatched.Count())

	rp, ok := m.RankProfiles().Get("default")
	require.True(t, ok)
	assert.Equal(t, int64(1), rp.Queries.Count())
	assert.Equal(t, int64(5), rp.Partition(0).DocsMatched.Count())
	assert.Equal(t, 1.0, rp.Partition(0).ActiveTime.Value())
	assert.Equal(t, 0.5, rp.Partition(0).WaitTime.Value())

	// The second lane received no input.
	assert.Equal(t, uint64(0), rp.Partition(1).ActiveTime.Count())
	assert.Equal(t, int64(0), rp.Partition(1).DocsMatched.Count())
}

func TestMatching_TotalsAcrossUpdates(t *testing.T) {
	db := newTestDB(t, 1)
	m := db.Matching()

	for i := int64(1); i <= 4; i++ {
		m.Update(&matching.Stats{Queries: 1, DocsMatched: i, DocsRanked: 2 * i, DocsReRanked: 1})
	}

	assert.Equal(t, int64(4), m.Queries.Count())
	assert.Equal(t, int64(10), m.DocsMatched.Count())
	assert.Equal(t, int64(20), m.DocsRanked.Count())
	assert.Equal(t, int64(4), m.DocsReRanked.Count())
}

func TestMatching_ZeroQueriesCountsAsOne(t *testing.T) {
	db := newTestDB(t, 1)
	db.Matching().Update(&matching.Stats{})
	db.Matching().Update(&matching.Stats{Queries: 3})

	assert.Equal(t, int64(4), db.Matching().Queries.Count())
}

func TestMatching_EmptyProfileNameIsDefault(t *testing.T) {
	db := newTestDB(t, 1)
	db.Matching().Update(&matching.Stats{})

	assert.Equal(t, []string{DefaultRankProfile}, db.Matching().RankProfiles().Names())
}

func TestMatching_ProfileIsolation(t *testing.T) {
	db := newTestDB(t, 1)
	m := db.Matching()

	m.Update(&matching.Stats{RankProfile: "a", DocsMatched: 3})
	m.Update(&matching.Stats{RankProfile: "b", DocsMatched: 7, LimitedQueries: 1})
	m.Update(&matching.Stats{RankProfile: "a", DocsMatched: 1})

	a, _ := m.RankProfiles().Get("a")
	b, _ := m.RankProfiles().Get("b")
	assert.Equal(t, int64(2), a.Queries.Count())
	assert.Equal(t, int64(0), a.LimitedQueries.Count())
	assert.Equal(t, int64(1), b.Queries.Count())
	assert.Equal(t, int64(1), b.LimitedQueries.Count())
	assert.Equal(t, int64(11), m.DocsMatched.Count())
	assert.Equal(t, []string{"a", "b"}, m.RankProfiles().Names())
}

func TestMatching_ExcessLanesDropped(t *testing.T) {
	db := newTestDB(t, 2)
	db.Matching().Update(&matching.Stats{
		RankProfile: "wide",
		Partitions: []matching.PartitionStats{
			{DocsMatched: 1}, {DocsMatched: 2}, {DocsMatched: 100},
		},
	})

	rp, ok := db.Matching().RankProfiles().Get("wide")
	require.True(t, ok)
	require.Equal(t, 2, rp.NumPartitions())
	assert.Nil(t, rp.Partition(2))
	assert.Nil(t, rp.Partition(-1))
	assert.Equal(t, int64(1), rp.Partition(0).DocsMatched.Count())
	assert.Equal(t, int64(2), rp.Partition(1).DocsMatched.Count())

	// Global totals come from the query totals, not from the lanes.
	assert.Equal(t, int64(0), db.Matching().DocsMatched.Count())
}

func TestMatching_TimeAverages(t *testing.T) {
	db := newTestDB(t, 1)
	m := db.Matching()
	m.Update(&matching.Stats{RankProfile: "x", QueryLatency: time.Second, MatchTime: 200 * time.Millisecond})
	m.Update(&matching.Stats{RankProfile: "x", QueryLatency: 3 * time.Second, MatchTime: 400 * time.Millisecond})

	assert.InDelta(t, 2.0, m.QueryLatency.Value(), 1e-9)
	rp, _ := m.RankProfiles().Get("x")
	assert.InDelta(t, 0.3, rp.MatchTime.Value(), 1e-9)
	assert.Equal(t, uint64(2), rp.GroupingTime.Count())
}

func TestMatching_MergedSnapshots(t *testing.T) {
	db := newTestDB(t, 1)
	m := db.Matching()

	one := func() *matching.Stats {
		return &matching.Stats{
			RankProfile:    "x",
			Queries:        1,
			LimitedQueries: 1,
			QueryLatency:   time.Second,
			MatchTime:      time.Second,
			Partitions:     []matching.PartitionStats{{ActiveTime: time.Second}},
		}
	}
	merged := one()
	merged.Add(one())
	m.Update(merged)

	assert.Equal(t, int64(2), m.Queries.Count())
	assert.InDelta(t, 1.0, m.QueryLatency.Value(), 1e-9)
	assert.Equal(t, uint64(2), m.QueryLatency.Count())

	rp, ok := m.RankProfiles().Get("x")
	require.True(t, ok)
	assert.Equal(t, int64(2), rp.Queries.Count())
	assert.Equal(t, int64(2), rp.LimitedQueries.Count())
	assert.InDelta(t, 1.0, rp.MatchTime.Value(), 1e-9)
	assert.Equal(t, uint64(2), rp.MatchTime.Count())
	assert.InDelta(t, 1.0, rp.Partition(0).ActiveTime.Value(), 1e-9)

	// Same result as feeding the two queries one at a time.
	m.Update(one())
	assert.Equal(t, int64(3), rp.LimitedQueries.Count())
	assert.InDelta(t, 1.0, rp.MatchTime.Value(), 1e-9)
}

func TestRankProfileRegistry_LanesFixedAtRegistration(t *testing.T) {
	db := newTestDB(t, 4)
	reg := db.Matching().RankProfiles()

	first := reg.GetOrCreate("p", 2)
	second := reg.GetOrCreate("p", 8)
	assert.Same(t, first, second)
	assert.Equal(t, 2, second.NumPartitions())

	assert.Equal(t, 1, reg.GetOrCreate("tiny", 0).NumPartitions(), "lane count is clamped to one")
}

func TestRankProfileRegistry_ConcurrentGetOrCreate(t *testing.T) {
	db := newTestDB(t, 2)
	reg := db.Matching().RankProfiles()

	const workers = 32
	results := make([]*RankProfileAggregator, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = reg.GetOrCreate("shared", 2)
		}(i)
	}
	wg.Wait()

	for _, rp := range results {
		assert.Same(t, results[0], rp)
	}
	assert.Equal(t, 1, reg.Len())

	// Only one subtree was attached for the profile.
	n := 0
	db.Root().Walk(func(path []string, _ []metrics.Label, _ metrics.Metric) {
		if len(path) == 4 && path[2] == "rank_profile" && path[3] == "queries" {
			n++
		}
	})
	assert.Equal(t, 1, n)
}

func TestMatching_ConcurrentUpdates(t *testing.T) {
	db := newTestDB(t, 2)
	m := db.Matching()

	const workers, iterations = 8, 250
	profiles := []string{"a", "b", "c"}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				m.Update(&matching.Stats{
					RankProfile: profiles[(i+j)%len(profiles)],
					DocsMatched: 1,
					Partitions:  []matching.PartitionStats{{DocsMatched: 1}},
				})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(workers*iterations), m.Queries.Count())
	assert.Equal(t, int64(workers*iterations), m.DocsMatched.Count())

	var perProfile, perLane int64
	for _, name := range m.RankProfiles().Names() {
		rp, _ := m.RankProfiles().Get(name)
		perProfile += rp.Queries.Count()
		perLane += rp.Partition(0).DocsMatched.Count()
	}
	assert.Equal(t, int64(workers*iterations), perProfile)
	assert.Equal(t, int64(workers*iterations), perLane)
	assert.Equal(t, len(profiles), m.RankProfiles().Len())
}
