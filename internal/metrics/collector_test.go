package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, c prometheus.Collector) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func labelMap(m *dto.Metric) map[string]string {
	out := make(map[string]string)
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

func TestFQName(t *testing.T) {
	assert.Equal(t, "proton_documentdb_matching_queries_total",
		FQName("proton", []string{"documentdb", "matching", "queries"}, KindCounter))
	assert.Equal(t, "documentdb_num_docs",
		FQName("", []string{"documentdb", "num_docs"}, KindGauge))
}

func TestCollector_Families(t *testing.T) {
	root := NewSet("documentdb", Label{"documenttype", "music"})
	root.Gauge("num_docs", "Number of documents", UnitNone).Set(12)
	matching := root.Child("matching")
	matching.Counter("queries", "Number of queries").Add(3)
	latency := matching.Average("query_latency_seconds", "Query latency", UnitSeconds)
	latency.Record(0.5)
	latency.Record(1.5)
	a := NewGauge("a", "", UnitBytes)
	b := NewGauge("b", "", UnitBytes)
	a.Set(1)
	b.Set(2)
	root.Sum("memory_usage_bytes", "Total memory", a, b)

	families := gather(t, NewCollector("proton", root))

	queries := families["proton_documentdb_matching_queries_total"]
	require.NotNil(t, queries)
	assert.Equal(t, dto.MetricType_COUNTER, queries.GetType())
	require.Len(t, queries.GetMetric(), 1)
	assert.Equal(t, 3.0, queries.GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, map[string]string{"documenttype": "music"}, labelMap(queries.GetMetric()[0]))

	docs := families["proton_documentdb_num_docs"]
	require.NotNil(t, docs)
	assert.Equal(t, dto.MetricType_GAUGE, docs.GetType())
	assert.Equal(t, 12.0, docs.GetMetric()[0].GetGauge().GetValue())

	lat := families["proton_documentdb_matching_query_latency_seconds"]
	require.NotNil(t, lat)
	assert.Equal(t, dto.MetricType_SUMMARY, lat.GetType())
	assert.Equal(t, uint64(2), lat.GetMetric()[0].GetSummary().GetSampleCount())
	assert.Equal(t, 2.0, lat.GetMetric()[0].GetSummary().GetSampleSum())

	mem := families["proton_documentdb_memory_usage_bytes"]
	require.NotNil(t, mem)
	assert.Equal(t, 3.0, mem.GetMetric()[0].GetGauge().GetValue())
}

func TestCollector_LabelledFamilies(t *testing.T) {
	root := NewSet("documentdb", Label{"documenttype", "music"})
	matching := root.Child("matching")
	for _, name := range []string{"default", "fast"} {
		p := NewSet("rank_profile", Label{"rank_profile", name})
		p.Counter("queries", "Queries for the rank profile").Inc()
		matching.Attach(p)
	}

	families := gather(t, NewCollector("", root))
	f := families["documentdb_matching_rank_profile_queries_total"]
	require.NotNil(t, f)
	require.Len(t, f.GetMetric(), 2)

	profiles := make(map[string]bool)
	for _, m := range f.GetMetric() {
		labels := labelMap(m)
		assert.Equal(t, "music", labels["documenttype"])
		profiles[labels["rank_profile"]] = true
	}
	assert.Equal(t, map[string]bool{"default": true, "fast": true}, profiles)
}

func TestCollector_SeesNewChildren(t *testing.T) {
	root := NewSet("root")
	c := NewCollector("", root)
	assert.Empty(t, gather(t, c))

	root.Counter("late", "").Inc()
	f := gather(t, c)
	require.Contains(t, f, "root_late_total")
}
