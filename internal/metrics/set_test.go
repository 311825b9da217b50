package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type visited struct {
	path   string
	labels []Label
	value  float64
}

func collect(s *Set) []visited {
	var out []visited
	s.Walk(func(path []string, labels []Label, m Metric) {
		l := make([]Label, len(labels))
		copy(l, labels)
		out = append(out, visited{path: strings.Join(path, "."), labels: l, value: m.Value()})
	})
	return out
}

func TestSet_WalkPathsAndLabels(t *testing.T) {
	root := NewSet("documentdb", Label{"documenttype", "music"})
	root.Gauge("num_docs", "", UnitNone).Set(7)

	matching := root.Child("matching")
	matching.Counter("queries", "").Add(3)

	profile := NewSet("rank_profile", Label{"rank_profile", "default"})
	profile.Counter("queries", "").Inc()
	matching.Attach(profile)

	got := collect(root)
	require.Len(t, got, 3)

	assert.Equal(t, "documentdb.num_docs", got[0].path)
	assert.Equal(t, []Label{{"documenttype", "music"}}, got[0].labels)
	assert.Equal(t, 7.0, got[0].value)

	assert.Equal(t, "documentdb.matching.queries", got[1].path)
	assert.Equal(t, 3.0, got[1].value)

	assert.Equal(t, "documentdb.matching.rank_profile.queries", got[2].path)
	assert.Equal(t, []Label{{"documenttype", "music"}, {"rank_profile", "default"}}, got[2].labels)
	assert.Equal(t, 1.0, got[2].value)
}

func TestSet_SiblingLabelsDoNotLeak(t *testing.T) {
	root := NewSet("root")
	for _, name := range []string{"a", "b"} {
		child := root.Child("profile", Label{"name", name})
		child.Counter("queries", "")
	}
	root.Counter("after", "")

	got := collect(root)
	require.Len(t, got, 3)
	assert.Equal(t, []Label{{"name", "a"}}, got[0].labels)
	assert.Equal(t, []Label{{"name", "b"}}, got[1].labels)
	assert.Empty(t, got[2].labels)
	assert.Equal(t, "root.after", got[2].path)
}

func TestSet_DuplicatesPanic(t *testing.T) {
	s := NewSet("root")
	s.Counter("queries", "")
	assert.Panics(t, func() { s.Counter("queries", "") })

	s.Child("profile", Label{"name", "a"})
	assert.Panics(t, func() { s.Child("profile", Label{"name", "a"}) })
	assert.NotPanics(t, func() { s.Child("profile", Label{"name", "b"}) })
}

func TestSet_Find(t *testing.T) {
	root := NewSet("documentdb")
	docstore := root.Child("docstore")
	hitRate := docstore.Average("cache_hit_rate", "", UnitRatio)

	m, ok := root.Find("docstore.cache_hit_rate")
	require.True(t, ok)
	assert.Same(t, hitRate, m)

	_, ok = root.Find("docstore.missing")
	assert.False(t, ok)
	_, ok = root.Find("docstore")
	assert.False(t, ok, "sets are not leaves")
	_, ok = root.Find("nothing.cache_hit_rate")
	assert.False(t, ok)
}

func TestSet_Len(t *testing.T) {
	root := NewSet("root")
	assert.Equal(t, 0, root.Len())

	root.Counter("a", "")
	root.Child("child").Gauge("b", "", UnitNone)
	assert.Equal(t, 2, root.Len())
}

func TestSet_ConcurrentAttachAndWalk(t *testing.T) {
	root := NewSet("root")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			child := NewSet("profile", Label{"id", strings.Repeat("x", i+1)})
			child.Counter("queries", "").Inc()
			root.Attach(child)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			root.Walk(func(_ []string, _ []Label, m Metric) {
				// Attached subtrees are complete before they become visible.
				assert.Equal(t, 1.0, m.Value())
			})
		}
	}()
	wg.Wait()

	assert.Equal(t, 200, root.Len())
}

func TestSortLabels(t *testing.T) {
	in := []Label{{"subdb", "ready"}, {"documenttype", "music"}}
	out := SortLabels(in)
	assert.Equal(t, []Label{{"documenttype", "music"}, {"subdb", "ready"}}, out)
	assert.Equal(t, "subdb", in[0].Key, "input is not modified")
}
