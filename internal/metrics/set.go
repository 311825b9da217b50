package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Label is a constant key/value pair attached to a Set and inherited by everything below it.
type Label struct {
	Key   string
	Value string
}

// Visitor is called once per leaf during Walk. path holds the names of every set from the
// root down, followed by the leaf name. labels holds the merged labels of those sets.
// Both slices are only valid for the duration of the call.
type Visitor func(path []string, labels []Label, m Metric)

type entry struct {
	metric Metric
	set    *Set
}

func (e entry) key() string {
	if e.metric != nil {
		return "m:" + e.metric.Name()
	}
	return "s:" + e.set.key()
}

// Set is an interior node of the metric tree. Children may be added at any time, including
// while another goroutine is walking the tree.
type Set struct {
	name   string
	labels []Label

	mu       sync.RWMutex
	children []entry
	index    map[string]struct{}
}

// NewSet creates a detached set. Attach it to a parent with Set.Attach once populated.
func NewSet(name string, labels ...Label) *Set {
	return &Set{
		name:   name,
		labels: labels,
		index:  make(map[string]struct{}),
	}
}

// Name returns the set name.
func (s *Set) Name() string { return s.name }

// Labels returns the labels defined on this set, not including inherited ones.
func (s *Set) Labels() []Label { return s.labels }

func (s *Set) key() string {
	var b strings.Builder
	b.WriteString(s.name)
	for _, l := range s.labels {
		b.WriteByte(',')
		b.WriteString(l.Key)
		b.WriteByte('=')
		b.WriteString(l.Value)
	}
	return b.String()
}

func (s *Set) add(e entry) {
	k := e.key()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.index[k]; dup {
		panic(fmt.Sprintf("metrics: duplicate child %q in set %q", k, s.name))
	}
	s.index[k] = struct{}{}
	s.children = append(s.children, e)
}

// Register adds an existing metric to the set. It panics if a metric with the same name is
// already registered here.
func (s *Set) Register(m Metric) {
	s.add(entry{metric: m})
}

// Attach adds child below s. It panics if a set with the same name and labels is already
// attached.
func (s *Set) Attach(child *Set) {
	s.add(entry{set: child})
}

// Child creates a new set and attaches it below s.
func (s *Set) Child(name string, labels ...Label) *Set {
	child := NewSet(name, labels...)
	s.Attach(child)
	return child
}

// Counter creates and registers a counter.
func (s *Set) Counter(name, help string) *Counter {
	c := NewCounter(name, help)
	s.Register(c)
	return c
}

// Gauge creates and registers a gauge.
func (s *Set) Gauge(name, help string, unit Unit) *Gauge {
	g := NewGauge(name, help, unit)
	s.Register(g)
	return g
}

// Average creates and registers an average.
func (s *Set) Average(name, help string, unit Unit) *Average {
	a := NewAverage(name, help, unit)
	s.Register(a)
	return a
}

// Sum creates and registers a sum over parts.
func (s *Set) Sum(name, help string, parts ...*Gauge) *Sum {
	sum := NewSum(name, help, parts...)
	s.Register(sum)
	return sum
}

func (s *Set) snapshot() []entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entry, len(s.children))
	copy(out, s.children)
	return out
}

// Walk visits every leaf below s in registration order.
func (s *Set) Walk(fn Visitor) {
	s.walk(nil, nil, fn)
}

func (s *Set) walk(path []string, labels []Label, fn Visitor) {
	path = append(path, s.name)
	labels = append(labels, s.labels...)
	for _, e := range s.snapshot() {
		if e.set != nil {
			e.set.walk(path, labels, fn)
			continue
		}
		fn(append(path, e.metric.Name()), labels, e.metric)
	}
}

// Find returns the leaf at the dotted path relative to s, ignoring labels. The first match in
// registration order wins, so it is mainly useful for sets with unique child names.
func (s *Set) Find(path string) (Metric, bool) {
	parts := strings.Split(path, ".")
	cur := s
	for i, part := range parts {
		last := i == len(parts)-1
		var next *Set
		for _, e := range cur.snapshot() {
			if last && e.metric != nil && e.metric.Name() == part {
				return e.metric, true
			}
			if !last && e.set != nil && e.set.name == part {
				next = e.set
				break
			}
		}
		if next == nil {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// Len returns the number of leaves below s.
func (s *Set) Len() int {
	n := 0
	s.Walk(func([]string, []Label, Metric) { n++ })
	return n
}

// SortLabels returns a copy of labels ordered by key.
func SortLabels(labels []Label) []Label {
	out := make([]Label, len(labels))
	copy(out, labels)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
