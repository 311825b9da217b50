package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes a metric tree to a Prometheus registry. The tree grows at runtime, so the
// collector is unchecked: Describe sends nothing and every Collect walks the current tree.
type Collector struct {
	namespace string
	root      *Set

	descs sync.Map // series key -> *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector over root. namespace may be empty.
func NewCollector(namespace string, root *Set) *Collector {
	return &Collector{namespace: namespace, root: root}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.root.Walk(func(path []string, labels []Label, m Metric) {
		ch <- c.constMetric(path, labels, m)
	})
}

// FQName returns the Prometheus name used for a leaf at path.
func FQName(namespace string, path []string, kind Kind) string {
	name := strings.Join(path, "_")
	if kind == KindCounter {
		name += "_total"
	}
	if namespace != "" {
		name = namespace + "_" + name
	}
	return name
}

func (c *Collector) desc(path []string, labels []Label, m Metric) *prometheus.Desc {
	fq := FQName(c.namespace, path, m.Kind())

	var key strings.Builder
	key.WriteString(fq)
	constLabels := make(prometheus.Labels, len(labels))
	for _, l := range labels {
		key.WriteByte(0)
		key.WriteString(l.Key)
		key.WriteByte('=')
		key.WriteString(l.Value)
		constLabels[l.Key] = l.Value
	}

	if d, ok := c.descs.Load(key.String()); ok {
		return d.(*prometheus.Desc)
	}
	d, _ := c.descs.LoadOrStore(key.String(), prometheus.NewDesc(fq, m.Help(), nil, constLabels))
	return d.(*prometheus.Desc)
}

func (c *Collector) constMetric(path []string, labels []Label, m Metric) prometheus.Metric {
	d := c.desc(path, labels, m)

	var (
		pm  prometheus.Metric
		err error
	)
	switch v := m.(type) {
	case *Average:
		count, sum := v.Snapshot()
		pm, err = prometheus.NewConstSummary(d, count, sum, nil)
	default:
		valueType := prometheus.GaugeValue
		if m.Kind() == KindCounter {
			valueType = prometheus.CounterValue
		}
		pm, err = prometheus.NewConstMetric(d, valueType, m.Value())
	}
	if err != nil {
		return prometheus.NewInvalidMetric(d, err)
	}
	return pm
}
