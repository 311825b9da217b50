package metrics

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
)

// WriteText writes a human readable dump of every leaf below root, one per line:
//
//	documentdb.matching.queries{documenttype=music}  counter  1,024
func WriteText(w io.Writer, root *Set) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	root.Walk(func(path []string, labels []Label, m Metric) {
		fmt.Fprintf(tw, "%s%s\t%s\t%s\n", strings.Join(path, "."), formatLabels(labels), m.Kind(), FormatValue(m))
	})
	return tw.Flush()
}

func formatLabels(labels []Label) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, l := range SortLabels(labels) {
		parts = append(parts, l.Key+"="+l.Value)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// FormatValue renders the current value of m according to its unit.
func FormatValue(m Metric) string {
	v := m.Value()
	switch m.Unit() {
	case UnitBytes:
		if v < 0 {
			return "-" + humanize.IBytes(uint64(-v))
		}
		return humanize.IBytes(uint64(v))
	case UnitSeconds:
		return time.Duration(v * float64(time.Second)).String()
	case UnitRatio:
		return fmt.Sprintf("%.3f", v)
	}
	if m.Kind() == KindCounter {
		return humanize.Comma(int64(v))
	}
	return humanize.Ftoa(v)
}
