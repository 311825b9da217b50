package documentdb

import (
	"github.com/23skdu/docdbmetrics/internal/metrics"
)

// SubDB names one of the logical document partitions of a document type.
type SubDB string

const (
	SubDBReady    SubDB = "ready"
	SubDBNotReady SubDB = "notready"
	SubDBRemoved  SubDB = "removed"
)

// SubDBs lists the sub databases in a fixed order.
var SubDBs = []SubDB{SubDBReady, SubDBNotReady, SubDBRemoved}

// ParseSubDB returns the sub database named s.
func ParseSubDB(s string) (SubDB, bool) {
	for _, name := range SubDBs {
		if string(name) == s {
			return name, true
		}
	}
	return "", false
}

// LidSpaceStats is a snapshot of the local document id allocator of a sub database.
type LidSpaceStats struct {
	LidLimit       int64 `json:"lid_limit"`
	UsedLids       int64 `json:"used_lids"`
	LowestFreeLid  int64 `json:"lowest_free_lid"`
	HighestUsedLid int64 `json:"highest_used_lid"`
}

// BloatFactor is the share of the lid space that is allocated but unused.
func (s LidSpaceStats) BloatFactor() float64 {
	if s.LidLimit <= 0 {
		return 0
	}
	return float64(s.LidLimit-s.UsedLids) / float64(s.LidLimit)
}

// FragmentationFactor is the share of free lids below the highest used lid.
func (s LidSpaceStats) FragmentationFactor() float64 {
	if s.HighestUsedLid <= 0 {
		return 0
	}
	return float64(s.HighestUsedLid-s.UsedLids) / float64(s.HighestUsedLid)
}

// DocumentMetaStoreAggregator reports the lid space of a sub database.
type DocumentMetaStoreAggregator struct {
	LidLimit               *metrics.Gauge
	UsedLids               *metrics.Gauge
	LowestFreeLid          *metrics.Gauge
	HighestUsedLid         *metrics.Gauge
	LidBloatFactor         *metrics.Gauge
	LidFragmentationFactor *metrics.Gauge
}

func newDocumentMetaStoreAggregator(parent *metrics.Set) *DocumentMetaStoreAggregator {
	set := parent.Child("document_meta_store")
	return &DocumentMetaStoreAggregator{
		LidLimit:               set.Gauge("lid_limit", "The size of the allocated lid space", metrics.UnitNone),
		UsedLids:               set.Gauge("used_lids", "The number of lids used", metrics.UnitNone),
		LowestFreeLid:          set.Gauge("lowest_free_lid", "The lowest free lid", metrics.UnitNone),
		HighestUsedLid:         set.Gauge("highest_used_lid", "The highest used lid", metrics.UnitNone),
		LidBloatFactor:         set.Gauge("lid_bloat_factor", "The bloat factor of this lid space, indicating the total amount of holes in the allocated lid space ((lid_limit - used_lids) / lid_limit)", metrics.UnitRatio),
		LidFragmentationFactor: set.Gauge("lid_fragmentation_factor", "The fragmentation factor of this lid space, indicating the amount of holes in the currently used part of the lid space ((highest_used_lid - used_lids) / highest_used_lid)", metrics.UnitRatio),
	}
}

// Set records a lid space snapshot and recomputes both ratios.
func (d *DocumentMetaStoreAggregator) Set(stats LidSpaceStats) {
	d.LidLimit.Set(float64(stats.LidLimit))
	d.UsedLids.Set(float64(stats.UsedLids))
	d.LowestFreeLid.Set(float64(stats.LowestFreeLid))
	d.HighestUsedLid.Set(float64(stats.HighestUsedLid))
	d.LidBloatFactor.Set(stats.BloatFactor())
	d.LidFragmentationFactor.Set(stats.FragmentationFactor())
}

// SubDatabaseAggregator bundles the metrics of one sub database.
type SubDatabaseAggregator struct {
	name SubDB

	Attributes   *AttributeAggregator
	DocMetaStore *DocumentMetaStoreAggregator
	MemoryUsage  *metrics.Gauge
}

func newSubDatabaseAggregator(parent *metrics.Set, name SubDB) *SubDatabaseAggregator {
	set := parent.Child("subdb", metrics.Label{Key: "subdb", Value: string(name)})
	return &SubDatabaseAggregator{
		name:         name,
		Attributes:   newAttributeAggregator(set),
		DocMetaStore: newDocumentMetaStoreAggregator(set),
		MemoryUsage:  set.Gauge("memory_usage_bytes", "Memory used by the sub database", metrics.UnitBytes),
	}
}

// Name returns which sub database this is.
func (s *SubDatabaseAggregator) Name() SubDB { return s.name }

// SetLidSpace records a lid space snapshot.
func (s *SubDatabaseAggregator) SetLidSpace(stats LidSpaceStats) {
	s.DocMetaStore.Set(stats)
}

// SetMemoryUsage records the memory used by the sub database.
func (s *SubDatabaseAggregator) SetMemoryUsage(bytes int64) {
	s.MemoryUsage.Set(float64(bytes))
}
