package documentdb

import (
	"time"

	"github.com/23skdu/docdbmetrics/internal/metrics"
)

// =============================================================================
// Memory index
// =============================================================================

// IndexStats is a snapshot of the memory and disk index.
type IndexStats struct {
	MemoryBytes  int64 `json:"memory_bytes"`
	DocsInMemory int64 `json:"docs_in_memory"`
	DiskBytes    int64 `json:"disk_bytes"`
}

// IndexAggregator reports the size of the index of a document type.
type IndexAggregator struct {
	MemoryUsage  *metrics.Gauge
	DocsInMemory *metrics.Gauge
	DiskUsage    *metrics.Gauge
}

func newIndexAggregator(parent *metrics.Set) *IndexAggregator {
	set := parent.Child("index")
	return &IndexAggregator{
		MemoryUsage:  set.Gauge("memory_usage_bytes", "Memory used by the memory index", metrics.UnitBytes),
		DocsInMemory: set.Gauge("docs_in_memory", "Number of documents in the memory index", metrics.UnitNone),
		DiskUsage:    set.Gauge("disk_usage_bytes", "Disk space used by the disk indexes", metrics.UnitBytes),
	}
}

// Set records the latest index snapshot.
func (i *IndexAggregator) Set(stats IndexStats) {
	i.MemoryUsage.Set(float64(stats.MemoryBytes))
	i.DocsInMemory.Set(float64(stats.DocsInMemory))
	i.DiskUsage.Set(float64(stats.DiskBytes))
}

// =============================================================================
// Executors
// =============================================================================

// ExecutorStats is what a thread pool executor reports since the previous sample.
type ExecutorStats struct {
	MaxPending int64 `json:"max_pending"`
	Accepted   int64 `json:"accepted"`
	Rejected   int64 `json:"rejected"`
}

// ExecutorAggregator reports the queue behaviour of one executor.
type ExecutorAggregator struct {
	MaxPending *metrics.Gauge
	Accepted   *metrics.Counter
	Rejected   *metrics.Counter
}

func newExecutorAggregator(parent *metrics.Set, name string) *ExecutorAggregator {
	set := parent.Child(name)
	return &ExecutorAggregator{
		MaxPending: set.Gauge("max_pending", "Maximum number of pending tasks since last sample", metrics.UnitNone),
		Accepted:   set.Counter("accepted", "Number of accepted tasks"),
		Rejected:   set.Counter("rejected", "Number of rejected tasks"),
	}
}

// Update applies one executor sample.
func (e *ExecutorAggregator) Update(stats ExecutorStats) {
	e.MaxPending.Set(float64(stats.MaxPending))
	e.Accepted.Add(stats.Accepted)
	e.Rejected.Add(stats.Rejected)
}

// =============================================================================
// Feed
// =============================================================================

// FeedAggregator counts feed operations applied to a document type and their latencies.
type FeedAggregator struct {
	Puts          *metrics.Counter
	Updates       *metrics.Counter
	Removes       *metrics.Counter
	Moves         *metrics.Counter
	PutLatency    *metrics.Average
	UpdateLatency *metrics.Average
	RemoveLatency *metrics.Average
	MoveLatency   *metrics.Average
}

func newFeedAggregator(parent *metrics.Set) *FeedAggregator {
	set := parent.Child("feed")
	return &FeedAggregator{
		Puts:          set.Counter("puts", "Number of document puts"),
		Updates:       set.Counter("updates", "Number of document updates"),
		Removes:       set.Counter("removes", "Number of document removes"),
		Moves:         set.Counter("moves", "Number of document moves between sub databases"),
		PutLatency:    set.Average("put_latency_seconds", "Latency of document puts", metrics.UnitSeconds),
		UpdateLatency: set.Average("update_latency_seconds", "Latency of document updates", metrics.UnitSeconds),
		RemoveLatency: set.Average("remove_latency_seconds", "Latency of document removes", metrics.UnitSeconds),
		MoveLatency:   set.Average("move_latency_seconds", "Latency of document moves", metrics.UnitSeconds),
	}
}

// RecordPut counts a put and records its latency.
func (f *FeedAggregator) RecordPut(latency time.Duration) {
	f.Puts.Inc()
	f.PutLatency.Record(latency.Seconds())
}

// RecordUpdate counts an update and records its latency.
func (f *FeedAggregator) RecordUpdate(latency time.Duration) {
	f.Updates.Inc()
	f.UpdateLatency.Record(latency.Seconds())
}

// RecordRemove counts a remove and records its latency.
func (f *FeedAggregator) RecordRemove(latency time.Duration) {
	f.Removes.Inc()
	f.RemoveLatency.Record(latency.Seconds())
}

// RecordMove counts a move and records its latency.
func (f *FeedAggregator) RecordMove(latency time.Duration) {
	f.Moves.Inc()
	f.MoveLatency.Record(latency.Seconds())
}

// =============================================================================
// Grouping sessions
// =============================================================================

// SessionStats is what the grouping session manager reports since the previous sample,
// except Cached which is the current number of cached sessions.
type SessionStats struct {
	Inserted int64 `json:"inserted"`
	Picked   int64 `json:"picked"`
	Dropped  int64 `json:"dropped"`
	TimedOut int64 `json:"timed_out"`
	Cached   int64 `json:"cached"`
}

// SessionManagerAggregator reports grouping session cache activity.
type SessionManagerAggregator struct {
	NumInsert   *metrics.Counter
	NumPick     *metrics.Counter
	NumDropped  *metrics.Counter
	NumTimedout *metrics.Counter
	NumCached   *metrics.Gauge
}

func newSessionManagerAggregator(parent *metrics.Set) *SessionManagerAggregator {
	set := parent.Child("session_manager")
	return &SessionManagerAggregator{
		NumInsert:   set.Counter("num_insert", "Number of inserted sessions"),
		NumPick:     set.Counter("num_pick", "Number of sessions picked from the cache"),
		NumDropped:  set.Counter("num_dropped", "Number of sessions dropped"),
		NumTimedout: set.Counter("num_timedout", "Number of sessions timed out"),
		NumCached:   set.Gauge("num_cached", "Number of currently cached sessions", metrics.UnitNone),
	}
}

// Update applies one session manager sample.
func (s *SessionManagerAggregator) Update(stats SessionStats) {
	s.NumInsert.Add(stats.Inserted)
	s.NumPick.Add(stats.Picked)
	s.NumDropped.Add(stats.Dropped)
	s.NumTimedout.Add(stats.TimedOut)
	s.NumCached.Set(float64(stats.Cached))
}
