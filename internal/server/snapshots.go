package server

import (
	"sync"

	"github.com/23skdu/docdbmetrics/internal/documentdb"
	"github.com/23skdu/docdbmetrics/internal/sampler"
)

// Snapshots holds what remote producers pushed since the last sampling pass. It implements
// every sampler source, so pushed values reach the tree at the sampler's cadence.
type Snapshots struct {
	mu        sync.Mutex
	cache     *documentdb.CacheStats
	subDBs    map[documentdb.SubDB]sampler.SubDBStats
	shared    documentdb.ExecutorStats
	index     documentdb.ExecutorStats
	documents *documentdb.DocumentCounts
}

var (
	_ sampler.CacheSource         = (*Snapshots)(nil)
	_ sampler.SubDBSource         = (*Snapshots)(nil)
	_ sampler.ExecutorSource      = (*Snapshots)(nil)
	_ sampler.DocumentCountSource = (*Snapshots)(nil)
)

// NewSnapshots creates an empty snapshot holder.
func NewSnapshots() *Snapshots {
	return &Snapshots{subDBs: make(map[documentdb.SubDB]sampler.SubDBStats)}
}

// PutCache replaces the cumulative cache totals.
func (s *Snapshots) PutCache(stats documentdb.CacheStats) {
	s.mu.Lock()
	s.cache = &stats
	s.mu.Unlock()
}

// PutSubDB replaces the snapshot of one sub database.
func (s *Snapshots) PutSubDB(name documentdb.SubDB, stats sampler.SubDBStats) {
	s.mu.Lock()
	s.subDBs[name] = stats
	s.mu.Unlock()
}

// AddExecutor accumulates executor activity until the next sampling pass. MaxPending keeps
// the largest value seen in the period.
func (s *Snapshots) AddExecutor(index bool, stats documentdb.ExecutorStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dst := &s.shared
	if index {
		dst = &s.index
	}
	if stats.MaxPending > dst.MaxPending {
		dst.MaxPending = stats.MaxPending
	}
	dst.Accepted += stats.Accepted
	dst.Rejected += stats.Rejected
}

// PutDocuments replaces the document counters.
func (s *Snapshots) PutDocuments(counts documentdb.DocumentCounts) {
	s.mu.Lock()
	s.documents = &counts
	s.mu.Unlock()
}

// CacheStats implements sampler.CacheSource. Before anything was pushed it reports zero
// totals, which leaves the tree unchanged.
func (s *Snapshots) CacheStats() (documentdb.CacheStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache == nil {
		return documentdb.CacheStats{}, nil
	}
	return *s.cache, nil
}

// SubDBStats implements sampler.SubDBSource.
func (s *Snapshots) SubDBStats(name documentdb.SubDB) (sampler.SubDBStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subDBs[name], nil
}

// ExecutorStats implements sampler.ExecutorSource and starts a new period.
func (s *Snapshots) ExecutorStats() (shared, index documentdb.ExecutorStats, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shared, index = s.shared, s.index
	s.shared, s.index = documentdb.ExecutorStats{}, documentdb.ExecutorStats{}
	return shared, index, nil
}

// DocumentCounts implements sampler.DocumentCountSource.
func (s *Snapshots) DocumentCounts() (documentdb.DocumentCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.documents == nil {
		return documentdb.DocumentCounts{}, nil
	}
	return *s.documents, nil
}
