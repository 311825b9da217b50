// Package sampler pulls periodic snapshots from document type subsystems into the metric tree.
package sampler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/23skdu/docdbmetrics/internal/documentdb"
)

// CacheSource reports cumulative document store cache totals.
type CacheSource interface {
	CacheStats() (documentdb.CacheStats, error)
}

// SubDBStats is everything sampled from one sub database.
type SubDBStats struct {
	LidSpace    documentdb.LidSpaceStats    `json:"lid_space"`
	MemoryBytes int64                       `json:"memory_bytes"`
	Attributes  []documentdb.AttributeStats `json:"attributes,omitempty"`
}

// SubDBSource reports the state of the sub databases.
type SubDBSource interface {
	SubDBStats(sub documentdb.SubDB) (SubDBStats, error)
}

// ExecutorSource reports executor activity since the previous call.
type ExecutorSource interface {
	ExecutorStats() (shared, index documentdb.ExecutorStats, err error)
}

// DocumentCountSource reports document counters.
type DocumentCountSource interface {
	DocumentCounts() (documentdb.DocumentCounts, error)
}

// Config configures a Sampler. Nil sources are skipped.
type Config struct {
	Interval time.Duration

	Cache     CacheSource
	SubDBs    SubDBSource
	Executors ExecutorSource
	Documents DocumentCountSource
}

// DefaultInterval is used when Config.Interval is not positive.
const DefaultInterval = 10 * time.Second

// Sampler copies subsystem snapshots into a DocumentDB at a fixed interval.
type Sampler struct {
	cfg    Config
	db     *documentdb.DocumentDB
	logger zerolog.Logger

	lastSample atomic.Time
	samples    atomic.Int64
}

// New creates a sampler feeding db.
func New(cfg Config, db *documentdb.DocumentDB, logger zerolog.Logger) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Sampler{
		cfg:    cfg,
		db:     db,
		logger: logger.With().Str("component", "sampler").Logger(),
	}
}

// Run samples once immediately and then on every tick until ctx is done. It always returns nil.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.SampleOnce()
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("Sampler stopped")
			return nil
		case <-ticker.C:
			s.SampleOnce()
		}
	}
}

// SampleOnce performs one sampling pass. A failing source is logged and skipped.
func (s *Sampler) SampleOnce() {
	if s.cfg.Cache != nil {
		stats, err := s.cfg.Cache.CacheStats()
		if err != nil {
			s.logger.Warn().Err(err).Str("source", "cache").Msg("Sample failed")
		} else {
			s.db.Docstore().UpdateFromTotals(stats)
		}
	}

	if s.cfg.SubDBs != nil {
		for _, name := range documentdb.SubDBs {
			stats, err := s.cfg.SubDBs.SubDBStats(name)
			if err != nil {
				s.logger.Warn().Err(err).Str("source", "subdb").Str("subdb", string(name)).Msg("Sample failed")
				continue
			}
			sub := s.db.SubDB(name)
			sub.SetLidSpace(stats.LidSpace)
			sub.SetMemoryUsage(stats.MemoryBytes)
			sub.Attributes.Update(stats.Attributes)
			// Only the ready sub database serves queries.
			if name == documentdb.SubDBReady {
				s.db.Attributes().Update(stats.Attributes)
			}
		}
	}

	if s.cfg.Executors != nil {
		shared, index, err := s.cfg.Executors.ExecutorStats()
		if err != nil {
			s.logger.Warn().Err(err).Str("source", "executor").Msg("Sample failed")
		} else {
			s.db.Executor().Update(shared)
			s.db.IndexExecutor().Update(index)
		}
	}

	if s.cfg.Documents != nil {
		counts, err := s.cfg.Documents.DocumentCounts()
		if err != nil {
			s.logger.Warn().Err(err).Str("source", "documents").Msg("Sample failed")
		} else {
			s.db.SetDocumentCounts(counts)
		}
	}

	s.samples.Inc()
	s.lastSample.Store(time.Now())
}

// LastSample returns when the last sampling pass finished, or the zero time before the first.
func (s *Sampler) LastSample() time.Time { return s.lastSample.Load() }

// Samples returns the number of completed sampling passes.
func (s *Sampler) Samples() int64 { return s.samples.Load() }

// Interval returns the sampling interval in effect.
func (s *Sampler) Interval() time.Duration { return s.cfg.Interval }
