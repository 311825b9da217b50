// Package documentdb aggregates the runtime statistics of one document type into a metric tree.
//
// A DocumentDB is built once per document type and handed to every producer: the matching
// engine calls Matching().Update once per completed query, while the document store, lid
// space allocators and executors report their snapshots at their own cadence. Exporters walk
// Root() or register Collector() with Prometheus.
package documentdb

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/23skdu/docdbmetrics/internal/metrics"
)

// Option configures a DocumentDB.
type Option func(*options)

type options struct {
	logger zerolog.Logger
}

// WithLogger sets the logger used to report lifecycle events such as new rank profiles.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// DocumentCounts is a snapshot of the document counters of a document type.
type DocumentCounts struct {
	Docs        int64 `json:"docs"`
	ActiveDocs  int64 `json:"active_docs"`
	IndexedDocs int64 `json:"indexed_docs"`
	StoredDocs  int64 `json:"stored_docs"`
	RemovedDocs int64 `json:"removed_docs"`
}

// DocumentDB is the root aggregator for one document type.
type DocumentDB struct {
	docType    string
	maxThreads int
	root       *metrics.Set

	index          *IndexAggregator
	attributes     *AttributeAggregator
	docstore       *CacheStatsAggregator
	matching       *MatchingAggregator
	executor       *ExecutorAggregator
	indexExecutor  *ExecutorAggregator
	feed           *FeedAggregator
	sessionManager *SessionManagerAggregator
	subDBs         map[SubDB]*SubDatabaseAggregator

	MemoryUsage    *metrics.Sum
	NumDocs        *metrics.Gauge
	NumActiveDocs  *metrics.Gauge
	NumIndexedDocs *metrics.Gauge
	NumStoredDocs  *metrics.Gauge
	NumRemovedDocs *metrics.Gauge
	NumBadConfigs  *metrics.Gauge
}

// New builds the metric tree for docType. maxThreads is the number of lanes each rank profile
// is created with and is clamped to at least one.
func New(docType string, maxThreads int, opts ...Option) *DocumentDB {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if maxThreads < 1 {
		maxThreads = 1
	}
	logger := o.logger.With().Str("component", "documentdb").Str("documenttype", docType).Logger()

	root := metrics.NewSet("documentdb", metrics.Label{Key: "documenttype", Value: docType})
	db := &DocumentDB{
		docType:    docType,
		maxThreads: maxThreads,
		root:       root,
		subDBs:     make(map[SubDB]*SubDatabaseAggregator, len(SubDBs)),
	}

	db.index = newIndexAggregator(root)
	db.attributes = newAttributeAggregator(root)
	db.docstore = newCacheStatsAggregator(root)
	db.matching = newMatchingAggregator(root, maxThreads, logger)
	db.executor = newExecutorAggregator(root, "executor")
	db.indexExecutor = newExecutorAggregator(root, "index_executor")
	db.feed = newFeedAggregator(root)
	db.sessionManager = newSessionManagerAggregator(root)

	memoryParts := make([]*metrics.Gauge, 0, len(SubDBs))
	for _, name := range SubDBs {
		sub := newSubDatabaseAggregator(root, name)
		db.subDBs[name] = sub
		memoryParts = append(memoryParts, sub.MemoryUsage)
	}

	db.MemoryUsage = root.Sum("memory_usage_bytes", "Memory used by all sub databases", memoryParts...)
	db.NumDocs = root.Gauge("num_docs", "Number of documents in the ready and not ready sub databases", metrics.UnitNone)
	db.NumActiveDocs = root.Gauge("num_active_docs", "Number of active documents", metrics.UnitNone)
	db.NumIndexedDocs = root.Gauge("num_indexed_docs", "Number of indexed documents", metrics.UnitNone)
	db.NumStoredDocs = root.Gauge("num_stored_docs", "Number of stored documents", metrics.UnitNone)
	db.NumRemovedDocs = root.Gauge("num_removed_docs", "Number of removed documents", metrics.UnitNone)
	db.NumBadConfigs = root.Gauge("num_bad_configs", "Number of bad configs applied", metrics.UnitNone)

	logger.Debug().Int("max_threads", maxThreads).Int("metrics", root.Len()).Msg("Document db metrics created")
	return db
}

// DocType returns the document type the tree was built for.
func (db *DocumentDB) DocType() string { return db.docType }

// MaxThreads returns the lane count used for new rank profiles.
func (db *DocumentDB) MaxThreads() int { return db.maxThreads }

// Root returns the top of the metric tree.
func (db *DocumentDB) Root() *metrics.Set { return db.root }

// Collector returns a Prometheus collector over the tree.
func (db *DocumentDB) Collector(namespace string) prometheus.Collector {
	return metrics.NewCollector(namespace, db.root)
}

func (db *DocumentDB) Index() *IndexAggregator                   { return db.index }
func (db *DocumentDB) Attributes() *AttributeAggregator          { return db.attributes }
func (db *DocumentDB) Docstore() *CacheStatsAggregator           { return db.docstore }
func (db *DocumentDB) Matching() *MatchingAggregator             { return db.matching }
func (db *DocumentDB) Executor() *ExecutorAggregator             { return db.executor }
func (db *DocumentDB) IndexExecutor() *ExecutorAggregator        { return db.indexExecutor }
func (db *DocumentDB) Feed() *FeedAggregator                     { return db.feed }
func (db *DocumentDB) SessionManager() *SessionManagerAggregator { return db.sessionManager }

// SubDB returns the aggregator for one sub database. It panics on an unknown name.
func (db *DocumentDB) SubDB(name SubDB) *SubDatabaseAggregator {
	sub, ok := db.subDBs[name]
	if !ok {
		panic(fmt.Sprintf("documentdb: unknown sub database %q", name))
	}
	return sub
}

func (db *DocumentDB) Ready() *SubDatabaseAggregator    { return db.subDBs[SubDBReady] }
func (db *DocumentDB) NotReady() *SubDatabaseAggregator { return db.subDBs[SubDBNotReady] }
func (db *DocumentDB) Removed() *SubDatabaseAggregator  { return db.subDBs[SubDBRemoved] }

// SetDocumentCounts records the latest document counters.
func (db *DocumentDB) SetDocumentCounts(c DocumentCounts) {
	db.NumDocs.Set(float64(c.Docs))
	db.NumActiveDocs.Set(float64(c.ActiveDocs))
	db.NumIndexedDocs.Set(float64(c.IndexedDocs))
	db.NumStoredDocs.Set(float64(c.StoredDocs))
	db.NumRemovedDocs.Set(float64(c.RemovedDocs))
}

// IncBadConfigs counts a rejected configuration.
func (db *DocumentDB) IncBadConfigs() {
	db.NumBadConfigs.Add(1)
}
