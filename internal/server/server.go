// Package server exposes a document type metric tree over HTTP: Prometheus scraping, a text
// dump, health, and ingest endpoints for producers running in other processes.
package server

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/23skdu/docdbmetrics/internal/documentdb"
	"github.com/23skdu/docdbmetrics/internal/errors"
	"github.com/23skdu/docdbmetrics/internal/limiter"
	"github.com/23skdu/docdbmetrics/internal/matching"
	"github.com/23skdu/docdbmetrics/internal/metrics"
	"github.com/23skdu/docdbmetrics/internal/sampler"
)

const maxBodySize = 1 << 20

// Config configures a Server.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	IngestLimit     limiter.Config
}

// Server serves one DocumentDB.
type Server struct {
	cfg       Config
	db        *documentdb.DocumentDB
	snapshots *Snapshots
	logger    zerolog.Logger
	router    *mux.Router
}

// New builds the router. gatherer is scraped on /metrics and health is served on /healthz
// when not nil.
func New(cfg Config, db *documentdb.DocumentDB, snapshots *Snapshots, gatherer prometheus.Gatherer, health http.Handler, logger zerolog.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{
		cfg:       cfg,
		db:        db,
		snapshots: snapshots,
		logger:    logger.With().Str("component", "server").Logger(),
		router:    mux.NewRouter(),
	}

	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/debug/metrics", s.handleText).Methods(http.MethodGet)
	if health != nil {
		s.router.Handle("/healthz", health).Methods(http.MethodGet)
	}

	lim := limiter.NewRateLimiter(cfg.IngestLimit)
	ingest := func(path string, h http.HandlerFunc, method string) {
		s.router.Handle(path, lim.Middleware(h)).Methods(method)
	}
	ingest("/ingest/matching", s.handleMatching, http.MethodPost)
	ingest("/ingest/feed", s.handleFeed, http.MethodPost)
	ingest("/ingest/sessions", s.handleSessions, http.MethodPost)
	ingest("/ingest/index", s.handleIndex, http.MethodPut)
	ingest("/ingest/cache", s.handleCache, http.MethodPut)
	ingest("/ingest/documents", s.handleDocuments, http.MethodPut)
	ingest("/ingest/subdb/{name}", s.handleSubDB, http.MethodPut)
	ingest("/ingest/executor/{name}", s.handleExecutor, http.MethodPost)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.WrapNetworkError(err, "listen", "failed to listen").WithContext("addr", s.cfg.Addr)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", lis.Addr().String()).Msg("Starting metrics server")
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WrapNetworkError(err, "serve", "metrics server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.WrapNetworkError(err, "shutdown", "graceful shutdown failed")
	}
	s.logger.Info().Msg("Metrics server stopped")
	return nil
}

func (s *Server) handleText(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := metrics.WriteText(w, s.db.Root()); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to write text dump")
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err == nil {
		err = json.Unmarshal(body, v)
	}
	if err != nil {
		s.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected ingest request")
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleMatching(w http.ResponseWriter, r *http.Request) {
	var stats matching.Stats
	if !s.decode(w, r, &stats) {
		return
	}
	s.db.Matching().Update(&stats)
	w.WriteHeader(http.StatusNoContent)
}

// FeedOperation is one applied feed operation.
type FeedOperation struct {
	Op      string        `json:"op"`
	Latency time.Duration `json:"latency"`
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	var op FeedOperation
	if !s.decode(w, r, &op) {
		return
	}
	feed := s.db.Feed()
	switch op.Op {
	case "put":
		feed.RecordPut(op.Latency)
	case "update":
		feed.RecordUpdate(op.Latency)
	case "remove":
		feed.RecordRemove(op.Latency)
	case "move":
		feed.RecordMove(op.Latency)
	default:
		http.Error(w, "unknown feed operation: "+op.Op, http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	var stats documentdb.SessionStats
	if !s.decode(w, r, &stats) {
		return
	}
	s.db.SessionManager().Update(stats)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var stats documentdb.IndexStats
	if !s.decode(w, r, &stats) {
		return
	}
	s.db.Index().Set(stats)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	var stats documentdb.CacheStats
	if !s.decode(w, r, &stats) {
		return
	}
	s.snapshots.PutCache(stats)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	var counts documentdb.DocumentCounts
	if !s.decode(w, r, &counts) {
		return
	}
	s.snapshots.PutDocuments(counts)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSubDB(w http.ResponseWriter, r *http.Request) {
	name, ok := documentdb.ParseSubDB(mux.Vars(r)["name"])
	if !ok {
		http.Error(w, "unknown sub database", http.StatusNotFound)
		return
	}
	var stats sampler.SubDBStats
	if !s.decode(w, r, &stats) {
		return
	}
	s.snapshots.PutSubDB(name, stats)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleExecutor(w http.ResponseWriter, r *http.Request) {
	var index bool
	switch mux.Vars(r)["name"] {
	case "shared":
	case "index":
		index = true
	default:
		http.Error(w, "unknown executor", http.StatusNotFound)
		return
	}
	var stats documentdb.ExecutorStats
	if !s.decode(w, r, &stats) {
		return
	}
	s.snapshots.AddExecutor(index, stats)
	w.WriteHeader(http.StatusAccepted)
}
