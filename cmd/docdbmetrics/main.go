package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/23skdu/docdbmetrics/internal/documentdb"
	"github.com/23skdu/docdbmetrics/internal/health"
	"github.com/23skdu/docdbmetrics/internal/logging"
	"github.com/23skdu/docdbmetrics/internal/replay"
	"github.com/23skdu/docdbmetrics/internal/sampler"
	"github.com/23skdu/docdbmetrics/internal/server"
)

var version = "dev"

func main() {
	envFile := flag.String("env", ".env", "Optional env file with DOCDB_* variables")
	listenAddr := flag.String("listen", "", "Address for the metrics server (overrides DOCDB_METRICS_ADDR)")
	replayPath := flag.String("replay", "", "JSON lines file of query stats to replay (overrides DOCDB_REPLAY_PATH)")
	flag.Parse()

	cfg, err := LoadConfig(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.MetricsAddr = *listenAddr
	}
	if *replayPath != "" {
		cfg.ReplayPath = *replayPath
	}

	logger, err := logging.NewLogger(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel, Output: os.Stdout})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Exiting")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, logger zerolog.Logger) error {
	db := documentdb.New(cfg.DocumentType, cfg.MaxThreads, documentdb.WithLogger(logger))

	reg := prometheus.NewRegistry()
	reg.MustRegister(db.Collector(cfg.Namespace))
	// The default gatherer carries the Go runtime, process and logging metrics.
	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, reg}

	snapshots := server.NewSnapshots()
	smp := sampler.New(sampler.Config{
		Interval:  cfg.SampleInterval,
		Cache:     snapshots,
		SubDBs:    snapshots,
		Executors: snapshots,
		Documents: snapshots,
	}, db, logger)

	hm := health.NewHealthManager(version, logger, reg)
	hm.RegisterChecker(health.NewStalenessChecker("sampler", smp.LastSample, 2*smp.Interval()))
	hm.RegisterChecker(health.NewStaticChecker("documentdb", func() map[string]interface{} {
		return map[string]interface{}{
			"document_type": db.DocType(),
			"max_threads":   db.MaxThreads(),
			"rank_profiles": db.Matching().RankProfiles().Len(),
			"metrics":       db.Root().Len(),
		}
	}))

	srv := server.New(server.Config{
		Addr:            cfg.MetricsAddr,
		ShutdownTimeout: cfg.ShutdownTimeout,
		IngestLimit:     cfg.IngestLimit,
	},
		db, snapshots, gatherers, hm.HTTPHandler(), logger)

	logger.Info().
		Str("version", version).
		Str("document_type", cfg.DocumentType).
		Int("max_threads", cfg.MaxThreads).
		Dur("sample_interval", cfg.SampleInterval).
		Msg("Document db metrics service starting")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return smp.Run(ctx) })
	if cfg.ReplayPath != "" {
		g.Go(func() error {
			// A broken replay file should not take the exporter down.
			if _, err := replay.File(ctx, cfg.ReplayPath, db.Matching(), replay.Config{RPS: cfg.ReplayRPS}, logger); err != nil {
				logger.Error().Err(err).Msg("Replay failed")
			}
			return nil
		})
	}
	return g.Wait()
}
