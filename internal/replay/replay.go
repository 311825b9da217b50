// Package replay feeds recorded per-query statistics into a matching aggregator.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/23skdu/docdbmetrics/internal/errors"
	"github.com/23skdu/docdbmetrics/internal/matching"
)

// Updater receives one snapshot per recorded query.
type Updater interface {
	Update(stats *matching.Stats)
}

// Config controls a replay.
type Config struct {
	// RPS limits how many records are applied per second. 0 means unlimited.
	RPS int
	// StopOnError aborts on the first malformed record instead of skipping it.
	StopOnError bool
}

// Result summarises a finished replay.
type Result struct {
	Applied int
	Skipped int
}

const maxLineSize = 4 << 20

// Reader replays JSON lines, one matching.Stats per line. Blank lines are ignored.
func Reader(ctx context.Context, r io.Reader, dst Updater, cfg Config, logger zerolog.Logger) (Result, error) {
	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS)
	}

	var res Result
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var stats matching.Stats
		if err := json.Unmarshal(raw, &stats); err != nil {
			if cfg.StopOnError {
				return res, errors.WrapDecodeError(err, "replay", "malformed record").WithContext("line", line)
			}
			logger.Warn().Err(err).Int("line", line).Msg("Skipping malformed record")
			res.Skipped++
			continue
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return res, nil
			}
		} else if ctx.Err() != nil {
			return res, nil
		}

		dst.Update(&stats)
		res.Applied++
	}
	if err := scanner.Err(); err != nil {
		return res, errors.WrapIOError(err, "replay", "read failed").WithContext("line", line)
	}
	return res, nil
}

// File replays the JSON lines file at path.
func File(ctx context.Context, path string, dst Updater, cfg Config, logger zerolog.Logger) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, errors.WrapIOError(err, "replay", "open failed").WithContext("path", path)
	}
	defer f.Close()

	logger = logger.With().Str("component", "replay").Str("path", path).Logger()
	res, err := Reader(ctx, f, dst, cfg, logger)
	if err != nil {
		return res, err
	}
	logger.Info().Int("applied", res.Applied).Int("skipped", res.Skipped).Msg("Replay finished")
	return res, nil
}
