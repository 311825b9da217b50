// Package limiter throttles ingest requests with a token bucket.
package limiter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// RequestsTotal counts ingest requests by limiter outcome.
var RequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docdb_ingest_rate_limit_requests_total",
		Help: "Total number of ingest requests seen by the rate limiter by result",
	},
	[]string{"result"},
)

// Config holds rate limiter configuration
type Config struct {
	RPS     int           `envconfig:"RPS" default:"0"`       // 0 means disabled
	Burst   int           `envconfig:"BURST" default:"0"`     // 0 means use RPS
	MaxWait time.Duration `envconfig:"MAX_WAIT" default:"1s"` // how long a request may queue for a token
}

// RateLimiter wraps the token bucket limiter
type RateLimiter struct {
	limiter *rate.Limiter
	maxWait time.Duration
	enabled bool
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg Config) *RateLimiter {
	if cfg.RPS <= 0 {
		return &RateLimiter{enabled: false}
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RPS
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = time.Second
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		maxWait: maxWait,
		enabled: true,
	}
}

// Enabled reports whether requests are throttled at all.
func (l *RateLimiter) Enabled() bool { return l.enabled }

// Middleware queues each request for a token for up to MaxWait and rejects it with 429
// when none becomes available in time.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if !l.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), l.maxWait)
		defer cancel()

		if err := l.limiter.Wait(ctx); err != nil {
			if errors.Is(r.Context().Err(), context.Canceled) {
				RequestsTotal.WithLabelValues("cancelled").Inc()
				return
			}
			RequestsTotal.WithLabelValues("throttled").Inc()
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		RequestsTotal.WithLabelValues("allowed").Inc()
		next.ServeHTTP(w, r)
	})
}
