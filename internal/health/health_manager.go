package health

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

func (s HealthStatus) value() float64 {
	switch s {
	case StatusHealthy:
		return 1
	case StatusDegraded:
		return 0.5
	default:
		return 0
	}
}

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// SystemHealth represents the overall system health
type SystemHealth struct {
	Status        HealthStatus                `json:"status"`
	Timestamp     time.Time                   `json:"timestamp"`
	Uptime        string                      `json:"uptime"`
	Version       string                      `json:"version"`
	GoVersion     string                      `json:"go_version"`
	NumGoroutines int                         `json:"num_goroutines"`
	Components    map[string]*ComponentHealth `json:"components"`
	CheckCount    int64                       `json:"check_count"`
}

// HealthChecker defines the interface for component health checks
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) *ComponentHealth
}

// HealthManager runs the registered checkers on demand and exports their status.
type HealthManager struct {
	startTime time.Time
	version   string
	logger    zerolog.Logger

	mu       sync.RWMutex
	checkers map[string]HealthChecker

	checkCounter    atomic.Int64
	componentStatus *prometheus.GaugeVec
}

// NewHealthManager creates a new health manager. The component status gauge is registered
// with reg when it is not nil.
func NewHealthManager(version string, logger zerolog.Logger, reg prometheus.Registerer) *HealthManager {
	hm := &HealthManager{
		startTime: time.Now(),
		version:   version,
		logger:    logger.With().Str("component", "health").Logger(),
		checkers:  make(map[string]HealthChecker),
		componentStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "docdb_component_health_status",
				Help: "Current component health status (1=healthy, 0.5=degraded, 0=unhealthy)",
			},
			[]string{"component"},
		),
	}
	if reg != nil {
		reg.MustRegister(hm.componentStatus)
	}
	return hm
}

// RegisterChecker registers a health checker
func (hm *HealthManager) RegisterChecker(checker HealthChecker) {
	hm.mu.Lock()
	hm.checkers[checker.Name()] = checker
	hm.mu.Unlock()
	hm.logger.Debug().Str("checker", checker.Name()).Msg("Registered health checker")
}

// CheckHealth performs health checks on all registered components
func (hm *HealthManager) CheckHealth(ctx context.Context) *SystemHealth {
	hm.mu.RLock()
	checkers := make([]HealthChecker, 0, len(hm.checkers))
	for _, c := range hm.checkers {
		checkers = append(checkers, c)
	}
	hm.mu.RUnlock()
	sort.Slice(checkers, func(i, j int) bool { return checkers[i].Name() < checkers[j].Name() })

	health := &SystemHealth{
		Status:        StatusHealthy,
		Timestamp:     time.Now(),
		Uptime:        time.Since(hm.startTime).Round(time.Second).String(),
		Version:       hm.version,
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		Components:    make(map[string]*ComponentHealth, len(checkers)),
		CheckCount:    hm.checkCounter.Inc(),
	}

	for _, checker := range checkers {
		ch := checker.Check(ctx)
		hm.componentStatus.WithLabelValues(checker.Name()).Set(ch.Status.value())
		health.Components[checker.Name()] = ch

		if ch.Status == StatusUnhealthy {
			health.Status = StatusUnhealthy
		} else if ch.Status == StatusDegraded && health.Status == StatusHealthy {
			health.Status = StatusDegraded
		}
	}

	if health.Status != StatusHealthy {
		hm.logger.Warn().
			Str("overall_status", string(health.Status)).
			Int("components_checked", len(checkers)).
			Msg("Health check not healthy")
	}
	return health
}

// HTTPHandler returns an http handler for health checks
func (hm *HealthManager) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := hm.CheckHealth(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if health.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			hm.logger.Error().Err(err).Msg("Failed to encode health response")
		}
	})
}
