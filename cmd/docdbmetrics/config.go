package main

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	structerrors "github.com/23skdu/docdbmetrics/internal/errors"
	"github.com/23skdu/docdbmetrics/internal/limiter"
)

// EnvPrefix is the prefix of every environment variable read by the service.
const EnvPrefix = "DOCDB"

// Config holds the service configuration, read from DOCDB_* environment variables.
type Config struct {
	DocumentType    string        `envconfig:"DOCUMENT_TYPE" default:"default"`
	MaxThreads      int           `envconfig:"MAX_THREADS" default:"8"`
	MetricsAddr     string        `envconfig:"METRICS_ADDR" default:"0.0.0.0:9090"`
	Namespace       string        `envconfig:"NAMESPACE" default:"proton"`
	SampleInterval  time.Duration `envconfig:"SAMPLE_INTERVAL" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	ReplayPath      string        `envconfig:"REPLAY_PATH"`
	ReplayRPS       int           `envconfig:"REPLAY_RPS" default:"0"` // 0 means unlimited
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`

	IngestLimit limiter.Config `envconfig:"INGEST"` // DOCDB_INGEST_RPS, DOCDB_INGEST_BURST, DOCDB_INGEST_MAX_WAIT
}

// Config validation errors
var (
	ErrInvalidDocumentType   = errors.New("document_type cannot be empty")
	ErrInvalidMaxThreads     = errors.New("max_threads must be positive")
	ErrInvalidMetricsAddr    = errors.New("metrics_addr cannot be empty")
	ErrInvalidSampleInterval = errors.New("sample_interval must be positive")
	ErrInvalidReplayRPS      = errors.New("replay_rps cannot be negative")
	ErrInvalidLogFormat      = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel       = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidIngestLimit    = errors.New("ingest_rps and ingest_burst cannot be negative")
)

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.DocumentType == "" {
		return ErrInvalidDocumentType
	}
	if cfg.MaxThreads <= 0 {
		return ErrInvalidMaxThreads
	}
	if cfg.MetricsAddr == "" {
		return ErrInvalidMetricsAddr
	}
	if cfg.SampleInterval <= 0 {
		return ErrInvalidSampleInterval
	}
	if cfg.ReplayRPS < 0 {
		return ErrInvalidReplayRPS
	}
	if cfg.IngestLimit.RPS < 0 || cfg.IngestLimit.Burst < 0 {
		return ErrInvalidIngestLimit
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	return nil
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		DocumentType:    "default",
		MaxThreads:      8,
		MetricsAddr:     "0.0.0.0:9090",
		Namespace:       "proton",
		SampleInterval:  10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		LogFormat:       "json",
		LogLevel:        "info",
		IngestLimit:     limiter.Config{MaxWait: time.Second},
	}
}

// LoadConfig reads envFile into the environment if it exists, then processes DOCDB_*
// variables. Variables already set in the environment win over the file.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, structerrors.WrapConfigurationError(err, "load_config", "failed to read env file").
					WithContext("path", envFile)
			}
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, structerrors.WrapConfigurationError(err, "load_config", "failed to process environment")
	}
	if err := ValidateConfig(&cfg); err != nil {
		return Config{}, structerrors.WrapConfigurationError(err, "load_config", "invalid configuration")
	}
	return cfg, nil
}
