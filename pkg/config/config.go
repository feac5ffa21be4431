// Package config loads the scenariominer configuration from a YAML file and
// SCENARIOMINER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/scenariominer/pkg/language"
	"github.com/Sumatoshi-tech/scenariominer/pkg/miner"
	"github.com/Sumatoshi-tech/scenariominer/pkg/observability"
)

// Sentinel validation errors.
var (
	ErrInvalidWindowSize   = errors.New("window size must be at least 1")
	ErrInvalidTimeout      = errors.New("cherry-pick timeout must be positive")
	ErrInvalidMaxScenarios = errors.New("cherry-pick max scenarios must be positive")
	ErrInvalidCacheSize    = errors.New("patch cache size must not be negative")
	ErrInvalidWorkers      = errors.New("batch workers must not be negative")
	ErrInvalidLogFormat    = errors.New("invalid log format")
)

const envPrefix = "SCENARIOMINER"

// Config holds all configuration for scenariominer.
type Config struct {
	Miner      MinerConfig      `mapstructure:"miner"`
	CherryPick CherryPickConfig `mapstructure:"cherry_pick"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Store      StoreConfig      `mapstructure:"store"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// MinerConfig selects what a mining run tracks.
type MinerConfig struct {
	Language   string   `mapstructure:"language"`
	Extensions []string `mapstructure:"extensions"`
	WindowSize int      `mapstructure:"window_size"`
}

// CherryPickConfig bounds content-hash cherry-pick matching.
type CherryPickConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxScenarios   int           `mapstructure:"max_scenarios"`
	PatchCacheSize int           `mapstructure:"patch_cache_size"`
}

// BatchConfig controls multi-repository runs.
type BatchConfig struct {
	CloneDir   string `mapstructure:"clone_dir"`
	Workers    int    `mapstructure:"workers"`
	KeepClones bool   `mapstructure:"keep_clones"`
}

// StoreConfig points at the SQLite result store. Empty disables it.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds exporter configuration.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches for scenariominer.yaml in the usual places
// and tolerates its absence.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("scenariominer")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/scenariominer")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("miner.window_size", DefaultWindowSize)
	viperCfg.SetDefault("miner.language", DefaultLanguage)
	viperCfg.SetDefault("miner.extensions", []string{})

	viperCfg.SetDefault("cherry_pick.timeout", DefaultCherryPickTimeout)
	viperCfg.SetDefault("cherry_pick.max_scenarios", DefaultMaxScenarios)
	viperCfg.SetDefault("cherry_pick.patch_cache_size", DefaultPatchCacheSize)

	viperCfg.SetDefault("batch.workers", DefaultBatchWorkers)
	viperCfg.SetDefault("batch.clone_dir", "")
	viperCfg.SetDefault("batch.keep_clones", DefaultKeepClones)

	viperCfg.SetDefault("store.path", "")

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.metrics_addr", "")
}

// Validate checks the configuration. CLI flags are applied on top of a loaded
// Config, so callers validate again after overriding fields.
func (c *Config) Validate() error {
	if c.Miner.WindowSize < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidWindowSize, c.Miner.WindowSize)
	}

	_, err := language.Parse(c.Miner.Language)
	if err != nil {
		return err
	}

	if c.CherryPick.Timeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.CherryPick.Timeout)
	}

	if c.CherryPick.MaxScenarios <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxScenarios, c.CherryPick.MaxScenarios)
	}

	if c.CherryPick.PatchCacheSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, c.CherryPick.PatchCacheSize)
	}

	if c.Batch.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Batch.Workers)
	}

	switch c.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}

// MinerConfig builds the mining parameters.
func (c *Config) MinerConfig() (miner.Config, error) {
	lang, err := language.Parse(c.Miner.Language)
	if err != nil {
		return miner.Config{}, err
	}

	return miner.Config{
		WindowSize:        c.Miner.WindowSize,
		Filter:            language.NewFilter(lang, c.Miner.Extensions...),
		CherryPickTimeout: c.CherryPick.Timeout,
		CherryPickLimit:   c.CherryPick.MaxScenarios,
		PatchCacheSize:    c.CherryPick.PatchCacheSize,
	}, nil
}

// Observability builds the telemetry configuration for the given mode. An
// unset OTLP endpoint or header list falls back to the standard
// OTEL_EXPORTER_OTLP_* variables.
func (c *Config) Observability(mode observability.AppMode, version string) observability.Config {
	endpoint := c.Telemetry.OTLPEndpoint
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}

	headers := c.Telemetry.OTLPHeaders
	if headers == "" {
		headers = os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")
	}

	obs := observability.DefaultConfig()
	obs.ServiceVersion = version
	obs.Mode = mode
	obs.OTLPEndpoint = endpoint
	obs.OTLPHeaders = observability.ParseOTLPHeaders(headers)
	obs.OTLPInsecure = c.Telemetry.OTLPInsecure
	obs.SampleRatio = c.Telemetry.SampleRatio
	obs.PrometheusMetrics = c.Telemetry.MetricsAddr != ""
	obs.LogLevel = observability.ParseLogLevel(c.Logging.Level)
	obs.LogJSON = c.Logging.Format == LogFormatJSON

	return obs
}

// SetVerbose lowers the log level to debug.
func (c *Config) SetVerbose() {
	c.Logging.Level = slog.LevelDebug.String()
}
