// Package config provides configuration loading and validation for slotbench.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/slotarray/pkg/observability"
	"github.com/Sumatoshi-tech/slotarray/pkg/safeconv"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers  = errors.New("stress workers must be positive")
	ErrInvalidOps      = errors.New("stress ops must be positive")
	ErrInvalidRatio    = errors.New("stress ratios must lie in [0, 1] and sum to at most 1")
	ErrInvalidCapacity = errors.New("invalid slot capacity")
	ErrInvalidLogging  = errors.New("invalid logging configuration")
	ErrInvalidInterval = errors.New("sample interval must be positive")
)

// envPrefix is prepended to every environment override, e.g. SLOTBENCH_STRESS_WORKERS.
const envPrefix = "SLOTBENCH"

// Config holds all configuration for slotbench.
type Config struct {
	Stress        StressConfig        `mapstructure:"stress"        yaml:"stress"`
	Logging       LoggingConfig       `mapstructure:"logging"       yaml:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// StressConfig drives one stress run.
type StressConfig struct {
	// Workers is the number of goroutines mutating the registry.
	Workers int `mapstructure:"workers" yaml:"workers"`

	// Ops is the number of operations per worker.
	Ops int `mapstructure:"ops" yaml:"ops"`

	// SubscribeRatio and PublishRatio split each worker's ops; the remainder
	// unsubscribes.
	SubscribeRatio float64 `mapstructure:"subscribe_ratio" yaml:"subscribe_ratio"`
	PublishRatio   float64 `mapstructure:"publish_ratio"   yaml:"publish_ratio"`

	// InitialCapacity preallocates subscriber slots. 0 allocates lazily.
	InitialCapacity int `mapstructure:"initial_capacity" yaml:"initial_capacity"`

	// SlotBudget bounds the slot table size ("64KiB", "1MB"). Workers stop
	// subscribing once the live count would need a larger table.
	SlotBudget string `mapstructure:"slot_budget" yaml:"slot_budget"`

	// MaxLive is derived from SlotBudget during validation.
	MaxLive int `mapstructure:"-" yaml:"-"`

	// SampleInterval is how often the checker snapshots the registry.
	SampleInterval time.Duration `mapstructure:"sample_interval" yaml:"sample_interval"`

	// MetricsAddr serves /metrics while the run is active when non-empty.
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`

	// Plot writes an HTML chart of the samples when non-empty.
	Plot string `mapstructure:"plot" yaml:"plot"`

	// Seed seeds the workers' random choice. 0 picks a random seed.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ObservabilityConfig holds OpenTelemetry export settings.
type ObservabilityConfig struct {
	Environment  string  `mapstructure:"environment"   yaml:"environment"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"  yaml:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure" yaml:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"  yaml:"sample_ratio"`
	DebugTrace   bool    `mapstructure:"debug_trace"   yaml:"debug_trace"`
	TraceVerbose bool    `mapstructure:"trace_verbose" yaml:"trace_verbose"`
}

// New returns a viper instance carrying defaults, the SLOTBENCH_ environment
// overlay and, when configPath is set, that file. Commands bind their flags
// to it before calling Load.
func New(configPath string) *viper.Viper {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("slotbench")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return viperCfg
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	return Load(New(configPath))
}

// Load reads the config file if one is found, then unmarshals and validates.
func Load(viperCfg *viper.Viper) (*Config, error) {
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

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Stress defaults.
	viperCfg.SetDefault("stress.workers", DefaultStressWorkers)
	viperCfg.SetDefault("stress.ops", DefaultStressOps)
	viperCfg.SetDefault("stress.subscribe_ratio", DefaultStressSubscribeRatio)
	viperCfg.SetDefault("stress.publish_ratio", DefaultStressPublishRatio)
	viperCfg.SetDefault("stress.initial_capacity", DefaultStressInitialCapacity)
	viperCfg.SetDefault("stress.slot_budget", DefaultStressSlotBudget)
	viperCfg.SetDefault("stress.sample_interval", DefaultStressSampleInterval)
	viperCfg.SetDefault("stress.metrics_addr", DefaultStressMetricsAddr)
	viperCfg.SetDefault("stress.plot", DefaultStressPlot)
	viperCfg.SetDefault("stress.seed", DefaultStressSeed)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.format", DefaultLoggingFormat)

	// Observability defaults.
	viperCfg.SetDefault("observability.environment", DefaultObservabilityEnvironment)
	viperCfg.SetDefault("observability.otlp_endpoint", DefaultObservabilityOTLPEndpoint)
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.sample_ratio", DefaultObservabilitySampleRatio)
	viperCfg.SetDefault("observability.debug_trace", false)
	viperCfg.SetDefault("observability.trace_verbose", false)
}

// validateConfig validates the configuration and fills derived fields.
func validateConfig(config *Config) error {
	stress := &config.Stress

	if stress.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, stress.Workers)
	}

	if stress.Ops <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidOps, stress.Ops)
	}

	if !inUnit(stress.SubscribeRatio) || !inUnit(stress.PublishRatio) ||
		stress.SubscribeRatio+stress.PublishRatio > 1 {
		return fmt.Errorf("%w: subscribe %.2f, publish %.2f", ErrInvalidRatio, stress.SubscribeRatio, stress.PublishRatio)
	}

	if stress.InitialCapacity < 0 {
		return fmt.Errorf("%w: initial capacity %d", ErrInvalidCapacity, stress.InitialCapacity)
	}

	maxLive, err := parseSlotBudget(stress.SlotBudget)
	if err != nil {
		return err
	}

	stress.MaxLive = maxLive

	if stress.SampleInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, stress.SampleInterval)
	}

	_, err = observability.ParseLevel(config.Logging.Level)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLogging, err)
	}

	switch config.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: format %q", ErrInvalidLogging, config.Logging.Format)
	}

	if !inUnit(config.Observability.SampleRatio) {
		return fmt.Errorf("%w: sample ratio %.2f", ErrInvalidRatio, config.Observability.SampleRatio)
	}

	return nil
}

// parseSlotBudget converts a humanized byte size into the number of slots it
// holds.
func parseSlotBudget(budget string) (int, error) {
	size, err := humanize.ParseBytes(budget)
	if err != nil {
		return 0, fmt.Errorf("%w: slot budget %q: %w", ErrInvalidCapacity, budget, err)
	}

	slots, ok := safeconv.Uint64ToInt(size / slotWordBytes)
	if !ok || slots == 0 {
		return 0, fmt.Errorf("%w: slot budget %q holds no slots", ErrInvalidCapacity, budget)
	}

	return slots, nil
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

// Telemetry maps the loaded configuration onto the provider setup
// used by observability.Init.
func (c *Config) Telemetry(mode observability.AppMode, serviceVersion string) observability.Config {
	obsCfg := observability.DefaultConfig()

	obsCfg.ServiceVersion = serviceVersion
	obsCfg.Environment = c.Observability.Environment
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = c.Observability.OTLPEndpoint
	obsCfg.OTLPHeaders = otlpHeaders(c.Observability.OTLPHeaders)
	obsCfg.OTLPInsecure = c.Observability.OTLPInsecure
	obsCfg.SampleRatio = c.Observability.SampleRatio
	obsCfg.DebugTrace = c.Observability.DebugTrace
	obsCfg.TraceVerbose = c.Observability.TraceVerbose
	obsCfg.LogJSON = c.Logging.Format == "json"

	// Validated in Load.
	level, err := observability.ParseLevel(c.Logging.Level)
	if err == nil {
		obsCfg.LogLevel = level
	} else {
		obsCfg.LogLevel = slog.LevelInfo
	}

	return obsCfg
}

// otlpHeaders reads the "key=value,key=value" form used by
// OTEL_EXPORTER_OTLP_HEADERS. Pairs without '=' are ignored.
func otlpHeaders(raw string) map[string]string {
	var headers map[string]string

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)

		if !ok || key == "" {
			continue
		}

		if headers == nil {
			headers = make(map[string]string)
		}

		headers[key] = strings.TrimSpace(value)
	}

	return headers
}
