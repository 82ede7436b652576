// Package observability wires OpenTelemetry tracing and metrics, structured
// logging, and a Prometheus scrape endpoint for slot arrays and the registries
// built on them.
package observability

import (
	"fmt"
	"log/slog"
	"strings"
)

// AppMode identifies how the binary was launched.
type AppMode string

const (
	// ModeCLI is a one-shot command such as config or version.
	ModeCLI AppMode = "cli"
	// ModeStress is a long-running stress run.
	ModeStress AppMode = "stress"
)

const (
	// defaultServiceName is the default OTel service name.
	defaultServiceName = "slotbench"

	// defaultSampleRatio traces every stress run.
	defaultSampleRatio = 1.0
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment (e.g. "ci", "dev").
	Environment string

	// Mode identifies how the binary was launched.
	Mode AppMode

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables OTLP export.
	OTLPEndpoint string

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporter.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// DebugTrace traces every run and logs span attributes dropped by the
	// attribute filter.
	DebugTrace bool

	// SampleRatio is the fraction of runs traced when DebugTrace is false.
	SampleRatio float64

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON switches log output from text to JSON.
	LogJSON bool

	// TraceVerbose enables per-publish spans on the dispatch hot path.
	// When false only run-level spans are recorded.
	TraceVerbose bool
}

// DefaultConfig returns a Config for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName: defaultServiceName,
		Mode:        ModeCLI,
		LogLevel:    slog.LevelInfo,
		SampleRatio: defaultSampleRatio,
	}
}

// ParseLevel maps a config string ("debug", "info", "warn", "error") to a
// slog level. Matching is case-insensitive.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(strings.TrimSpace(s)))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level %q: %w", s, err)
	}

	return level, nil
}
