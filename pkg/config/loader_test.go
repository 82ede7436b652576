package config_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/slotarray/pkg/config"
	"github.com/Sumatoshi-tech/slotarray/pkg/observability"
)

func TestValidateConfig_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"zero_workers", "stress:\n  workers: 0\n", config.ErrInvalidWorkers},
		{"negative_ops", "stress:\n  ops: -1\n", config.ErrInvalidOps},
		{"ratio_above_one", "stress:\n  subscribe_ratio: 1.5\n", config.ErrInvalidRatio},
		{"ratios_sum_above_one", "stress:\n  subscribe_ratio: 0.7\n  publish_ratio: 0.4\n", config.ErrInvalidRatio},
		{"negative_capacity", "stress:\n  initial_capacity: -4\n", config.ErrInvalidCapacity},
		{"unparsable_budget", "stress:\n  slot_budget: lots\n", config.ErrInvalidCapacity},
		{"budget_below_one_slot", "stress:\n  slot_budget: 4B\n", config.ErrInvalidCapacity},
		{"zero_interval", "stress:\n  sample_interval: 0s\n", config.ErrInvalidInterval},
		{"bad_level", "logging:\n  level: loud\n", config.ErrInvalidLogging},
		{"bad_format", "logging:\n  format: xml\n", config.ErrInvalidLogging},
		{"bad_sample_ratio", "observability:\n  sample_ratio: 2\n", config.ErrInvalidRatio},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tc.content))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoad_FlagOverrides(t *testing.T) {
	t.Parallel()

	viperCfg := config.New(writeConfig(t, "stress:\n  workers: 2\n"))
	viperCfg.Set("stress.workers", testWorkers)

	cfg, err := config.Load(viperCfg)
	require.NoError(t, err)
	assert.Equal(t, testWorkers, cfg.Stress.Workers)
}

func TestTelemetry(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, `
logging:
  level: warn
  format: json
observability:
  environment: ci
  otlp_endpoint: "collector:4317"
  otlp_headers: "x-token=abc, x-team=slots"
  sample_ratio: 0.25
  trace_verbose: true
`))
	require.NoError(t, err)

	obsCfg := cfg.Telemetry(observability.ModeStress, "v1.0.0")

	assert.Equal(t, "slotbench", obsCfg.ServiceName)
	assert.Equal(t, "v1.0.0", obsCfg.ServiceVersion)
	assert.Equal(t, "ci", obsCfg.Environment)
	assert.Equal(t, observability.ModeStress, obsCfg.Mode)
	assert.Equal(t, "collector:4317", obsCfg.OTLPEndpoint)
	assert.Equal(t, map[string]string{"x-token": "abc", "x-team": "slots"}, obsCfg.OTLPHeaders)
	assert.InDelta(t, 0.25, obsCfg.SampleRatio, 0.001)
	assert.True(t, obsCfg.TraceVerbose)
	assert.True(t, obsCfg.LogJSON)
	assert.Equal(t, slog.LevelWarn, obsCfg.LogLevel)
}

func TestTelemetry_Headers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{"empty", "", nil},
		{"malformed_only", "junk", nil},
		{"skips_malformed", "junk, x-token = abc ,=orphan", map[string]string{"x-token": "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &config.Config{}
			cfg.Observability.OTLPHeaders = tt.raw

			assert.Equal(t, tt.want, cfg.Telemetry(observability.ModeCLI, "").OTLPHeaders)
		})
	}
}
