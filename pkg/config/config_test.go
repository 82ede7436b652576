package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/slotarray/pkg/config"
)

const (
	// testDefaultMaxLive is the slot count of the default 64KiB budget.
	testDefaultMaxLive = 8192

	testWorkers = 16
	testOps     = 500
)

// writeConfig writes content to a YAML file in a fresh temp dir.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "slotbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultStressWorkers, cfg.Stress.Workers)
	assert.Equal(t, config.DefaultStressOps, cfg.Stress.Ops)
	assert.InDelta(t, config.DefaultStressSubscribeRatio, cfg.Stress.SubscribeRatio, 0.001)
	assert.InDelta(t, config.DefaultStressPublishRatio, cfg.Stress.PublishRatio, 0.001)
	assert.Equal(t, config.DefaultStressSlotBudget, cfg.Stress.SlotBudget)
	assert.Equal(t, testDefaultMaxLive, cfg.Stress.MaxLive)
	assert.Equal(t, config.DefaultStressSampleInterval, cfg.Stress.SampleInterval)
	assert.Equal(t, config.DefaultLoggingLevel, cfg.Logging.Level)
	assert.Equal(t, config.DefaultLoggingFormat, cfg.Logging.Format)
	assert.InDelta(t, config.DefaultObservabilitySampleRatio, cfg.Observability.SampleRatio, 0.001)
}

func TestLoadConfigNoFile(t *testing.T) {
	t.Parallel()

	// No slotbench.yaml in the working directory: defaults apply.
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultStressWorkers, cfg.Stress.Workers)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
stress:
  workers: 16
  ops: 500
  subscribe_ratio: 0.5
  publish_ratio: 0.2
  initial_capacity: 32
  slot_budget: "1KiB"
  sample_interval: "25ms"
  metrics_addr: ":9464"
  plot: "run.html"
  seed: 7

logging:
  level: debug
  format: json

observability:
  otlp_endpoint: "localhost:4317"
  otlp_insecure: true
  trace_verbose: true
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, testWorkers, cfg.Stress.Workers)
	assert.Equal(t, testOps, cfg.Stress.Ops)
	assert.InDelta(t, 0.5, cfg.Stress.SubscribeRatio, 0.001)
	assert.InDelta(t, 0.2, cfg.Stress.PublishRatio, 0.001)
	assert.Equal(t, 32, cfg.Stress.InitialCapacity)
	assert.Equal(t, 128, cfg.Stress.MaxLive)
	assert.Equal(t, 25*time.Millisecond, cfg.Stress.SampleInterval)
	assert.Equal(t, ":9464", cfg.Stress.MetricsAddr)
	assert.Equal(t, "run.html", cfg.Stress.Plot)
	assert.Equal(t, int64(7), cfg.Stress.Seed)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "localhost:4317", cfg.Observability.OTLPEndpoint)
	assert.True(t, cfg.Observability.OTLPInsecure)
	assert.True(t, cfg.Observability.TraceVerbose)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SLOTBENCH_STRESS_WORKERS", "3")
	t.Setenv("SLOTBENCH_STRESS_SLOT_BUDGET", "80B")
	t.Setenv("SLOTBENCH_LOGGING_FORMAT", "json")

	cfg, err := config.LoadConfig(writeConfig(t, "stress:\n  workers: 12\n"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Stress.Workers, "environment overrides the file")
	assert.Equal(t, 10, cfg.Stress.MaxLive)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfigBadFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "stress: [unclosed"))
	require.Error(t, err)
}
