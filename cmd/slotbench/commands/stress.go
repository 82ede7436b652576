package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/slotarray/internal/stress"
	"github.com/Sumatoshi-tech/slotarray/pkg/config"
	"github.com/Sumatoshi-tech/slotarray/pkg/observability"
	"github.com/Sumatoshi-tech/slotarray/pkg/registry"
	"github.com/Sumatoshi-tech/slotarray/pkg/version"
)

const (
	// registryName labels the stress registry in logs, metrics and spans.
	registryName = "stress"

	// diagnosticsShutdownTimeout bounds the diagnostics server drain after a run.
	diagnosticsShutdownTimeout = 2 * time.Second
)

// ErrInvariantViolated is returned when a stress run observed a broken invariant.
var ErrInvariantViolated = errors.New("stress run observed invariant violations")

// stressFlags maps each flag to the viper key it overrides.
var stressFlags = map[string]string{
	"workers":          "stress.workers",
	"ops":              "stress.ops",
	"subscribe-ratio":  "stress.subscribe_ratio",
	"publish-ratio":    "stress.publish_ratio",
	"initial-capacity": "stress.initial_capacity",
	"slot-budget":      "stress.slot_budget",
	"sample-interval":  "stress.sample_interval",
	"metrics-addr":     "stress.metrics_addr",
	"plot":             "stress.plot",
	"seed":             "stress.seed",
	"log-level":        "logging.level",
	"log-format":       "logging.format",
	"trace-verbose":    "observability.trace_verbose",
}

// StressCommand holds flags for the stress command.
type StressCommand struct {
	configPath *string
	noColor    bool
}

func newStressCommand(configPath *string) *cobra.Command {
	sc := &StressCommand{configPath: configPath}

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run concurrent registry traffic and check slot invariants",
		Long: `Run N workers that randomly subscribe, unsubscribe and publish against one
registry while a checker samples it through lock-free views. The run fails
when a handle is handed out twice, a publish reaches a subscriber twice, a view
escapes the table, or the registry does not drain.`,
		Args: cobra.NoArgs,
		RunE: sc.run,
	}

	flags := cmd.Flags()
	flags.IntP("workers", "w", config.DefaultStressWorkers, "Concurrent workers")
	flags.IntP("ops", "n", config.DefaultStressOps, "Operations per worker")
	flags.Float64("subscribe-ratio", config.DefaultStressSubscribeRatio, "Fraction of operations that subscribe")
	flags.Float64("publish-ratio", config.DefaultStressPublishRatio, "Fraction of operations that publish")
	flags.Int("initial-capacity", config.DefaultStressInitialCapacity, "Preallocated subscriber slots (0 = lazy)")
	flags.String("slot-budget", config.DefaultStressSlotBudget, "Slot table size limit (e.g. '64KiB', '1MB')")
	flags.Duration("sample-interval", config.DefaultStressSampleInterval, "Checker sampling interval")
	flags.String("metrics-addr", config.DefaultStressMetricsAddr, "Serve Prometheus /metrics on this address during the run")
	flags.String("plot", config.DefaultStressPlot, "Write an HTML chart of the samples to this file")
	flags.Int64("seed", config.DefaultStressSeed, "Random seed (0 = random)")
	flags.String("log-level", config.DefaultLoggingLevel, "Log level: debug, info, warn, error")
	flags.String("log-format", config.DefaultLoggingFormat, "Log format: text, json")
	flags.Bool("trace-verbose", false, "Record a span per publish")
	flags.BoolVar(&sc.noColor, "no-color", false, "Disable colored output")

	return cmd
}

// viper returns the config source with every stress flag bound to its key.
func (sc *StressCommand) viper(cmd *cobra.Command) (*viper.Viper, error) {
	viperCfg := config.New(*sc.configPath)

	for flag, key := range stressFlags {
		err := viperCfg.BindPFlag(key, cmd.Flags().Lookup(flag))
		if err != nil {
			return nil, fmt.Errorf("bind --%s: %w", flag, err)
		}
	}

	return viperCfg, nil
}

func (sc *StressCommand) run(cmd *cobra.Command, _ []string) (err error) {
	viperCfg, err := sc.viper(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.Load(viperCfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	initOpts := []observability.Option{observability.WithLogWriter(cmd.ErrOrStderr())}

	var prom *observability.Prometheus

	if cfg.Stress.MetricsAddr != "" {
		prom, err = observability.NewPrometheus()
		if err != nil {
			return err
		}

		initOpts = append(initOpts, observability.WithMetricReader(prom.Reader))
	}

	providers, err := observability.Init(
		cfg.Telemetry(observability.ModeStress, version.Get().Version), initOpts...)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		err = errors.Join(err, providers.Shutdown(context.WithoutCancel(ctx)))
	}()

	logger := providers.Logger

	slotMetrics, err := observability.NewSlotMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init slot metrics: %w", err)
	}

	regOpts := []registry.Option{
		registry.WithLogger(logger),
		registry.WithMetrics(slotMetrics),
		registry.WithCapacity(cfg.Stress.InitialCapacity),
	}

	if providers.TraceVerbose {
		regOpts = append(regOpts, registry.WithTracer(providers.Tracer))
	}

	reg, err := registry.New[uint64](registryName, regOpts...)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, reg.Close())
	}()

	if prom != nil {
		diag, diagErr := observability.NewDiagnosticsServer(cfg.Stress.MetricsAddr,
			providers.Tracer, prom.Handler, logger, registryReady(reg))
		if diagErr != nil {
			return diagErr
		}

		defer func() {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), diagnosticsShutdownTimeout)
			defer cancel()

			err = errors.Join(err, diag.Close(closeCtx))
		}()
	}

	seed := uint64(cfg.Stress.Seed) //nolint:gosec // seeds are bit patterns.
	if seed == 0 {
		seed = rand.Uint64()
	}

	logger.InfoContext(ctx, "stress run starting",
		slog.Int("workers", cfg.Stress.Workers),
		slog.Int("ops", cfg.Stress.Ops),
		slog.Int("max_live", cfg.Stress.MaxLive),
		slog.Uint64("seed", seed),
	)

	res, runErr := stress.Run(ctx, reg, stress.Options{
		Workers:        cfg.Stress.Workers,
		Ops:            cfg.Stress.Ops,
		SubscribeRatio: cfg.Stress.SubscribeRatio,
		PublishRatio:   cfg.Stress.PublishRatio,
		MaxLive:        cfg.Stress.MaxLive,
		SampleInterval: cfg.Stress.SampleInterval,
		Seed:           seed,
		Logger:         logger,
		Tracer:         providers.Tracer,
	})
	if res == nil {
		return runErr
	}

	writeReport(cmd.OutOrStdout(), &cfg.Stress, res, reg.Stats(), sc.noColor)

	if cfg.Stress.Plot != "" {
		plotErr := writePlot(cfg.Stress.Plot, res.Samples)
		if plotErr != nil {
			return errors.Join(runErr, plotErr)
		}

		logger.InfoContext(ctx, "plot written", slog.String("path", cfg.Stress.Plot))
	}

	if runErr != nil {
		return runErr
	}

	if !res.Passed() {
		return fmt.Errorf("%w: %d", ErrInvariantViolated, len(res.Violations))
	}

	return nil
}

// registryReady fails readiness once the registry is closed.
func registryReady(reg *registry.Registry[uint64]) observability.ReadyCheck {
	return observability.ReadyCheck{
		Name: registryName,
		Check: func(context.Context) error {
			if reg.Closed() {
				return registry.ErrClosed
			}

			return nil
		},
	}
}
