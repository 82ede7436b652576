// Package stress drives concurrent subscribe, unsubscribe and publish traffic
// against a registry while a checker samples it, and reports every handle
// or delivery invariant the run observed being broken.
package stress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/slotarray/pkg/registry"
)

// maxViolations caps how many violation messages a run keeps.
const maxViolations = 32

// ErrInvalidOptions is returned by Run for unusable options.
var ErrInvalidOptions = errors.New("stress: invalid options")

// Options controls one run.
type Options struct {
	Workers        int
	Ops            int
	SubscribeRatio float64
	PublishRatio   float64
	MaxLive        int
	SampleInterval time.Duration
	Seed           uint64

	Logger *slog.Logger
	Tracer trace.Tracer
}

// Sample is one checker observation.
type Sample struct {
	Elapsed   time.Duration
	Capacity  int
	Live      int
	HighWater int
	ViewLen   int // Highest live handle + 1 seen through the view.
}

// Result summarizes a finished run.
type Result struct {
	Duration     time.Duration
	Subscribes   int64
	Unsubscribes int64
	Drained      int64 // Subscriptions released after the workload, not counted in Ops.
	Publishes    int64
	Deliveries   int64
	Skipped      int64 // Subscribes refused because the slot budget was reached.
	PeakLive     int
	Samples      []Sample
	Violations   []string
}

// Ops returns the number of workload operations that reached the registry.
// It never exceeds Workers*Ops.
func (r *Result) Ops() int64 { return r.Subscribes + r.Unsubscribes + r.Publishes }

// Passed reports whether no invariant was broken.
func (r *Result) Passed() bool { return len(r.Violations) == 0 }

// run holds the shared state of one Run call.
type run struct {
	opts Options
	reg  *registry.Registry[uint64]

	// owners maps a live handle to the worker holding it.
	owners sync.Map
	seq    atomic.Uint64

	subscribes   atomic.Int64
	unsubscribes atomic.Int64
	drained      atomic.Int64
	publishes    atomic.Int64
	deliveries   atomic.Int64
	skipped      atomic.Int64

	mu         sync.Mutex
	violations []string
}

// Run executes the workload against reg and blocks until every worker is
// done or ctx is cancelled. reg is left empty on success.
func Run(ctx context.Context, reg *registry.Registry[uint64], opts Options) (*Result, error) {
	if opts.Workers <= 0 || opts.Ops <= 0 || opts.MaxLive <= 0 || opts.SampleInterval <= 0 {
		return nil, fmt.Errorf("%w: workers %d, ops %d, max live %d, interval %s",
			ErrInvalidOptions, opts.Workers, opts.Ops, opts.MaxLive, opts.SampleInterval)
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Tracer == nil {
		opts.Tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	ctx, span := opts.Tracer.Start(ctx, "stress.run", trace.WithAttributes(
		attribute.Int("stress.workers", opts.Workers),
		attribute.Int("stress.ops", opts.Ops),
		attribute.Int("stress.max_live", opts.MaxLive),
	))
	defer span.End()

	r := &run{opts: opts, reg: reg}
	start := time.Now()

	checkerCtx, stopChecker := context.WithCancel(ctx)
	samplesCh := make(chan []Sample, 1)

	go func() {
		samplesCh <- r.check(checkerCtx, start)
	}()

	var wg sync.WaitGroup

	for worker := range opts.Workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			r.work(ctx, worker)
		}()
	}

	wg.Wait()
	stopChecker()

	samples := <-samplesCh

	r.verifyDrained()

	res := &Result{
		Duration:     time.Since(start),
		Subscribes:   r.subscribes.Load(),
		Unsubscribes: r.unsubscribes.Load(),
		Drained:      r.drained.Load(),
		Publishes:    r.publishes.Load(),
		Deliveries:   r.deliveries.Load(),
		Skipped:      r.skipped.Load(),
		Samples:      samples,
		Violations:   r.violations,
	}

	for _, s := range samples {
		res.PeakLive = max(res.PeakLive, s.Live)
	}

	span.SetAttributes(
		attribute.Int64("stress.publishes", res.Publishes),
		attribute.Int("stress.violations", len(res.Violations)),
	)

	opts.Logger.InfoContext(ctx, "stress run finished",
		slog.Duration("duration", res.Duration),
		slog.Int64("ops", res.Ops()),
		slog.Int("violations", len(res.Violations)),
	)

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("stress run: %w", err)
	}

	return res, nil
}

func (r *run) violate(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.violations) < maxViolations {
		r.violations = append(r.violations, fmt.Sprintf(format, args...))
	}
}
