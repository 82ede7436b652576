package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const (
	// instrumentationName names the tracer and meter handed to registries
	// and the stress driver.
	instrumentationName = "github.com/Sumatoshi-tech/slotarray"

	// shutdownTimeout bounds the final flush of every exporter.
	shutdownTimeout = 5 * time.Second
)

// Providers holds what one slotbench process reports through.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	// TraceVerbose mirrors Config.TraceVerbose so callers can decide whether
	// to hand Tracer to the publish path.
	TraceVerbose bool

	// Shutdown flushes span processors and metric readers. It is safe to
	// call more than once.
	Shutdown func(ctx context.Context) error
}

// Option adds a destination to the providers built by Init.
type Option func(*pipeline)

// pipeline collects the destinations before the providers are built.
type pipeline struct {
	logOut  io.Writer
	spans   []sdktrace.SpanProcessor
	readers []sdkmetric.Reader
}

// WithLogWriter sends log records to w instead of stderr.
func WithLogWriter(w io.Writer) Option {
	return func(p *pipeline) { p.logOut = w }
}

// WithSpanExporter exports each span to exp as soon as it ends.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(p *pipeline) {
		p.spans = append(p.spans, sdktrace.NewSimpleSpanProcessor(exp))
	}
}

// WithMetricReader adds r to the meter provider. The Prometheus pipeline
// and manual readers in tests attach this way.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(p *pipeline) { p.readers = append(p.readers, r) }
}

// Init builds the tracer, meter and logger for one process. Setting
// cfg.OTLPEndpoint adds gRPC export of spans and metrics. A signal with no
// destination gets a no-op provider.
func Init(cfg Config, opts ...Option) (Providers, error) {
	p := &pipeline{logOut: os.Stderr}

	for _, opt := range opts {
		opt(p)
	}

	if cfg.OTLPEndpoint != "" {
		err := p.addOTLP(context.Background(), cfg)
		if err != nil {
			return Providers{}, err
		}
	}

	logger := newLogger(cfg, p.logOut)
	res := newResource(cfg)

	var dropped *slog.Logger
	if cfg.DebugTrace {
		dropped = logger
	}

	tp, tpShutdown := p.tracerProvider(res, newSampler(cfg), dropped)
	mp, mpShutdown := p.meterProvider(res)

	// HTTPMiddleware continues traces of scrapers that send traceparent.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return Providers{
		Tracer:       tp.Tracer(instrumentationName),
		Meter:        mp.Meter(instrumentationName),
		Logger:       logger,
		TraceVerbose: cfg.TraceVerbose,
		Shutdown: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			return errors.Join(tpShutdown(ctx), mpShutdown(ctx))
		},
	}, nil
}

// addOTLP appends a batching span exporter and a periodic metric reader
// pointed at the collector.
func (p *pipeline) addOTLP(ctx context.Context, cfg Config) error {
	traceOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithHeaders(cfg.OTLPHeaders),
	}
	metricOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithHeaders(cfg.OTLPHeaders),
	}

	if cfg.OTLPInsecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	spanExp, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return fmt.Errorf("create otlp span exporter: %w", err)
	}

	metricExp, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return errors.Join(fmt.Errorf("create otlp metric exporter: %w", err), spanExp.Shutdown(ctx))
	}

	p.spans = append(p.spans, sdktrace.NewBatchSpanProcessor(spanExp))
	p.readers = append(p.readers, sdkmetric.NewPeriodicReader(metricExp))

	return nil
}

func (p *pipeline) tracerProvider(
	res *resource.Resource, sampler sdktrace.Sampler, dropped *slog.Logger,
) (trace.TracerProvider, func(context.Context) error) {
	if len(p.spans) == 0 {
		return nooptrace.NewTracerProvider(), func(context.Context) error { return nil }
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}

	for _, sp := range p.spans {
		opts = append(opts, sdktrace.WithSpanProcessor(NewAttributeFilter(sp, dropped)))
	}

	tp := sdktrace.NewTracerProvider(opts...)

	return tp, tp.Shutdown
}

func (p *pipeline) meterProvider(res *resource.Resource) (metric.MeterProvider, func(context.Context) error) {
	if len(p.readers) == 0 {
		return noopmetric.NewMeterProvider(), func(context.Context) error { return nil }
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	for _, r := range p.readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	mp := sdkmetric.NewMeterProvider(opts...)

	return mp, mp.Shutdown
}

// newSampler traces every run at ratio 1 or in debug mode and none at
// ratio 0. Spans under a sampled stress run follow their parent.
func newSampler(cfg Config) sdktrace.Sampler {
	switch {
	case cfg.DebugTrace, cfg.SampleRatio >= 1:
		return sdktrace.AlwaysSample()
	case cfg.SampleRatio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}
}

func newResource(cfg Config) *resource.Resource {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}

	if cfg.Mode != "" {
		attrs = append(attrs, attribute.String("app.mode", string(cfg.Mode)))
	}

	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func newLogger(cfg Config, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var inner slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(out, opts)
	}

	return slog.New(NewTracingHandler(inner, cfg.ServiceName, cfg.Environment, cfg.Mode))
}
