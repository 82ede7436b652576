package observability

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ResourceFor exposes newResource for tests.
func ResourceFor(cfg Config) *resource.Resource { return newResource(cfg) }

// SamplesRoot reports whether the sampler chosen for cfg records a root span.
func SamplesRoot(cfg Config) bool {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(newSampler(cfg)))

	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("sampler").Start(context.Background(), "root")
	defer span.End()

	return span.SpanContext().IsSampled()
}
