package registry

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/slotarray/pkg/observability"
)

type settings struct {
	logger   *slog.Logger
	metrics  *observability.SlotMetrics
	tracer   trace.Tracer
	capacity int
}

// Option configures a Registry.
type Option func(*settings)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records subscribe, unsubscribe and publish traffic and reports
// slot gauges under the registry name.
func WithMetrics(sm *observability.SlotMetrics) Option {
	return func(s *settings) {
		s.metrics = sm
	}
}

// WithTracer starts a span per Publish. Leave unset on hot paths unless
// verbose tracing is wanted.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *settings) {
		s.tracer = tracer
	}
}

// WithCapacity preallocates n subscriber slots.
func WithCapacity(n int) Option {
	return func(s *settings) {
		s.capacity = n
	}
}
