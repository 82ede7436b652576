package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/slotarray/pkg/observability"
)

// filteredProvider returns a tracer provider whose spans pass through the
// attribute filter into exporter.
func filteredProvider(exporter *tracetest.InMemoryExporter, logger *slog.Logger) *sdktrace.TracerProvider {
	filter := observability.NewAttributeFilter(sdktrace.NewSimpleSpanProcessor(exporter), logger)

	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(filter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
}

func TestAttributeFilter_AllowsKnownKeys(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := filteredProvider(exporter, nil)

	_, span := tp.Tracer("test").Start(context.Background(), "publish")
	span.SetAttributes(
		attribute.String("registry.name", "orders"),
		attribute.Int("registry.delivered", 12),
		attribute.Int("stress.workers", 8),
		attribute.String("http.request.method", "GET"),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	attrs := spanAttrMap(spans[0])
	assert.Equal(t, "orders", attrs["registry.name"])
	assert.Equal(t, int64(12), attrs["registry.delivered"])
	assert.Equal(t, int64(8), attrs["stress.workers"])
	assert.Equal(t, "GET", attrs["http.request.method"])
}

func TestAttributeFilter_BlocksPayloads(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := filteredProvider(exporter, nil)

	_, span := tp.Tracer("test").Start(context.Background(), "publish")
	span.SetAttributes(
		attribute.String("registry.payload", "{\"card\":\"4111\"}"),
		attribute.Int("registry.value", 7),
		attribute.String("payload", "secret"),
		attribute.String("user.id", "12345"),
		attribute.String("email", "bob@example.com"),
		attribute.String("unknown.key", "x"),
		attribute.String("error.type", "disposed"),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	attrs := spanAttrMap(spans[0])
	assert.NotContains(t, attrs, "registry.payload")
	assert.NotContains(t, attrs, "registry.value")
	assert.NotContains(t, attrs, "payload")
	assert.NotContains(t, attrs, "user.id")
	assert.NotContains(t, attrs, "email")
	assert.NotContains(t, attrs, "unknown.key")
	assert.Equal(t, "disposed", attrs["error.type"])
}

func TestAttributeFilter_WarnsWithLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	exporter := tracetest.NewInMemoryExporter()
	tp := filteredProvider(exporter, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(attribute.String("user.secret", "val"))
	span.End()

	assert.Contains(t, buf.String(), "user.secret")
	assert.Contains(t, buf.String(), "span attribute dropped")
}

func TestAttributeFilter_ReportsEachKeyOnce(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	exporter := tracetest.NewInMemoryExporter()
	tp := filteredProvider(exporter, slog.New(slog.NewTextHandler(&buf, nil)))

	for range 3 {
		_, span := tp.Tracer("test").Start(context.Background(), "op")
		span.SetAttributes(attribute.String("slots.capacity", "64"))
		span.End()
	}

	assert.Len(t, exporter.GetSpans(), 3)
	assert.Equal(t, 1, strings.Count(buf.String(), "slots.capacity"))
}

func TestAttributeFilter_ShutdownAndFlush(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	filter := observability.NewAttributeFilter(sdktrace.NewSimpleSpanProcessor(exporter), nil)

	require.NoError(t, filter.ForceFlush(context.Background()))
	require.NoError(t, filter.Shutdown(context.Background()))
}

// spanAttrMap converts a span's attributes into a map for easy assertion.
func spanAttrMap(s tracetest.SpanStub) map[string]any {
	m := make(map[string]any, len(s.Attributes))
	for _, a := range s.Attributes {
		m[string(a.Key)] = a.Value.AsInterface()
	}

	return m
}
