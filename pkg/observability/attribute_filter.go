package observability

import (
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanNamespaces are the attribute prefixes slotbench puts on spans. Keys
// outside them are dropped before export.
var spanNamespaces = []string{"registry.", "stress.", "http.", "error."}

// payloadKeys carry published values and never leave the process, even
// though they sit inside a namespace.
var payloadKeys = map[attribute.Key]bool{
	"registry.payload": true,
	"registry.value":   true,
}

// spanKeyAllowed reports whether key may be exported.
func spanKeyAllowed(key attribute.Key) bool {
	if payloadKeys[key] {
		return false
	}

	for _, ns := range spanNamespaces {
		if strings.HasPrefix(string(key), ns) {
			return true
		}
	}

	return key == "error"
}

// attributeFilter strips disallowed attributes from ended spans before the
// wrapped processor sees them.
type attributeFilter struct {
	sdktrace.SpanProcessor

	logger   *slog.Logger
	reported sync.Map // attribute.Key -> struct{}
}

// NewAttributeFilter wraps next so that only registry.*, stress.*, http.*
// and error.* attributes are exported; payload keys are always dropped.
// When logger is non-nil each dropped key is logged once at warn level.
func NewAttributeFilter(next sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &attributeFilter{SpanProcessor: next, logger: logger}
}

// OnEnd forwards s unchanged when every attribute is allowed and a filtered
// view of it otherwise.
func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	attrs := s.Attributes()
	kept := make([]attribute.KeyValue, 0, len(attrs))

	for _, kv := range attrs {
		if spanKeyAllowed(kv.Key) {
			kept = append(kept, kv)

			continue
		}

		f.report(s.Name(), kv.Key)
	}

	if len(kept) == len(attrs) {
		f.SpanProcessor.OnEnd(s)

		return
	}

	f.SpanProcessor.OnEnd(filteredSpan{ReadOnlySpan: s, attrs: kept})
}

func (f *attributeFilter) report(span string, key attribute.Key) {
	if f.logger == nil {
		return
	}

	if _, seen := f.reported.LoadOrStore(key, struct{}{}); seen {
		return
	}

	f.logger.Warn("span attribute dropped", slog.String("span", span), slog.String("key", string(key)))
}

// filteredSpan is s with its attributes replaced.
type filteredSpan struct {
	sdktrace.ReadOnlySpan

	attrs []attribute.KeyValue
}

func (s filteredSpan) Attributes() []attribute.KeyValue { return s.attrs }
