package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Prometheus is a pull-based metrics destination: instruments from the
// meter provider Reader is attached to are gathered into a private registry
// served by Handler.
type Prometheus struct {
	// Handler serves the /metrics scrape endpoint.
	Handler http.Handler

	// Reader is passed to Init through WithMetricReader.
	Reader sdkmetric.Reader
}

// NewPrometheus creates an independent registry (Go runtime and process
// collectors included). Each call builds its own registry so repeated calls
// never conflict on collector registration.
func NewPrometheus() (*Prometheus, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &Prometheus{
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Reader:  exporter,
	}, nil
}
