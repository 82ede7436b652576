package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// diagnosticsReadHeaderTimeout bounds header reads on diagnostics endpoints.
const diagnosticsReadHeaderTimeout = 5 * time.Second

// DiagnosticsServer exposes /healthz, /readyz and /metrics over HTTP while a
// run is in progress.
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener
}

// NewDiagnosticsServer starts serving at addr. metrics is mounted at /metrics
// behind HTTPMiddleware; checks back /readyz. Use ":0" for an ephemeral port
// and read it back with Addr.
func NewDiagnosticsServer(
	addr string, tracer trace.Tracer, metrics http.Handler, logger *slog.Logger, checks ...ReadyCheck,
) (*DiagnosticsServer, error) {
	mux := http.NewServeMux()

	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/readyz", ReadyHandler(checks...))
	mux.Handle("/metrics", HTTPMiddleware(tracer, metrics))

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: diagnosticsReadHeaderTimeout}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("diagnostics server stopped", slog.Any("error", serveErr))
		}
	}()

	logger.Info("serving diagnostics", slog.String("addr", listener.Addr().String()))

	return &DiagnosticsServer{server: srv, listener: listener}, nil
}

// Addr returns the address the server is listening on.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// Close gracefully shuts down the server, waiting for in-flight scrapes
// until ctx is done.
func (d *DiagnosticsServer) Close(ctx context.Context) error {
	err := d.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", err)
	}

	return nil
}
