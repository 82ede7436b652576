package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/slotarray/pkg/observability"
)

var errTestClosed = errors.New("registry closed")

func serveHealth(t *testing.T, handler http.Handler, path string) (int, map[string]string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return rec.Code, body
}

func passing(name string) observability.ReadyCheck {
	return observability.ReadyCheck{Name: name, Check: func(context.Context) error { return nil }}
}

func TestHealthHandler_ReturnsOK(t *testing.T) {
	t.Parallel()

	code, body := serveHealth(t, observability.HealthHandler(), "/healthz")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestReadyHandler_AllChecksPass(t *testing.T) {
	t.Parallel()

	code, body := serveHealth(t, observability.ReadyHandler(passing("a"), passing("b")), "/readyz")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]string{"status": "ok"}, body)
}

func TestReadyHandler_NoChecks(t *testing.T) {
	t.Parallel()

	code, _ := serveHealth(t, observability.ReadyHandler(), "/readyz")

	assert.Equal(t, http.StatusOK, code)
}

func TestReadyHandler_CheckFails(t *testing.T) {
	t.Parallel()

	failing := observability.ReadyCheck{
		Name:  "registry",
		Check: func(context.Context) error { return errTestClosed },
	}

	code, body := serveHealth(t, observability.ReadyHandler(passing("a"), failing), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", body["status"])
	assert.Equal(t, "registry", body["check"])
	assert.Equal(t, errTestClosed.Error(), body["error"])
}

func TestDiagnosticsServer_Endpoints(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(rw, "slots 1\n")
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := observability.NewDiagnosticsServer("127.0.0.1:0",
		nooptrace.NewTracerProvider().Tracer("test"), metrics, logger, passing("registry"))
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, srv.Close(context.Background())) })

	base := "http://" + srv.Addr()

	for path, want := range map[string]string{
		"/healthz": `"status":"ok"`,
		"/readyz":  `"status":"ok"`,
		"/metrics": "slots 1",
	} {
		req, reqErr := http.NewRequestWithContext(context.Background(), http.MethodGet, base+path, http.NoBody)
		require.NoError(t, reqErr)

		resp, getErr := http.DefaultClient.Do(req)
		require.NoError(t, getErr)

		body, readErr := io.ReadAll(resp.Body)
		require.NoError(t, readErr)
		require.NoError(t, resp.Body.Close())

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, string(body), want, path)
	}
}

func TestDiagnosticsServer_ListenError(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := observability.NewDiagnosticsServer("256.0.0.1:bad",
		nooptrace.NewTracerProvider().Tracer("test"), http.NotFoundHandler(), logger)
	require.Error(t, err)
}
