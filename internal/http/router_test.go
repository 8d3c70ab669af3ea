package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/internal/metrics"
)

func newTestRouter(ready ReadyFunc, routes ...Routes) http.Handler {
	return NewRouter(RouterConfig{
		Service: "orders",
		Logger:  zap.NewNop(),
		Metrics: metrics.New("orders"),
		Ready:   ready,
	}, routes...)
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	r := newTestRouter(nil)

	for _, path := range []string{"/", "/health", "/health/live", "/health/ready"} {
		rec := do(t, r, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, map[string]string{"status": "ok", "service": "orders"}, decode[map[string]string](t, rec))
	}
}

func TestHealth_NotReady(t *testing.T) {
	r := newTestRouter(func(ctx context.Context) error { return errors.New("db down") })

	rec := do(t, r, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, r, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	rec := do(t, newTestRouter(nil), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRequestIDIsEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-abc")

	rec := do(t, newTestRouter(nil), req)
	assert.Equal(t, "req-abc", rec.Header().Get(middleware.RequestIDHeader))
}

func TestValidationMessage(t *testing.T) {
	_, ok := validationMessage(errors.New("plain"))
	assert.False(t, ok)
}

type traceEcho struct {
	seen trace.SpanContext
}

func (e *traceEcho) Mount(r chi.Router) {
	r.Post("/orders", func(w http.ResponseWriter, r *http.Request) {
		e.seen = trace.SpanContextFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	})
}

func TestRequestsGetServerSpan(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	echo := &traceEcho{}
	r := NewRouter(RouterConfig{Service: "orders", Logger: zap.NewNop(), Tracer: tp}, echo)

	rec := do(t, r, httptest.NewRequest(http.MethodPost, "/orders", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.True(t, echo.seen.IsValid())

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "POST /orders", ended[0].Name())
	assert.Equal(t, trace.SpanKindServer, ended[0].SpanKind())
	assert.Equal(t, echo.seen.TraceID(), ended[0].SpanContext().TraceID())
}
