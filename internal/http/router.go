package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/internal/metrics"
)

// Routes is implemented by each service's handler.
type Routes interface {
	Mount(r chi.Router)
}

// ReadyFunc reports whether the service's dependencies are reachable.
type ReadyFunc func(ctx context.Context) error

type RouterConfig struct {
	Service string
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Ready   ReadyFunc

	// Tracer defaults to the global provider.
	Tracer trace.TracerProvider
}

func NewRouter(cfg RouterConfig, routes ...Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(serverSpan(cfg.Service, cfg.Tracer))
	r.Use(requestContext)
	r.Use(accessLog(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := &healthHandler{service: cfg.Service, ready: cfg.Ready}
	r.Get("/", health.Live)
	r.Get("/health", health.Live)
	r.Get("/health/live", health.Live)
	r.Get("/health/ready", health.Ready)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	for _, rt := range routes {
		rt.Mount(r)
	}
	return r
}

type healthHandler struct {
	service string
	ready   ReadyFunc
}

func (h *healthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": h.service})
}

func (h *healthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "service": h.service})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": h.service})
}
