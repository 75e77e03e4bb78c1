// Package api serves the coverage and heatmap engines over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/sells-group/coverage-cli/internal/monitoring"
)

// HandlerOption configures NewHandler.
type HandlerOption func(*handler)

// WithMetrics records request metrics in m and serves gatherer on /metrics.
func WithMetrics(m *monitoring.Metrics, gatherer prometheus.Gatherer) HandlerOption {
	return func(h *handler) {
		h.metrics = m
		h.gatherer = gatherer
	}
}

// WithCORSOrigins restricts cross-origin requests to origins. All origins are
// allowed by default.
func WithCORSOrigins(origins []string) HandlerOption {
	return func(h *handler) { h.origins = origins }
}

// WithRateLimit caps /api requests at perSecond with the given burst. A
// non-positive rate leaves requests unlimited.
func WithRateLimit(perSecond float64, burst int) HandlerOption {
	return func(h *handler) {
		if perSecond <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

type handler struct {
	svc      *Service
	metrics  *monitoring.Metrics
	gatherer prometheus.Gatherer
	origins  []string
	limiter  *rate.Limiter
}

// NewHandler returns the HTTP routes of svc.
func NewHandler(svc *Service, opts ...HandlerOption) http.Handler {
	h := &handler{svc: svc}
	for _, o := range opts {
		o(h)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(h.origins))
	r.Use(requestMetrics(h.metrics))

	r.Get("/health", h.health)
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		if h.limiter != nil {
			r.Use(rateLimit(h.limiter))
		}
		r.Get("/initial-data", h.initialData)
		r.Get("/map-data", h.mapData)
		r.Get("/coverage-grid", h.coverageGrid)
		r.Get("/heatmap", h.heatmap)
		r.Get("/polygons", h.polygons)
	})
	return r
}
