// internal/api/router.go
package api

import (
	"net/http"
	"time"

	"car-advisor/internal/common/logger"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	CORSAllowedOrigins []string
	// RateLimitRequests per RateLimitWindow and client IP on /api. 0 disables limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter mounts the advisor API, health probes and metrics.
func NewRouter(h *Handler, cfg RouterConfig, log logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger(log.With(map[string]interface{}{"component": "http"})))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", SessionHeader},
		ExposedHeaders: []string{SessionHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimitRequests > 0 {
			r.Use(httprate.Limit(cfg.RateLimitRequests, cfg.RateLimitWindow, httprate.WithKeyFuncs(httprate.KeyByIP)))
		}
		r.Use(Session)

		r.Route("/cars", func(r chi.Router) {
			r.Post("/search", h.Search)
			r.Post("/refine", h.Refine)
			r.Post("/ask", h.Ask)
			r.Post("/alternatives", h.Alternatives)
			r.Post("/compare", h.Compare)
		})
		r.Get("/conversations/{sessionId}", h.GetConversation)
		r.Delete("/conversations/{sessionId}", h.DeleteConversation)
	})

	return r
}
