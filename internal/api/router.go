// Package api wires the HTTP surface of the validator service: routing,
// request binding, error mapping, CORS, and request metrics.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/densematrix/idea-validator/internal/metrics"
)

// Config holds the HTTP surface settings.
type Config struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`
}

// Router assembles the service routes on a chi router. The ready handler
// backs the readiness probe and should check the service's dependencies
// (the database pool in production).
func Router(cfg Config, h *Handler, m *metrics.Metrics, ready http.HandlerFunc) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.AllowedOrigins))
	r.Use(metricsMiddleware(m))

	r.Get("/", h.handleRoot)
	r.Get("/health", h.handleHealth)
	r.Get("/health/ready", ready)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Post("/validate", h.handleValidate)
		v1.Get("/reports/{reportID}", h.handleGetReport)
		v1.Get("/tokens/status", h.handleTokenStatus)

		v1.Route("/payment", func(p chi.Router) {
			p.Post("/checkout", h.handleCheckout)
			p.Post("/webhook", h.handleWebhook)
			p.Get("/verify/{checkoutID}", h.handleVerifyPayment)
		})
	})

	return r
}
