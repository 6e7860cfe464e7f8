package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	r.Get("/metrics", g.handleMetrics())

	// Everything else goes through auth when it is configured.
	r.Group(func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use((&authGuard{cfg: g.config.Auth, audit: g.audit, limiter: g.limiter, metrics: g.metrics}).middleware)
		}
		if g.mcp != nil {
			r.Handle(g.config.MCPPath, g.mcp.HTTPHandler(g.config.MCPPath, g.config.Stateless))
		}
		r.Get("/ws/audit", g.handleAuditStream())
		r.Get("/status", g.handleStatus())
		r.Route("/api", func(r chi.Router) {
			r.Get("/tools", g.handleListTools())
			r.Get("/modules", g.handleGetAllModules())
			r.Get("/config", g.handleGetConfig())
		})
	})

	return r
}
