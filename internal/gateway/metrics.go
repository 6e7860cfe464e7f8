package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// handleMetrics serves the Prometheus registry. Without metrics it
// answers 404 so scrapers notice the misconfiguration.
func (g *Gateway) handleMetrics() http.HandlerFunc {
	if g.metrics == nil {
		return http.NotFound
	}
	h := promhttp.HandlerFor(g.metrics.Registry(), promhttp.HandlerOpts{
		ErrorLog: errorLogger{g},
	})
	return h.ServeHTTP
}

// errorLogger routes promhttp errors to the gateway logger.
type errorLogger struct{ g *Gateway }

func (e errorLogger) Println(v ...any) {
	if e.g.logger != nil {
		e.g.logger.Error("metrics handler error", "detail", v)
	}
}
