package gateway

import (
	"net/http"

	"github.com/flemzord/gasbox/internal/behavior"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string        `json:"status"` // "ok" or "degraded"
	Mode   behavior.Mode `json:"mode,omitempty"`
	Tools  int           `json:"tools"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 503 when no tool is registered, since there is nothing to serve.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.controller != nil {
			resp.Mode = g.controller.Snapshot().Mode
		}
		if g.registry != nil {
			resp.Tools = g.registry.Len()
		}

		code := http.StatusOK
		if resp.Tools == 0 {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
