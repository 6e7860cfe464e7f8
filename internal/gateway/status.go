package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/gasbox/internal/behavior"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime           int64           `json:"uptime_seconds"`
	Behavior         *behavior.State `json:"behavior,omitempty"`
	Tools            int             `json:"tools"`
	AuditListeners   int             `json:"audit_listeners"`
	AuditWriteErrors int64           `json:"audit_write_errors"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime: int64(time.Since(g.startedAt) / time.Second),
		}

		if g.controller != nil {
			state := g.controller.Snapshot()
			resp.Behavior = &state
		}
		if g.registry != nil {
			resp.Tools = g.registry.Len()
		}
		if g.audit != nil {
			resp.AuditListeners = g.audit.Subscribers()
			resp.AuditWriteErrors = g.audit.WriteErrors()
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
