package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// auditWriteTimeout bounds a single frame write to a slow listener.
const auditWriteTimeout = 5 * time.Second

// handleAuditStream upgrades to a WebSocket and streams every audit event
// as one JSON text frame. Events are dropped for a listener whose buffer is
// full; the stream itself never blocks tool invocations.
func (g *Gateway) handleAuditStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.audit == nil {
			http.Error(w, "audit stream not available", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Warn("audit stream upgrade failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		events, cancel := g.audit.Subscribe(g.config.AuditBuffer)
		defer cancel()
		g.metrics.AuditListeners(1)
		defer g.metrics.AuditListeners(-1)

		g.logger.Debug("audit listener connected", "remote_addr", r.RemoteAddr)

		// Listeners never send; CloseRead handles control frames and
		// cancels ctx once the peer goes away.
		ctx := conn.CloseRead(r.Context())
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			case ev, ok := <-events:
				if !ok {
					_ = conn.Close(websocket.StatusGoingAway, "audit stream closed")
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if err := writeFrame(ctx, conn, data); err != nil {
					g.logger.Debug("audit listener dropped", "error", err)
					return
				}
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
