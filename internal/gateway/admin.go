package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/flemzord/gasbox/internal/core"
	"github.com/flemzord/gasbox/internal/security"
)

// toolJSON is a serializable tool registration.
type toolJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Scripted    bool            `json:"scripted"`
	Schema      json.RawMessage `json:"input_schema"`
}

// handleListTools lists registered tools in registration order.
func (g *Gateway) handleListTools() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		out := []toolJSON{}
		if g.registry != nil {
			for _, e := range g.registry.Entries() {
				_, scripted := e.Scripted()
				out = append(out, toolJSON{
					Name:        e.Name(),
					Description: e.Description(),
					Scripted:    scripted,
					Schema:      e.Schema(),
				})
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleGetAllModules lists all compiled modules (for /api/modules).
func (g *Gateway) handleGetAllModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleGetConfig returns the effective config with secrets redacted.
func (g *Gateway) handleGetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.effective == nil {
			http.Error(w, "config not available", http.StatusServiceUnavailable)
			return
		}

		raw, err := json.Marshal(g.effective)
		if err != nil {
			http.Error(w, "failed to serialize config", http.StatusInternalServerError)
			return
		}

		var generic map[string]any
		if err := json.Unmarshal(raw, &generic); err != nil {
			http.Error(w, "failed to parse config", http.StatusInternalServerError)
			return
		}

		redactor := g.redactor
		if redactor == nil {
			redactor = security.NewRedactor()
		}
		redactor.RedactMap(generic)

		writeJSON(w, http.StatusOK, generic)
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
