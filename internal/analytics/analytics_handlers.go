package analytics

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

const maxClientEventBody = 8 << 10

// Client events the browser may report; other names are rejected.
var clientEvents = map[string]bool{
	"app_opened":             true,
	"history_opened":         true,
	"session_expanded":       true,
	"subgoal_copied":         true,
	"deadline_picker_opened": true,
}

// IsClientEvent reports whether name may be sent to ClientEventHandler.
func IsClientEvent(name string) bool {
	return clientEvents[name]
}

// ClientEventHandler stores one whitelisted event sent by the client:
// {"event": "app_opened", "properties": {...}}.
func ClientEventHandler(dbx *sql.DB, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}

		var body struct {
			Event      string         `json:"event"`
			Properties map[string]any `json:"properties"`
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxClientEventBody)
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
			return
		}

		name := strings.TrimSpace(body.Event)
		if !IsClientEvent(name) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown event"})
			return
		}

		env := FromRequest(r)
		env.UserID = uid
		if err := Log(r.Context(), dbx, env, name, body.Properties, SourceEventKeyFromRequest(r)); err != nil {
			log.Warn("client event not stored", "event", name, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "event not stored"})
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
