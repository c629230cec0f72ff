package goals

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"goalsplit-backend/internal/ai"
	"goalsplit-backend/internal/analytics"
	"goalsplit-backend/internal/auth"
)

const maxGoalBody = 16 << 10

// Decomposer turns a goal into sub-goals. It never fails; the
// orchestrator falls back to the heuristic.
type Decomposer interface {
	Decompose(ctx context.Context, goal string) ai.Result
}

// Handlers serves the goal and sub-goal endpoints.
type Handlers struct {
	Store        *Store
	Decomposer   Decomposer
	DB           *sql.DB
	Log          *slog.Logger
	HistoryLimit int
}

func (h *Handlers) DecomposeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var body struct {
			Goal *string `json:"goal"`
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxGoalBody)
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Goal == nil || strings.TrimSpace(*body.Goal) == "" {
			writeError(w, http.StatusBadRequest, "goal is required and must be a non-empty string")
			return
		}
		goal := strings.TrimSpace(*body.Goal)

		res := h.Decomposer.Decompose(r.Context(), goal)

		sess, err := h.Store.CreateSession(r.Context(), &uid, goal, res.Subgoals, res.Meta)
		if err != nil {
			h.fail(w, "create session", err)
			return
		}

		// analytics: never the raw goal text
		env := analytics.FromRequest(r)
		env.UserID = uid
		props := map[string]any{
			"session_id":     sess.ID,
			"goal_len":       len([]rune(goal)),
			"subgoal_count":  len(sess.Subgoals),
			"source":         res.Meta.Source,
			"model":          res.Meta.Model,
			"fallback_count": res.Meta.Fallback,
		}
		h.track(r, env, analytics.EventGoalDecomposed, props)

		writeJSON(w, http.StatusCreated, sess)
	}
}

func (h *Handlers) HistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		limit := h.HistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		history, err := h.Store.History(r.Context(), uid, limit)
		if err != nil {
			h.fail(w, "history", err)
			return
		}

		env := analytics.FromRequest(r)
		env.UserID = uid
		h.track(r, env, analytics.EventHistoryViewed, map[string]any{"session_count": len(history)})

		writeJSON(w, http.StatusOK, map[string]any{"history": history})
	}
}

func (h *Handlers) DeleteSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		id := r.PathValue("id")
		if err := h.Store.DeleteSession(r.Context(), id, uid); err != nil {
			h.fail(w, "delete session", err)
			return
		}

		env := analytics.FromRequest(r)
		env.UserID = uid
		h.track(r, env, analytics.EventSessionDeleted, map[string]any{"session_id": id})

		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) UpdateSubgoalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var body map[string]json.RawMessage
		r.Body = http.MaxBytesReader(w, r.Body, maxGoalBody)
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		patch, err := ParseSubgoalPatch(body)
		if err != nil {
			h.fail(w, "parse patch", err)
			return
		}

		sg, err := h.Store.UpdateSubgoal(r.Context(), r.PathValue("id"), uid, patch)
		if err != nil {
			h.fail(w, "update subgoal", err)
			return
		}

		env := analytics.FromRequest(r)
		env.UserID = uid
		h.track(r, env, analytics.EventSubgoalUpdated, map[string]any{
			"subgoal_id":       sg.ID,
			"title_changed":    patch.Title != nil,
			"deadline_changed": patch.SetDeadline,
			"has_deadline":     sg.Deadline != nil,
			"is_completed":     sg.IsCompleted,
		})

		writeJSON(w, http.StatusOK, map[string]any{"subgoal": sg})
	}
}

func (h *Handlers) ToggleSubgoalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		sg, err := h.Store.ToggleSubgoal(r.Context(), r.PathValue("id"), uid)
		if err != nil {
			h.fail(w, "toggle subgoal", err)
			return
		}

		env := analytics.FromRequest(r)
		env.UserID = uid
		h.track(r, env, analytics.EventSubgoalToggled, map[string]any{
			"subgoal_id":   sg.ID,
			"is_completed": sg.IsCompleted,
		})

		writeJSON(w, http.StatusOK, map[string]any{"subgoal": sg})
	}
}

// fail maps store errors to responses. Storage details stay in the log.
func (h *Handlers) fail(w http.ResponseWriter, op string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Msg)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		h.Log.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "unexpected server error")
	}
}

func (h *Handlers) track(r *http.Request, env analytics.Envelope, event string, props map[string]any) {
	if err := analytics.Log(r.Context(), h.DB, env, event, props, analytics.SourceEventKeyFromRequest(r)); err != nil {
		h.Log.Debug("analytics event dropped", "event", event, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
