package auth

import (
	"database/sql"
	"log/slog"
	"net/http"

	"goalsplit-backend/internal/analytics"
)

func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// tokens are stateless; dropping the cookie is all the server can do
		clearTokenCookie(w, r)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

// DeleteAccountHandler removes the user with their goal sessions and
// analytics events. Sub-goals go with their sessions. afterDelete, when
// set, runs once the transaction has committed.
func DeleteAccountHandler(dbx *sql.DB, log *slog.Logger, afterDelete func(userID int)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := r.Context()

		tx, err := dbx.BeginTx(ctx, nil)
		if err != nil {
			log.Error("begin account delete", "error", err)
			writeError(w, http.StatusInternalServerError, "db begin failed")
			return
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM goal_sessions WHERE user_id = $1`, uid); err != nil {
			log.Error("delete goal sessions", "user_id", uid, "error", err)
			writeError(w, http.StatusInternalServerError, "delete goal sessions failed")
			return
		}

		if err := analytics.DeleteUserEvents(ctx, tx, uid); err != nil {
			log.Error("delete analytics events", "user_id", uid, "error", err)
			writeError(w, http.StatusInternalServerError, "delete analytics events failed")
			return
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, uid)
		if err != nil {
			log.Error("delete user", "user_id", uid, "error", err)
			writeError(w, http.StatusInternalServerError, "delete user failed")
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		if err := tx.Commit(); err != nil {
			log.Error("commit account delete", "user_id", uid, "error", err)
			writeError(w, http.StatusInternalServerError, "db commit failed")
			return
		}

		if afterDelete != nil {
			afterDelete(uid)
		}

		log.Info("account deleted", "user_id", uid)
		clearTokenCookie(w, r)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
