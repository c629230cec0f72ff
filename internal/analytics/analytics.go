// Package analytics records product events in the analytics_events table.
// Events never carry raw goal or sub-goal text, only ids and sizes.
package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type CtxKey string

const (
	ctxUserIDKey CtxKey = "analytics_user_id"
)

// Server-side event names.
const (
	EventGoalDecomposed = "goal_decomposed"
	EventHistoryViewed  = "history_viewed"
	EventSubgoalUpdated = "subgoal_updated"
	EventSubgoalToggled = "subgoal_toggled"
	EventSessionDeleted = "goal_session_deleted"
	EventUserRegistered = "user_registered"
	EventUserLoggedIn   = "user_logged_in"
	EventAccountDeleted = "account_deleted"
)

var ErrNoUser = errors.New("analytics: event has no user")

// Envelope is what we store with every event.
type Envelope struct {
	UserID       int
	SessionID    string
	Platform     string
	AppVersion   string
	DeviceLocale string
	IPCountry    string
}

// FromRequest extracts the envelope from request headers. The user id is
// filled from the context when the auth middleware ran.
func FromRequest(r *http.Request) Envelope {
	platform := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Platform")))
	switch platform {
	case "ios", "android", "web":
	default:
		platform = "unknown"
	}

	locale := strings.TrimSpace(r.Header.Get("X-Device-Locale"))
	if locale == "" {
		locale = firstLanguage(r.Header.Get("Accept-Language"))
	}

	env := Envelope{
		SessionID:    strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Platform:     platform,
		AppVersion:   strings.TrimSpace(r.Header.Get("X-App-Version")),
		DeviceLocale: locale,
	}
	if uid, ok := UserIDFromContext(r.Context()); ok {
		env.UserID = uid
	}
	return env
}

func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (int, bool) {
	uid, ok := ctx.Value(ctxUserIDKey).(int)
	return uid, ok
}

// SourceEventKeyFromRequest returns the client idempotency key, if any.
// A repeated key is stored once.
func SourceEventKeyFromRequest(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("Idempotency-Key")); k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

// Log inserts one analytics event. Callers pass sanitized props and
// usually ignore the error; analytics must not break the main flow.
func Log(ctx context.Context, dbx *sql.DB, env Envelope, eventName string, props any, sourceEventKey string) error {
	if eventName == "" {
		return nil
	}

	userID := env.UserID
	if userID == 0 {
		uid, ok := UserIDFromContext(ctx)
		if !ok {
			return ErrNoUser
		}
		userID = uid
	}

	if props == nil {
		props = map[string]any{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("analytics: encode %s props: %w", eventName, err)
	}

	if env.Platform == "" {
		env.Platform = "unknown"
	}

	// NULL keys never conflict, so only keyed events are deduplicated
	_, err = dbx.ExecContext(ctx, `
		INSERT INTO analytics_events (
			event_name, event_time,
			user_id, session_id,
			platform, app_version, device_locale, ip_country,
			source_event_key,
			properties
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (source_event_key) DO NOTHING
	`, eventName, time.Now().UTC(),
		userID, nullIfEmpty(env.SessionID),
		env.Platform, env.AppVersion, nullIfEmpty(env.DeviceLocale), nullIfEmpty(env.IPCountry),
		nullIfEmpty(sourceEventKey),
		string(b),
	)
	if err != nil {
		return fmt.Errorf("analytics: insert %s: %w", eventName, err)
	}
	return nil
}

// DeleteUserEvents removes every event of a user inside tx.
func DeleteUserEvents(ctx context.Context, tx *sql.Tx, userID int) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM analytics_events WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("analytics: delete events: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// firstLanguage returns the first tag of an Accept-Language value.
func firstLanguage(h string) string {
	tag, _, _ := strings.Cut(h, ",")
	tag, _, _ = strings.Cut(tag, ";")
	return strings.TrimSpace(tag)
}
