package auth

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"goalsplit-backend/internal/analytics"
	"goalsplit-backend/internal/db"
)

const (
	minPasswordLen = 6
	maxCredentials = 4 << 10
)

type User struct {
	ID        int       `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var body credentials
	r.Body = http.MaxBytesReader(w, r.Body, maxCredentials)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, false
	}
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))
	return body, true
}

func RegisterHandler(dbx *sql.DB, tokens Tokens, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := decodeCredentials(w, r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Email == "" || body.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}
		if !strings.Contains(body.Email, "@") {
			writeError(w, http.StatusBadRequest, "invalid email")
			return
		}
		if len(body.Password) < minPasswordLen {
			writeError(w, http.StatusBadRequest, "password is too short")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error("hash password", "error", err)
			writeError(w, http.StatusInternalServerError, "registration failed")
			return
		}

		u := User{Email: body.Email, CreatedAt: time.Now().UTC()}
		err = dbx.QueryRowContext(r.Context(), `
			INSERT INTO users (email, password_hash, created_at)
			VALUES ($1, $2, $3)
			RETURNING id
		`, u.Email, string(hash), u.CreatedAt).Scan(&u.ID)
		if db.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		if err != nil {
			log.Error("insert user", "error", err)
			writeError(w, http.StatusInternalServerError, "registration failed")
			return
		}

		token, err := tokens.Issue(u.ID)
		if err != nil {
			log.Error("issue token", "error", err)
			writeError(w, http.StatusInternalServerError, "registration failed")
			return
		}
		setTokenCookie(w, r, token, tokens.ttl())

		env := analytics.FromRequest(r)
		env.UserID = u.ID
		_ = analytics.Log(r.Context(), dbx, env, analytics.EventUserRegistered, nil, analytics.SourceEventKeyFromRequest(r))

		writeJSON(w, http.StatusCreated, map[string]any{
			"user":  u,
			"token": token,
		})
	}
}

func LoginHandler(dbx *sql.DB, tokens Tokens, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := decodeCredentials(w, r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Email == "" || body.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		var (
			u    User
			hash string
		)
		err := dbx.QueryRowContext(r.Context(), `
			SELECT id, email, password_hash, created_at FROM users WHERE email = $1
		`, body.Email).Scan(&u.ID, &u.Email, &hash, &u.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		if err != nil {
			log.Error("load user", "error", err)
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(body.Password)) != nil {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}

		token, err := tokens.Issue(u.ID)
		if err != nil {
			log.Error("issue token", "error", err)
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}
		setTokenCookie(w, r, token, tokens.ttl())

		env := analytics.FromRequest(r)
		env.UserID = u.ID
		_ = analytics.Log(r.Context(), dbx, env, analytics.EventUserLoggedIn, nil, analytics.SourceEventKeyFromRequest(r))

		writeJSON(w, http.StatusOK, map[string]any{
			"user":  u,
			"token": token,
		})
	}
}

func MeHandler(dbx *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var u User
		err := dbx.QueryRowContext(r.Context(), `
			SELECT id, email, created_at FROM users WHERE id = $1
		`, uid).Scan(&u.ID, &u.Email, &u.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			// token outlived the account
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db error")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"user": u})
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
