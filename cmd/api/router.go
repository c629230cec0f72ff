package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"goalsplit-backend/internal/analytics"
	"goalsplit-backend/internal/auth"
	"goalsplit-backend/internal/config"
	"goalsplit-backend/internal/db"
	"goalsplit-backend/internal/goals"
	"goalsplit-backend/internal/logging"
)

func newRouter(cfg *config.Config, log *slog.Logger, database *db.DB, dec goals.Decomposer) http.Handler {
	tokens := auth.Tokens{Secret: []byte(cfg.JWTSecret), TTL: cfg.TokenTTL}
	authMW := auth.New(tokens)

	store := goals.NewStore(database, cfg.HistoryCacheTTL)
	store.AllowOrphanEdits = cfg.AllowOrphanEdits

	h := &goals.Handlers{
		Store:        store,
		Decomposer:   dec,
		DB:           database.DB,
		Log:          log,
		HistoryLimit: cfg.HistoryLimit,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	// auth
	mux.HandleFunc("POST /api/auth/register", auth.RegisterHandler(database.DB, tokens, log))
	mux.HandleFunc("POST /api/auth/login", auth.LoginHandler(database.DB, tokens, log))
	mux.HandleFunc("POST /api/auth/logout", auth.LogoutHandler())
	mux.HandleFunc("GET /api/auth/me", authMW.Wrap(auth.MeHandler(database.DB)))
	mux.HandleFunc("DELETE /api/auth/account", authMW.Wrap(auth.DeleteAccountHandler(database.DB, log, store.Invalidate)))

	// goals
	mux.HandleFunc("POST /api/goals/decompose", authMW.Wrap(h.DecomposeHandler()))
	mux.HandleFunc("GET /api/goals/history", authMW.Wrap(h.HistoryHandler()))
	mux.HandleFunc("DELETE /api/goals/{id}", authMW.Wrap(h.DeleteSessionHandler()))
	mux.HandleFunc("PATCH /api/subgoals/{id}", authMW.Wrap(h.UpdateSubgoalHandler()))
	mux.HandleFunc("POST /api/subgoals/{id}/toggle", authMW.Wrap(h.ToggleSubgoalHandler()))

	// analytics
	mux.HandleFunc("POST /api/events", authMW.Wrap(analytics.ClientEventHandler(database.DB, log)))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Platform", "X-App-Version", "X-Session-Id", "X-Device-Locale"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	})

	return logging.Middleware(log, c.Handler(mux))
}
