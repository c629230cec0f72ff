package db

type migration struct {
	version int
	stmts   []string
}

func migrations(d Dialect) []migration {
	if d == Postgres {
		return postgresMigrations
	}
	return sqliteMigrations
}

var postgresMigrations = []migration{
	{1, []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            SERIAL PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS goal_sessions (
			id         TEXT PRIMARY KEY,
			user_id    INTEGER REFERENCES users(id) ON DELETE SET NULL,
			goal       TEXT NOT NULL,
			meta_json  JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_goal_sessions_user ON goal_sessions(user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS subgoals (
			id              TEXT PRIMARY KEY,
			goal_session_id TEXT NOT NULL REFERENCES goal_sessions(id) ON DELETE CASCADE,
			position        INTEGER NOT NULL,
			title           TEXT NOT NULL,
			original_title  TEXT,
			deadline        TIMESTAMPTZ,
			is_completed    BOOLEAN NOT NULL DEFAULT FALSE,
			created_at      TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subgoals_session ON subgoals(goal_session_id, position)`,
	}},
	{2, []string{
		`CREATE TABLE IF NOT EXISTS analytics_events (
			id               BIGSERIAL PRIMARY KEY,
			event_name       TEXT NOT NULL,
			event_time       TIMESTAMPTZ NOT NULL,
			user_id          INTEGER,
			session_id       TEXT,
			platform         TEXT NOT NULL DEFAULT 'unknown',
			app_version      TEXT NOT NULL DEFAULT '',
			device_locale    TEXT,
			ip_country       TEXT,
			source_event_key TEXT UNIQUE,
			properties       JSONB NOT NULL DEFAULT '{}'::jsonb
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_events_user ON analytics_events(user_id, event_time)`,
	}},
}

var sqliteMigrations = []migration{
	{1, []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS goal_sessions (
			id         TEXT PRIMARY KEY,
			user_id    INTEGER REFERENCES users(id) ON DELETE SET NULL,
			goal       TEXT NOT NULL,
			meta_json  TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_goal_sessions_user ON goal_sessions(user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS subgoals (
			id              TEXT PRIMARY KEY,
			goal_session_id TEXT NOT NULL REFERENCES goal_sessions(id) ON DELETE CASCADE,
			position        INTEGER NOT NULL,
			title           TEXT NOT NULL,
			original_title  TEXT,
			deadline        TIMESTAMP,
			is_completed    BOOLEAN NOT NULL DEFAULT 0,
			created_at      TIMESTAMP NOT NULL,
			updated_at      TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subgoals_session ON subgoals(goal_session_id, position)`,
	}},
	{2, []string{
		`CREATE TABLE IF NOT EXISTS analytics_events (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			event_name       TEXT NOT NULL,
			event_time       TIMESTAMP NOT NULL,
			user_id          INTEGER,
			session_id       TEXT,
			platform         TEXT NOT NULL DEFAULT 'unknown',
			app_version      TEXT NOT NULL DEFAULT '',
			device_locale    TEXT,
			ip_country       TEXT,
			source_event_key TEXT UNIQUE,
			properties       TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_events_user ON analytics_events(user_id, event_time)`,
	}},
}
