package goals

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"goalsplit-backend/internal/ai"
	"goalsplit-backend/internal/db"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

const subgoalColumns = `s.id, s.goal_session_id, s.position, s.title, COALESCE(s.original_title, s.title),
	s.deadline, s.is_completed, s.created_at, s.updated_at`

// Store persists goal sessions and their sub-goals.
type Store struct {
	db      *sql.DB
	dialect db.Dialect
	now     func() time.Time
	cache   *historyCache

	// AllowOrphanEdits lets any caller modify sub-goals of sessions that
	// have no owner (anonymous or legacy rows).
	AllowOrphanEdits bool
}

// NewStore returns a store over d. History pages are cached per owner for
// historyTTL; zero disables the cache.
func NewStore(d *db.DB, historyTTL time.Duration) *Store {
	return &Store{
		db:      d.DB,
		dialect: d.Dialect,
		now:     time.Now,
		cache:   newHistoryCache(historyTTL),
	}
}

// CreateSession writes the session and all of its sub-goals in one
// transaction. Blank titles are skipped; if none remain nothing is written.
func (s *Store) CreateSession(ctx context.Context, owner *int, goal string, titles []string, meta ai.Meta) (GoalSession, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return GoalSession{}, invalid("goal is required")
	}

	clean := ai.Normalize(titles, 0)
	if len(clean) == 0 {
		return GoalSession{}, ErrEmptyDecomposition
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return GoalSession{}, storageErr("encode meta", err)
	}

	now := s.now().UTC()
	sess := GoalSession{
		ID:        uuid.NewString(),
		OwnerID:   owner,
		Goal:      goal,
		Meta:      meta,
		CreatedAt: now,
		Subgoals:  make([]SubGoal, 0, len(clean)),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return GoalSession{}, storageErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO goal_sessions (id, user_id, goal, meta_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, sess.ID, nullableOwner(owner), goal, string(metaJSON), now); err != nil {
		return GoalSession{}, storageErr("insert session", err)
	}

	for i, title := range clean {
		sg := SubGoal{
			ID:            uuid.NewString(),
			SessionID:     sess.ID,
			Position:      i,
			Title:         title,
			OriginalTitle: title,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subgoals (id, goal_session_id, position, title, original_title, deadline, is_completed, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4, NULL, FALSE, $5, $5)
		`, sg.ID, sess.ID, i, title, now); err != nil {
			return GoalSession{}, storageErr("insert subgoal", err)
		}
		sess.Subgoals = append(sess.Subgoals, sg)
	}

	if err := tx.Commit(); err != nil {
		return GoalSession{}, storageErr("commit", err)
	}
	if owner != nil {
		s.cache.invalidate(*owner)
	}
	return sess, nil
}

// History returns the owner's sessions, newest first, each with its
// sub-goals in insertion order.
func (s *Store) History(ctx context.Context, owner int, limit int) ([]GoalSession, error) {
	limit = clampLimit(limit)

	if cached, ok := s.cache.get(owner, limit); ok {
		return cached, nil
	}
	gen := s.cache.generation(owner)
	history, err := s.loadHistory(ctx, owner, limit)
	if err != nil {
		return nil, err
	}
	s.cache.put(owner, gen, limit, history)
	return history, nil
}

// Invalidate drops the owner's cached history. Writes made through the
// Store do this themselves; callers that delete rows directly must call it.
func (s *Store) Invalidate(owner int) {
	s.cache.invalidate(owner)
}

func (s *Store) loadHistory(ctx context.Context, owner int, limit int) ([]GoalSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, goal, meta_json, created_at
		FROM goal_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, owner, limit)
	if err != nil {
		return nil, storageErr("query sessions", err)
	}
	defer rows.Close()

	history := []GoalSession{}
	index := map[string]int{}
	for rows.Next() {
		var (
			gs      GoalSession
			rawMeta []byte
		)
		if err := rows.Scan(&gs.ID, &gs.Goal, &rawMeta, &gs.CreatedAt); err != nil {
			return nil, storageErr("scan session", err)
		}
		// a corrupt meta blob should not hide the session
		_ = json.Unmarshal(rawMeta, &gs.Meta)
		o := owner
		gs.OwnerID = &o
		gs.Subgoals = []SubGoal{}
		index[gs.ID] = len(history)
		history = append(history, gs)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate sessions", err)
	}
	if len(history) == 0 {
		return history, nil
	}

	subRows, err := s.db.QueryContext(ctx, `
		SELECT `+subgoalColumns+`
		FROM subgoals s
		WHERE s.goal_session_id IN (
			SELECT id FROM goal_sessions
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		)
		ORDER BY s.goal_session_id, s.position
	`, owner, limit)
	if err != nil {
		return nil, storageErr("query subgoals", err)
	}
	defer subRows.Close()

	for subRows.Next() {
		sg, err := scanSubgoal(subRows)
		if err != nil {
			return nil, storageErr("scan subgoal", err)
		}
		// sessions created after the first query are not in the page
		if i, ok := index[sg.SessionID]; ok {
			history[i].Subgoals = append(history[i].Subgoals, sg)
		}
	}
	if err := subRows.Err(); err != nil {
		return nil, storageErr("iterate subgoals", err)
	}

	return history, nil
}

// UpdateSubgoal applies a partial update and bumps updated_at. Sub-goals
// of other users' sessions report ErrNotFound.
func (s *Store) UpdateSubgoal(ctx context.Context, id string, owner int, patch SubgoalPatch) (SubGoal, error) {
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return SubGoal{}, invalid("title must not be empty")
		}
		patch.Title = &t
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SubGoal{}, storageErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.authorize(ctx, tx, id, owner); err != nil {
		return SubGoal{}, err
	}

	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.SetDeadline {
		if patch.Deadline == nil {
			set("deadline", nil)
		} else {
			set("deadline", patch.Deadline.UTC())
		}
	}
	if patch.IsCompleted != nil {
		set("is_completed", *patch.IsCompleted)
	}
	set("updated_at", s.now().UTC())
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE subgoals SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return SubGoal{}, storageErr("update subgoal", err)
	}

	sg, err := s.finish(ctx, tx, id)
	if err == nil {
		s.cache.invalidate(owner)
	}
	return sg, err
}

// ToggleSubgoal flips the completion flag.
func (s *Store) ToggleSubgoal(ctx context.Context, id string, owner int) (SubGoal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SubGoal{}, storageErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.authorize(ctx, tx, id, owner); err != nil {
		return SubGoal{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE subgoals
		SET is_completed = NOT is_completed, updated_at = $1
		WHERE id = $2
	`, s.now().UTC(), id); err != nil {
		return SubGoal{}, storageErr("toggle subgoal", err)
	}

	sg, err := s.finish(ctx, tx, id)
	if err == nil {
		s.cache.invalidate(owner)
	}
	return sg, err
}

// DeleteSession removes an owned session; its sub-goals cascade.
func (s *Store) DeleteSession(ctx context.Context, id string, owner int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM goal_sessions WHERE id = $1 AND user_id = $2`, id, owner)
	if err != nil {
		return storageErr("delete session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete session", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.cache.invalidate(owner)
	return nil
}

// GetSubgoal reads one sub-goal visible to owner.
func (s *Store) GetSubgoal(ctx context.Context, id string, owner int) (SubGoal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SubGoal{}, storageErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.authorize(ctx, tx, id, owner); err != nil {
		return SubGoal{}, err
	}
	return s.finish(ctx, tx, id)
}

// authorize checks, inside tx, that owner may modify the sub-goal. On
// Postgres the sub-goal row stays locked until tx ends.
func (s *Store) authorize(ctx context.Context, tx *sql.Tx, id string, owner int) error {
	var sessionOwner sql.NullInt64
	err := tx.QueryRowContext(ctx, `
		SELECT gs.user_id
		FROM subgoals s
		JOIN goal_sessions gs ON gs.id = s.goal_session_id
		WHERE s.id = $1`+s.dialect.ForUpdate(), id).Scan(&sessionOwner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return storageErr("load subgoal owner", err)
	}

	if !sessionOwner.Valid {
		if s.AllowOrphanEdits {
			return nil
		}
		return ErrNotFound
	}
	if sessionOwner.Int64 != int64(owner) {
		return ErrNotFound
	}
	return nil
}

func (s *Store) finish(ctx context.Context, tx *sql.Tx, id string) (SubGoal, error) {
	sg, err := scanSubgoal(tx.QueryRowContext(ctx, `SELECT `+subgoalColumns+` FROM subgoals s WHERE s.id = $1`, id))
	if err != nil {
		return SubGoal{}, storageErr("reload subgoal", err)
	}
	if err := tx.Commit(); err != nil {
		return SubGoal{}, storageErr("commit", err)
	}
	return sg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubgoal(r rowScanner) (SubGoal, error) {
	var (
		sg       SubGoal
		deadline sql.NullTime
	)
	if err := r.Scan(
		&sg.ID,
		&sg.SessionID,
		&sg.Position,
		&sg.Title,
		&sg.OriginalTitle,
		&deadline,
		&sg.IsCompleted,
		&sg.CreatedAt,
		&sg.UpdatedAt,
	); err != nil {
		return SubGoal{}, err
	}
	if deadline.Valid {
		d := deadline.Time.UTC()
		sg.Deadline = &d
	}
	return sg, nil
}

func nullableOwner(owner *int) sql.NullInt64 {
	if owner == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*owner), Valid: true}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return limit
}
