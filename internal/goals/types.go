package goals

import (
	"time"

	"goalsplit-backend/internal/ai"
)

type GoalSession struct {
	ID        string    `json:"id"`
	OwnerID   *int      `json:"-"`
	Goal      string    `json:"goal"`
	Meta      ai.Meta   `json:"meta"`
	CreatedAt time.Time `json:"created_at"`
	Subgoals  []SubGoal `json:"subgoals"`
}

type SubGoal struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"goal_session_id"`
	Position      int        `json:"-"`
	Title         string     `json:"title"`
	OriginalTitle string     `json:"original_title"`
	Deadline      *time.Time `json:"deadline"`
	IsCompleted   bool       `json:"is_completed"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SubgoalPatch is a partial update. Nil fields are left unchanged;
// SetDeadline with a nil Deadline clears the deadline.
type SubgoalPatch struct {
	Title       *string
	SetDeadline bool
	Deadline    *time.Time
	IsCompleted *bool
}

func (p SubgoalPatch) Empty() bool {
	return p.Title == nil && !p.SetDeadline && p.IsCompleted == nil
}
