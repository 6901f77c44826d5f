package session

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/drillcoach/backend/internal/models"
)

// RecordStore is the keyed storage the core needs. The orchestrator has
// no knowledge of the underlying technology; the Postgres implementation
// below is one adapter.
type RecordStore interface {
	// GetUser loads per-user progression state, creating it with
	// defaults on first interaction.
	GetUser(ctx context.Context, userID int64) (*models.UserProgressionState, error)

	// PutUser atomically persists the user's progression state. Attempts
	// are append-only: entries beyond what is already stored are
	// inserted, existing history is never rewritten.
	PutUser(ctx context.Context, state *models.UserProgressionState) error

	// GetDrillPool returns catalog drills, filtered by category when one
	// is given.
	GetDrillPool(ctx context.Context, category string) ([]models.Drill, error)

	// GetDrill returns one catalog drill by id.
	GetDrill(ctx context.Context, drillID int64) (*models.Drill, error)

	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// MarkSessionCompleted transitions open → completed atomically.
	// Returns ErrSessionCompleted if the session was already completed
	// and ErrSessionNotFound for an unknown id.
	MarkSessionCompleted(ctx context.Context, sessionID string) error
}

// Store is the Postgres RecordStore.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ── User Progression State ──────────────────────────────

func (s *Store) GetUser(ctx context.Context, userID int64) (*models.UserProgressionState, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_progression (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert progression: %w", err)
	}

	state := &models.UserProgressionState{
		UserID:               userID,
		ConfidenceByCategory: map[string]float64{},
		ReinforcementQueues:  map[string][]int64{},
	}

	var totalXP int64
	err = s.db.QueryRowContext(ctx,
		`SELECT total_xp, current_streak, longest_streak, last_active_date, freeze_tokens
		 FROM user_progression WHERE user_id = $1`,
		userID,
	).Scan(&totalXP, &state.Streak.CurrentStreakDays, &state.Streak.LongestStreakDays,
		&state.Streak.LastActiveDate, &state.Streak.FreezeTokens)
	if err != nil {
		return nil, fmt.Errorf("get progression: %w", err)
	}
	state.XP = models.DeriveXPState(totalXP)

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, confidence FROM user_confidence WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get confidence: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var confidence float64
		if err := rows.Scan(&category, &confidence); err != nil {
			return nil, err
		}
		state.ConfidenceByCategory[category] = confidence
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	queueRows, err := s.db.QueryContext(ctx,
		`SELECT category, drill_id FROM reinforcement_queue
		 WHERE user_id = $1 ORDER BY category, position`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get reinforcement queue: %w", err)
	}
	defer queueRows.Close()
	for queueRows.Next() {
		var category string
		var drillID int64
		if err := queueRows.Scan(&category, &drillID); err != nil {
			return nil, err
		}
		state.ReinforcementQueues[category] = append(state.ReinforcementQueues[category], drillID)
	}
	if err := queueRows.Err(); err != nil {
		return nil, err
	}

	attemptRows, err := s.db.QueryContext(ctx,
		`SELECT drill_id, category, outcome, difficulty_score, tags, attempted_at
		 FROM attempt_history WHERE user_id = $1 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get attempts: %w", err)
	}
	defer attemptRows.Close()
	for attemptRows.Next() {
		var a models.AttemptRecord
		if err := attemptRows.Scan(&a.DrillID, &a.Category, &a.Outcome,
			&a.DifficultyScore, pq.Array(&a.Tags), &a.AttemptedAt); err != nil {
			return nil, err
		}
		state.Attempts = append(state.Attempts, a)
	}
	if err := attemptRows.Err(); err != nil {
		return nil, err
	}

	return state, nil
}

func (s *Store) PutUser(ctx context.Context, state *models.UserProgressionState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put user: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE user_progression SET
		    total_xp = $2, current_streak = $3, longest_streak = $4,
		    last_active_date = $5, freeze_tokens = $6, updated_at = NOW()
		 WHERE user_id = $1`,
		state.UserID, state.XP.TotalXP, state.Streak.CurrentStreakDays,
		state.Streak.LongestStreakDays, state.Streak.LastActiveDate, state.Streak.FreezeTokens,
	)
	if err != nil {
		return fmt.Errorf("update progression: %w", err)
	}

	for category, confidence := range state.ConfidenceByCategory {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO user_confidence (user_id, category, confidence)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (user_id, category) DO UPDATE SET confidence = $3, updated_at = NOW()`,
			state.UserID, category, confidence,
		)
		if err != nil {
			return fmt.Errorf("upsert confidence %s: %w", category, err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM reinforcement_queue WHERE user_id = $1`, state.UserID,
	); err != nil {
		return fmt.Errorf("clear reinforcement queue: %w", err)
	}
	for category, queue := range state.ReinforcementQueues {
		for pos, drillID := range queue {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO reinforcement_queue (user_id, category, drill_id, position)
				 VALUES ($1, $2, $3, $4)`,
				state.UserID, category, drillID, pos,
			)
			if err != nil {
				return fmt.Errorf("insert reinforcement entry: %w", err)
			}
		}
	}

	// Attempt history is append-only: persist only the tail beyond what
	// is already stored.
	var stored int
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attempt_history WHERE user_id = $1`, state.UserID,
	).Scan(&stored); err != nil {
		return fmt.Errorf("count attempts: %w", err)
	}
	for i := stored; i < len(state.Attempts); i++ {
		a := state.Attempts[i]
		_, err = tx.ExecContext(ctx,
			`INSERT INTO attempt_history
			    (user_id, drill_id, category, outcome, difficulty_score, tags, attempted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			state.UserID, a.DrillID, a.Category, a.Outcome, a.DifficultyScore,
			pq.Array(a.Tags), a.AttemptedAt,
		)
		if err != nil {
			return fmt.Errorf("append attempt: %w", err)
		}
	}

	return tx.Commit()
}

// ── Drill Catalog ───────────────────────────────────────

func (s *Store) GetDrillPool(ctx context.Context, category string) ([]models.Drill, error) {
	query := `SELECT id, category, title, summary, difficulty_score, tags, duration_minutes, created_at
	          FROM drills`
	args := []interface{}{}
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get drill pool: %w", err)
	}
	defer rows.Close()

	var drills []models.Drill
	for rows.Next() {
		var d models.Drill
		if err := rows.Scan(&d.ID, &d.Category, &d.Title, &d.Summary,
			&d.DifficultyScore, pq.Array(&d.Tags), &d.DurationMinutes, &d.CreatedAt); err != nil {
			return nil, err
		}
		drills = append(drills, d)
	}
	return drills, rows.Err()
}

func (s *Store) GetDrill(ctx context.Context, drillID int64) (*models.Drill, error) {
	var d models.Drill
	err := s.db.QueryRowContext(ctx,
		`SELECT id, category, title, summary, difficulty_score, tags, duration_minutes, created_at
		 FROM drills WHERE id = $1`,
		drillID,
	).Scan(&d.ID, &d.Category, &d.Title, &d.Summary,
		&d.DifficultyScore, pq.Array(&d.Tags), &d.DurationMinutes, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrDrillNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get drill: %w", err)
	}
	return &d, nil
}

// ── Sessions ────────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions
		    (session_id, user_id, category, assigned_drill_id, is_reinforcement,
		     duration_minutes, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.SessionID, sess.UserID, sess.Category, sess.AssignedDrillID,
		sess.IsReinforcement, sess.DurationMinutes, sess.Status, sess.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var sess models.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, category, assigned_drill_id, is_reinforcement,
		        duration_minutes, status, started_at, completed_at
		 FROM sessions WHERE session_id = $1`,
		sessionID,
	).Scan(&sess.SessionID, &sess.UserID, &sess.Category, &sess.AssignedDrillID,
		&sess.IsReinforcement, &sess.DurationMinutes, &sess.Status,
		&sess.StartedAt, &sess.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// MarkSessionCompleted is a compare-and-swap on session status: zero rows
// affected means the session either does not exist or was already
// completed, and a follow-up read distinguishes the two.
func (s *Store) MarkSessionCompleted(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = $2, completed_at = NOW()
		 WHERE session_id = $1 AND status = $3`,
		sessionID, models.SessionCompleted, models.SessionOpen,
	)
	if err != nil {
		return fmt.Errorf("mark session completed: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var status models.SessionStatus
		err := s.db.QueryRowContext(ctx,
			`SELECT status FROM sessions WHERE session_id = $1`, sessionID,
		).Scan(&status)
		if err == sql.ErrNoRows {
			return models.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("check session status: %w", err)
		}
		return models.ErrSessionCompleted
	}
	return nil
}
