package models

import "time"

// SessionStatus tracks the single-use session lifecycle.
type SessionStatus string

const (
	SessionOpen      SessionStatus = "open"
	SessionCompleted SessionStatus = "completed"
)

// Session correlates one assignment with one completion. Sessions are
// single-use: a second completion is an error, never a silent no-op.
type Session struct {
	SessionID       string        `json:"session_id"`
	UserID          int64         `json:"user_id"`
	Category        string        `json:"category"`
	AssignedDrillID int64         `json:"assigned_drill_id"`
	IsReinforcement bool          `json:"is_reinforcement"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          SessionStatus `json:"status"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

// DifficultyWindow is the accepted difficulty range around a target.
type DifficultyWindow struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether a difficulty score falls inside the window.
func (w DifficultyWindow) Contains(score float64) bool {
	return score >= w.Low && score <= w.High
}

// AssignmentMetadata explains why a drill was chosen. Output-only; never
// persisted beyond the reinforcement flag copied onto the session.
type AssignmentMetadata struct {
	ConfidenceBefore float64          `json:"confidence_before"`
	TargetDifficulty float64          `json:"target_difficulty"`
	Window           DifficultyWindow `json:"window"`
	IsReinforcement  bool             `json:"is_reinforcement"`
	IsStruggling     bool             `json:"is_struggling"`
	Reason           string           `json:"reason"`
}

// ── Request/Response Types ────────────────────────────────

type StartSessionRequest struct {
	Category        string  `json:"category"`
	DurationMinutes int     `json:"duration_minutes"`
	DifficultyHint  float64 `json:"difficulty_hint,omitempty"`
	SkillLevel      string  `json:"skill_level,omitempty"`
	Goal            string  `json:"goal,omitempty"`
}

type StartSessionResponse struct {
	SessionID       string             `json:"session_id"`
	Drill           Drill              `json:"drill"`
	DurationMinutes int                `json:"duration_minutes"`
	Explanation     string             `json:"explanation,omitempty"`
	Metadata        AssignmentMetadata `json:"metadata"`
}

type CompleteSessionRequest struct {
	Outcome         Outcome  `json:"outcome"`
	DurationMinutes int      `json:"duration_minutes"`
	XPEarned        *int     `json:"xp_earned,omitempty"`
	ConfidenceAfter *float64 `json:"confidence_after,omitempty"`
}

type CompleteSessionResponse struct {
	XP                 XPState     `json:"xp"`
	Streak             StreakState `json:"streak"`
	XPAwarded          int         `json:"xp_awarded"`
	CategoryConfidence float64     `json:"category_confidence"`
}

type ProgressionResponse struct {
	ConfidenceByCategory map[string]float64 `json:"confidence_by_category"`
	XP                   XPState            `json:"xp"`
	Streak               StreakState        `json:"streak"`
	TotalAttempts        int                `json:"total_attempts"`
}

type HistoryResponse struct {
	Attempts []AttemptRecord `json:"attempts"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

type DrillListResponse struct {
	Drills []Drill `json:"drills"`
	Total  int     `json:"total"`
}
