package models

import "time"

// Drill is a catalog entry. Drills are immutable once loaded; everything
// else references them by ID.
type Drill struct {
	ID              int64     `json:"id"`
	Category        string    `json:"category"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	DifficultyScore float64   `json:"difficulty_score"`
	Tags            []string  `json:"tags"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
}

// Outcome is the result of one drill attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFail    Outcome = "fail"
)

// ValidOutcomes is the set of outcomes accepted from callers.
var ValidOutcomes = map[Outcome]bool{
	OutcomeSuccess: true,
	OutcomePartial: true,
	OutcomeFail:    true,
}

// AttemptRecord is one historical outcome. Difficulty and tags are copied
// from the drill at attempt time so history stays valid if the catalog
// entry is later edited or removed. Append-only.
type AttemptRecord struct {
	DrillID         int64     `json:"drill_id"`
	Category        string    `json:"category"`
	Outcome         Outcome   `json:"outcome"`
	DifficultyScore float64   `json:"difficulty_score"`
	Tags            []string  `json:"tags"`
	AttemptedAt     time.Time `json:"attempted_at"`
}

// Succeeded reports whether the attempt counts toward the success rate
// (partial credit counts).
func (a AttemptRecord) Succeeded() bool {
	return a.Outcome == OutcomeSuccess || a.Outcome == OutcomePartial
}
