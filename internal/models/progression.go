package models

import "time"

// XPPerLevel is the flat XP cost of each level. Level is always derived
// from total XP, never stored independently.
const XPPerLevel = 250

// XPState is the user's experience-point ledger.
type XPState struct {
	TotalXP       int64 `json:"total_xp"`
	Level         int   `json:"level"`
	XPToNextLevel int64 `json:"xp_to_next_level"`
}

// DeriveXPState recomputes level and xp-to-next from a total.
func DeriveXPState(totalXP int64) XPState {
	level := int(totalXP/XPPerLevel) + 1
	return XPState{
		TotalXP:       totalXP,
		Level:         level,
		XPToNextLevel: int64(level)*XPPerLevel - totalXP,
	}
}

// StreakState is the user's daily-streak ledger. LastActiveDate is a
// calendar date; time-of-day is never compared.
type StreakState struct {
	CurrentStreakDays int        `json:"current_streak_days"`
	LongestStreakDays int        `json:"longest_streak_days"`
	LastActiveDate    *time.Time `json:"last_active_date"`
	FreezeTokens      int        `json:"freeze_tokens"`
}

// UserProgressionState is the per-user aggregate the core reads and
// writes. Attempts are in chronological order, oldest first.
type UserProgressionState struct {
	UserID                int64              `json:"user_id"`
	ConfidenceByCategory  map[string]float64 `json:"confidence_by_category"`
	Attempts              []AttemptRecord    `json:"attempts"`
	ReinforcementQueues   map[string][]int64 `json:"reinforcement_queues"`
	XP                    XPState            `json:"xp"`
	Streak                StreakState        `json:"streak"`
}

// DefaultConfidence seeds a category the user has never practiced.
const DefaultConfidence = 0.5

// ConfidenceSeedForSkillLevel maps a self-reported skill level to an
// initial confidence, used only on a user's first-ever attempt in a
// category.
func ConfidenceSeedForSkillLevel(skillLevel string) float64 {
	switch skillLevel {
	case "beginner":
		return 0.3
	case "intermediate":
		return 0.5
	case "advanced":
		return 0.7
	default:
		return DefaultConfidence
	}
}

// Confidence returns the user's confidence for a category, seeded with
// the default when the category has never been practiced.
func (u *UserProgressionState) Confidence(category string) float64 {
	if c, ok := u.ConfidenceByCategory[category]; ok {
		return c
	}
	return DefaultConfidence
}

// CategoryAttempts returns the user's attempts in one category,
// preserving chronological order.
func (u *UserProgressionState) CategoryAttempts(category string) []AttemptRecord {
	var out []AttemptRecord
	for _, a := range u.Attempts {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out
}
