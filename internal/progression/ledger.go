// Package progression holds the pure update rules for confidence, XP,
// and daily streaks that run on every session completion.
package progression

import (
	"log"
	"math"
	"time"

	"github.com/drillcoach/backend/internal/adaptive"
	"github.com/drillcoach/backend/internal/models"
)

// Ledger applies the per-attempt progression rules. All three update
// rules are pure given their inputs; the orchestrator persists results.
type Ledger struct {
	cfg adaptive.Config
}

func NewLedger(cfg adaptive.Config) *Ledger {
	return &Ledger{cfg: cfg}
}

// UpdateConfidence returns the new confidence after an attempt. A
// caller-supplied override takes precedence when valid; out-of-range
// overrides are clamped with a warning rather than trusted.
func (l *Ledger) UpdateConfidence(current float64, outcome models.Outcome, reinforcement bool, override *float64) float64 {
	if override != nil {
		v := *override
		if v < 0 || v > 1 {
			log.Printf("[ledger] confidence override %.3f out of [0,1], clamping", v)
			v = math.Max(0, math.Min(1, v))
		}
		return v
	}

	c := l.cfg.Confidence
	var delta float64
	switch outcome {
	case models.OutcomeSuccess:
		delta = c.SuccessDelta
		if reinforcement {
			delta += c.ReinforcementSuccessBonus
		}
	case models.OutcomePartial:
		delta = c.PartialDelta
	case models.OutcomeFail:
		delta = c.FailDelta
		if reinforcement {
			// Failing a repeat drill hurts less than failing a fresh one.
			delta += c.ReinforcementFailPenaltyRelief
		}
	}

	return math.Max(0, math.Min(1, current+delta))
}

// AwardXP computes the XP for one attempt, clamped to the configured
// band. A caller-supplied override is clamped to the same band.
func (l *Ledger) AwardXP(outcome models.Outcome, reinforcement bool, override *int) int {
	x := l.cfg.XP

	if override != nil {
		v := *override
		if v < x.MinAward || v > x.MaxAward {
			log.Printf("[ledger] xp override %d outside [%d,%d], clamping", v, x.MinAward, x.MaxAward)
		}
		return clampInt(v, x.MinAward, x.MaxAward)
	}

	amount := float64(x.Base)
	switch outcome {
	case models.OutcomeSuccess:
		amount += float64(x.SuccessBonus)
	case models.OutcomePartial:
		amount += float64(x.PartialBonus)
	}
	if reinforcement {
		// Repeats are worth slightly less to discourage XP farming.
		amount *= x.ReinforcementMultiplier
	}

	return clampInt(int(math.Round(amount)), x.MinAward, x.MaxAward)
}

// UpdateStreak advances the daily streak given "now". Only calendar dates
// are compared: a second completion on the same day is a no-op, the next
// day increments, and a larger gap resets to 1 — unless the gap is
// exactly two days and the user owns a freeze token, which is consumed to
// preserve the streak.
func (l *Ledger) UpdateStreak(s models.StreakState, now time.Time) models.StreakState {
	today := dateOnly(now)

	if s.LastActiveDate == nil {
		s.CurrentStreakDays = 1
	} else {
		last := dateOnly(*s.LastActiveDate)
		gapDays := int(today.Sub(last).Hours() / 24)

		switch {
		case gapDays <= 0:
			// Same calendar day; idempotent.
			return s
		case gapDays == 1:
			s.CurrentStreakDays++
		case gapDays == 2 && s.FreezeTokens > 0:
			s.FreezeTokens--
			s.CurrentStreakDays++
		default:
			s.CurrentStreakDays = 1
		}
	}

	if s.CurrentStreakDays > s.LongestStreakDays {
		s.LongestStreakDays = s.CurrentStreakDays
	}
	s.LastActiveDate = &today
	return s
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
