package adaptive

import "github.com/drillcoach/backend/internal/models"

// TargetDifficulty maps a confidence value in [0,1] to the difficulty the
// system aims to serve next. Pure and deterministic; confidence is
// defensively clamped before use.
func TargetDifficulty(cfg DifficultyConfig, confidence float64) float64 {
	confidence = clamp01(confidence)
	target := cfg.Base + (confidence-0.5)*cfg.Slope
	return clamp(target, cfg.Min, cfg.Max)
}

// AcceptanceWindow computes the asymmetric eligibility range around a
// target. Low confidence widens the floor (protect against frustration);
// high confidence widens the ceiling (allow stretch).
func AcceptanceWindow(cfg DifficultyConfig, target, confidence float64) models.DifficultyWindow {
	confidence = clamp01(confidence)
	low := target - (15 + (1-confidence)*15)
	high := target + (10 + confidence*20)
	return models.DifficultyWindow{
		Low:  clamp(low, cfg.Min, cfg.Max),
		High: clamp(high, cfg.Min, cfg.Max),
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
