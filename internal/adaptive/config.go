package adaptive

import (
	"os"
	"strconv"
)

// DifficultyConfig controls the confidence → target-difficulty mapping.
type DifficultyConfig struct {
	Base  float64
	Slope float64
	Min   float64
	Max   float64
}

// StruggleConfig controls struggle detection and reinforcement queueing.
type StruggleConfig struct {
	LookbackAttempts     int
	SuccessRateThreshold float64
	TargetReduction      float64
	RepeatWindowLength   int
}

// ScoringConfig holds the candidate-score weights. The four weights are
// applied to normalized [0,1] terms.
type ScoringConfig struct {
	ProximityWeight      float64
	NoveltyWeight        float64
	FailurePenaltyWeight float64
	SimilarityWeight     float64
	ExplorationEpsilon   float64
}

// ConfidenceConfig holds the per-outcome confidence deltas.
type ConfidenceConfig struct {
	SuccessDelta                   float64
	PartialDelta                   float64
	FailDelta                      float64
	ReinforcementSuccessBonus      float64
	ReinforcementFailPenaltyRelief float64
}

// XPConfig holds the XP award constants.
type XPConfig struct {
	Base                    int
	SuccessBonus            int
	PartialBonus            int
	ReinforcementMultiplier float64
	MinAward                int
	MaxAward                int
}

// RecoveryConfig controls the gentler re-entry assignment after a
// multi-day gap in a category.
type RecoveryConfig struct {
	InactivityDays     int
	ConfidenceBias     float64
	MaxDurationMinutes int
}

// Config is the single immutable tuning surface for the adaptive core.
// It is constructed once at startup and injected; nothing reads it from
// ambient state afterwards.
type Config struct {
	Difficulty DifficultyConfig
	Struggle   StruggleConfig
	Scoring    ScoringConfig
	Confidence ConfidenceConfig
	XP         XPConfig
	Recovery   RecoveryConfig

	// NoveltyHalfLifeDays is the attempt recency (in days) at which a
	// drill is considered fully novel again.
	NoveltyHalfLifeDays float64

	// ProximityFalloff is the difficulty distance at which the proximity
	// term reaches zero.
	ProximityFalloff float64

	// ClosestFallbackCount is how many nearest-difficulty drills to keep
	// when no candidate survives the acceptance window.
	ClosestFallbackCount int

	// ExplanationInitialCount and ExplanationCadence control how often
	// the human-readable assignment explanation is surfaced.
	ExplanationInitialCount int
	ExplanationCadence      int
}

// DefaultConfig returns the tuning used in production.
func DefaultConfig() Config {
	return Config{
		Difficulty: DifficultyConfig{
			Base:  30,
			Slope: 40,
			Min:   5,
			Max:   95,
		},
		Struggle: StruggleConfig{
			LookbackAttempts:     3,
			SuccessRateThreshold: 0.6,
			TargetReduction:      8,
			RepeatWindowLength:   2,
		},
		Scoring: ScoringConfig{
			ProximityWeight:      0.45,
			NoveltyWeight:        0.20,
			FailurePenaltyWeight: 0.20,
			SimilarityWeight:     0.15,
			ExplorationEpsilon:   0.08,
		},
		Confidence: ConfidenceConfig{
			SuccessDelta:                   0.03,
			PartialDelta:                   0.01,
			FailDelta:                      -0.04,
			ReinforcementSuccessBonus:      0.05,
			ReinforcementFailPenaltyRelief: 0.02,
		},
		XP: XPConfig{
			Base:                    24,
			SuccessBonus:            10,
			PartialBonus:            4,
			ReinforcementMultiplier: 0.85,
			MinAward:                8,
			MaxAward:                60,
		},
		Recovery: RecoveryConfig{
			InactivityDays:     2,
			ConfidenceBias:     0.14,
			MaxDurationMinutes: 10,
		},
		NoveltyHalfLifeDays:     14,
		ProximityFalloff:        35,
		ClosestFallbackCount:    10,
		ExplanationInitialCount: 5,
		ExplanationCadence:      5,
	}
}

// ConfigFromEnv starts from DefaultConfig and applies any numeric
// overrides present in the environment.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	floatEnv("ADAPTIVE_DIFFICULTY_BASE", &cfg.Difficulty.Base)
	floatEnv("ADAPTIVE_DIFFICULTY_SLOPE", &cfg.Difficulty.Slope)
	floatEnv("ADAPTIVE_DIFFICULTY_MIN", &cfg.Difficulty.Min)
	floatEnv("ADAPTIVE_DIFFICULTY_MAX", &cfg.Difficulty.Max)

	intEnv("ADAPTIVE_STRUGGLE_LOOKBACK", &cfg.Struggle.LookbackAttempts)
	floatEnv("ADAPTIVE_STRUGGLE_THRESHOLD", &cfg.Struggle.SuccessRateThreshold)
	floatEnv("ADAPTIVE_STRUGGLE_REDUCTION", &cfg.Struggle.TargetReduction)
	intEnv("ADAPTIVE_REPEAT_WINDOW", &cfg.Struggle.RepeatWindowLength)

	floatEnv("ADAPTIVE_WEIGHT_PROXIMITY", &cfg.Scoring.ProximityWeight)
	floatEnv("ADAPTIVE_WEIGHT_NOVELTY", &cfg.Scoring.NoveltyWeight)
	floatEnv("ADAPTIVE_WEIGHT_FAILURE", &cfg.Scoring.FailurePenaltyWeight)
	floatEnv("ADAPTIVE_WEIGHT_SIMILARITY", &cfg.Scoring.SimilarityWeight)
	floatEnv("ADAPTIVE_EXPLORATION_EPSILON", &cfg.Scoring.ExplorationEpsilon)

	intEnv("XP_BASE", &cfg.XP.Base)
	intEnv("XP_SUCCESS_BONUS", &cfg.XP.SuccessBonus)
	intEnv("XP_PARTIAL_BONUS", &cfg.XP.PartialBonus)
	floatEnv("XP_REINFORCEMENT_MULTIPLIER", &cfg.XP.ReinforcementMultiplier)
	intEnv("XP_MIN_AWARD", &cfg.XP.MinAward)
	intEnv("XP_MAX_AWARD", &cfg.XP.MaxAward)

	intEnv("RECOVERY_INACTIVITY_DAYS", &cfg.Recovery.InactivityDays)
	floatEnv("RECOVERY_CONFIDENCE_BIAS", &cfg.Recovery.ConfidenceBias)
	intEnv("RECOVERY_MAX_DURATION", &cfg.Recovery.MaxDurationMinutes)

	return cfg
}

func floatEnv(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func intEnv(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			*dst = n
		}
	}
}
