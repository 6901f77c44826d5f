package adaptive

import "github.com/drillcoach/backend/internal/models"

// StruggleReport summarizes recent performance in one category.
type StruggleReport struct {
	IsStruggling bool
	SuccessRate  float64
	SampleSize   int
}

// DetectStruggle inspects the last N attempts in the category. With no
// history it reports not-struggling with a success rate of 1, an
// optimistic default for new categories.
func DetectStruggle(cfg StruggleConfig, attempts []models.AttemptRecord, category string) StruggleReport {
	var recent []models.AttemptRecord
	for _, a := range attempts {
		if a.Category == category {
			recent = append(recent, a)
		}
	}
	if len(recent) > cfg.LookbackAttempts {
		recent = recent[len(recent)-cfg.LookbackAttempts:]
	}
	if len(recent) == 0 {
		return StruggleReport{IsStruggling: false, SuccessRate: 1}
	}

	succeeded := 0
	for _, a := range recent {
		if a.Succeeded() {
			succeeded++
		}
	}
	rate := float64(succeeded) / float64(len(recent))
	return StruggleReport{
		IsStruggling: rate < cfg.SuccessRateThreshold,
		SuccessRate:  rate,
		SampleSize:   len(recent),
	}
}
