package adaptive

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/drillcoach/backend/internal/models"
)

// AssignmentInput is the per-request context the selector works from.
// Attempts must be in chronological order.
type AssignmentInput struct {
	Category           string
	Confidence         float64
	Attempts           []models.AttemptRecord
	Pool               []models.Drill
	ReinforcementQueue []int64
	Now                time.Time
}

// Assignment is one chosen drill plus the machine-readable reasons and
// the category's reinforcement queue after this assignment.
type Assignment struct {
	Drill        models.Drill
	Metadata     models.AssignmentMetadata
	UpdatedQueue []int64
}

// Selector combines the difficulty model, struggle detector, and scorer
// into one assignment decision. The random source is injected so tests
// can force both the exploit and explore branches.
type Selector struct {
	cfg    Config
	scorer *Scorer

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSelector(cfg Config, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{cfg: cfg, scorer: NewScorer(cfg), rng: rng}
}

// Assign picks one drill for the learner. An empty pool is a fatal
// configuration error: a session cannot proceed without a drill, so this
// fails loudly rather than returning a placeholder.
func (s *Selector) Assign(in AssignmentInput) (*Assignment, error) {
	if len(in.Pool) == 0 {
		return nil, fmt.Errorf("category %q: %w", in.Category, models.ErrEmptyDrillPool)
	}

	confidence := clamp01(in.Confidence)
	report := DetectStruggle(s.cfg.Struggle, in.Attempts, in.Category)

	target := TargetDifficulty(s.cfg.Difficulty, confidence)
	if report.IsStruggling {
		// Attempt-scoped softening; the persisted confidence is untouched.
		target = clamp(target-s.cfg.Struggle.TargetReduction, s.cfg.Difficulty.Min, s.cfg.Difficulty.Max)
	}
	window := AcceptanceWindow(s.cfg.Difficulty, target, confidence)

	ctx := ScoreContext{
		Category:     in.Category,
		Target:       target,
		Window:       window,
		Attempts:     in.Attempts,
		IsStruggling: report.IsStruggling,
		Now:          in.Now,
	}
	if len(in.ReinforcementQueue) > 0 {
		ctx.ReinforceDrillID = in.ReinforcementQueue[0]
	}

	candidates, err := s.scorer.Candidates(in.Pool, ctx)
	if err != nil {
		return nil, fmt.Errorf("category %q: %w", in.Category, err)
	}

	s.mu.Lock()
	chosen, explored := s.scorer.Pick(candidates, ctx, s.rng)
	s.mu.Unlock()

	isReinforcement := ctx.ReinforceDrillID != 0 && chosen.ID == ctx.ReinforceDrillID
	queue := in.ReinforcementQueue
	if isReinforcement {
		queue = queue[1:]
	}
	if report.IsStruggling {
		queue = enqueueCapped(queue, chosen.ID, s.cfg.Struggle.RepeatWindowLength)
	}

	meta := models.AssignmentMetadata{
		ConfidenceBefore: confidence,
		TargetDifficulty: target,
		Window:           window,
		IsReinforcement:  isReinforcement,
		IsStruggling:     report.IsStruggling,
		Reason:           buildReason(confidence, explored, isReinforcement, report.IsStruggling),
	}

	return &Assignment{Drill: chosen, Metadata: meta, UpdatedQueue: queue}, nil
}

// enqueueCapped appends a drill id to the reinforcement queue, dropping
// the oldest entry when the configured window is exceeded. A drill
// already queued is not queued twice.
func enqueueCapped(queue []int64, drillID int64, limit int) []int64 {
	for _, id := range queue {
		if id == drillID {
			return queue
		}
	}
	queue = append(append([]int64(nil), queue...), drillID)
	if len(queue) > limit {
		queue = queue[len(queue)-limit:]
	}
	return queue
}

// buildReason assembles the auditable token string attached to every
// assignment, e.g. "confidence_0.52_best_score_standard_progression".
func buildReason(confidence float64, explored, reinforcement, struggling bool) string {
	pick := "best_score"
	if explored {
		pick = "exploration"
	} else if reinforcement {
		pick = "reinforcement_repeat"
	}
	mode := "standard_progression"
	if struggling {
		mode = "struggle_support"
	}
	return fmt.Sprintf("confidence_%.2f_%s_%s", confidence, pick, mode)
}
