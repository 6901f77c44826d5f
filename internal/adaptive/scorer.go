package adaptive

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/drillcoach/backend/internal/models"
)

// recentDrillFailureWindow bounds how many of a drill's own past attempts
// are inspected for the failure penalty.
const recentDrillFailureWindow = 5

// maxComparedFailures bounds how many recent category failures each
// candidate is compared against for the similarity term.
const maxComparedFailures = 3

// ScoreContext carries everything the scorer needs about the learner at
// assignment time.
type ScoreContext struct {
	Category     string
	Target       float64
	Window       models.DifficultyWindow
	Attempts     []models.AttemptRecord
	IsStruggling bool
	Now          time.Time

	// ReinforceDrillID is the head of the category's reinforcement
	// queue, or 0 when the queue is empty.
	ReinforceDrillID int64
}

// Scorer filters and ranks drill candidates for one assignment.
type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Candidates selects the eligible drills for the context. Category drills
// are preferred (full pool when the category is empty); drills inside the
// acceptance window survive, and if none do, the drills closest to the
// target are kept so the candidate set is non-empty whenever the pool is.
// A reinforcement-queue head present in the candidates is moved to the
// front: it wins score ties but does not bypass scoring.
func (s *Scorer) Candidates(pool []models.Drill, ctx ScoreContext) ([]models.Drill, error) {
	if len(pool) == 0 {
		return nil, models.ErrEmptyDrillPool
	}

	scoped := make([]models.Drill, 0, len(pool))
	for _, d := range pool {
		if d.Category == ctx.Category {
			scoped = append(scoped, d)
		}
	}
	if len(scoped) == 0 {
		scoped = pool
	}

	candidates := make([]models.Drill, 0, len(scoped))
	for _, d := range scoped {
		if ctx.Window.Contains(d.DifficultyScore) {
			candidates = append(candidates, d)
		}
	}

	if len(candidates) == 0 {
		candidates = closestByDifficulty(scoped, ctx.Target, s.cfg.ClosestFallbackCount)
	}

	if ctx.ReinforceDrillID != 0 {
		candidates = promoteToFront(candidates, ctx.ReinforceDrillID)
	}

	return candidates, nil
}

// Score computes the composite [0,1] score for one candidate.
func (s *Scorer) Score(d models.Drill, ctx ScoreContext) float64 {
	w := s.cfg.Scoring
	score := w.ProximityWeight * s.proximity(d, ctx)
	score += w.NoveltyWeight * s.novelty(d, ctx)
	score += w.FailurePenaltyWeight * s.failurePenalty(d, ctx)
	score += w.SimilarityWeight * s.failureSimilarity(d, ctx)
	return score
}

// Pick returns the winning candidate. With probability
// ExplorationEpsilon it ignores scores and draws uniformly, guarding
// against convergence onto a narrow repeating set; otherwise the highest
// score wins with ties broken by candidate order.
func (s *Scorer) Pick(candidates []models.Drill, ctx ScoreContext, rng *rand.Rand) (models.Drill, bool) {
	if rng.Float64() < s.cfg.Scoring.ExplorationEpsilon {
		return candidates[rng.Intn(len(candidates))], true
	}

	best := candidates[0]
	bestScore := s.Score(best, ctx)
	for _, d := range candidates[1:] {
		if sc := s.Score(d, ctx); sc > bestScore {
			best = d
			bestScore = sc
		}
	}
	return best, false
}

// proximity prefers drills near the target difficulty, reaching zero at
// ProximityFalloff points away.
func (s *Scorer) proximity(d models.Drill, ctx ScoreContext) float64 {
	dist := math.Abs(d.DifficultyScore-ctx.Target) / s.cfg.ProximityFalloff
	return 1 - math.Min(dist, 1)
}

// novelty rewards drills the learner has not seen recently. A drill never
// attempted is fully novel; one attempted today scores near zero.
func (s *Scorer) novelty(d models.Drill, ctx ScoreContext) float64 {
	var last *models.AttemptRecord
	for i := len(ctx.Attempts) - 1; i >= 0; i-- {
		if ctx.Attempts[i].DrillID == d.ID {
			last = &ctx.Attempts[i]
			break
		}
	}
	if last == nil {
		return 1
	}
	days := ctx.Now.Sub(last.AttemptedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Min(days/s.cfg.NoveltyHalfLifeDays, 1)
}

// failurePenalty lowers the score of drills the learner keeps failing.
// When the learner is struggling the penalty is dampened so the drill
// they need to re-practice is not excluded outright.
func (s *Scorer) failurePenalty(d models.Drill, ctx ScoreContext) float64 {
	failures := 0
	seen := 0
	for i := len(ctx.Attempts) - 1; i >= 0 && seen < recentDrillFailureWindow; i-- {
		if ctx.Attempts[i].DrillID != d.ID {
			continue
		}
		seen++
		if ctx.Attempts[i].Outcome == models.OutcomeFail {
			failures++
		}
	}

	penalty := math.Min(float64(failures)*0.2, 0.7)
	if ctx.IsStruggling {
		penalty *= 0.35
	}
	return 1 - penalty
}

// failureSimilarity compares the candidate against the most recent
// category failures. While struggling, similar drills are favored
// (deliberate reinforcement); otherwise similarity is dampened to keep a
// mild diversity preference.
func (s *Scorer) failureSimilarity(d models.Drill, ctx ScoreContext) float64 {
	var failures []models.AttemptRecord
	for i := len(ctx.Attempts) - 1; i >= 0 && len(failures) < maxComparedFailures; i-- {
		a := ctx.Attempts[i]
		if a.Category == ctx.Category && a.Outcome == models.OutcomeFail {
			failures = append(failures, a)
		}
	}
	if len(failures) == 0 {
		return 0
	}

	best := 0.0
	for _, f := range failures {
		overlap := tagOverlapRatio(d.Tags, f.Tags)
		diffTerm := 1 - math.Min(math.Abs(d.DifficultyScore-f.DifficultyScore)/25, 1)
		sim := 0.65*overlap + 0.35*diffTerm
		if sim > best {
			best = sim
		}
	}

	if !ctx.IsStruggling {
		best *= 0.4
	}
	return best
}

// tagOverlapRatio is the Jaccard overlap of two tag sets.
func tagOverlapRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	shared := 0
	union := len(set)
	for _, t := range b {
		if set[t] {
			shared++
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}

// closestByDifficulty returns up to n drills nearest the target,
// preserving input order among equals.
func closestByDifficulty(pool []models.Drill, target float64, n int) []models.Drill {
	sorted := make([]models.Drill, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].DifficultyScore-target) < math.Abs(sorted[j].DifficultyScore-target)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// promoteToFront moves the drill with the given id to index 0 if present.
func promoteToFront(candidates []models.Drill, drillID int64) []models.Drill {
	for i, d := range candidates {
		if d.ID == drillID {
			out := make([]models.Drill, 0, len(candidates))
			out = append(out, d)
			out = append(out, candidates[:i]...)
			out = append(out, candidates[i+1:]...)
			return out
		}
	}
	return candidates
}
