package adaptive

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/drillcoach/backend/internal/models"
)

func drill(id int64, category string, difficulty float64, tags ...string) models.Drill {
	return models.Drill{ID: id, Category: category, DifficultyScore: difficulty, Tags: tags}
}

func TestCandidatesFiltersToWindow(t *testing.T) {
	s := NewScorer(DefaultConfig())
	pool := []models.Drill{
		drill(1, "shooting", 5),
		drill(2, "shooting", 25),
		drill(3, "shooting", 40),
		drill(4, "shooting", 80),
	}
	ctx := ScoreContext{
		Category: "shooting",
		Target:   30,
		Window:   models.DifficultyWindow{Low: 10, High: 50},
	}

	got, err := s.Candidates(pool, ctx)
	if err != nil {
		t.Fatalf("Candidates() error: %v", err)
	}
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Errorf("Candidates() = %v, want drills 2 and 3", ids(got))
	}
}

func TestCandidatesFallsBackToClosest(t *testing.T) {
	s := NewScorer(DefaultConfig())
	// Nothing inside the window; the nearest drills must still be offered.
	pool := []models.Drill{
		drill(1, "shooting", 90),
		drill(2, "shooting", 85),
		drill(3, "shooting", 95),
	}
	ctx := ScoreContext{
		Category: "shooting",
		Target:   20,
		Window:   models.DifficultyWindow{Low: 10, High: 40},
	}

	got, err := s.Candidates(pool, ctx)
	if err != nil {
		t.Fatalf("Candidates() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Candidates() kept %d drills, want all 3 as fallback", len(got))
	}
	if got[0].ID != 2 {
		t.Errorf("closest fallback should order by distance, got %v", ids(got))
	}
}

func TestCandidatesCategoryScope(t *testing.T) {
	s := NewScorer(DefaultConfig())
	pool := []models.Drill{
		drill(1, "passing", 30),
		drill(2, "shooting", 30),
	}
	ctx := ScoreContext{
		Category: "shooting",
		Target:   30,
		Window:   models.DifficultyWindow{Low: 10, High: 50},
	}

	got, err := s.Candidates(pool, ctx)
	if err != nil {
		t.Fatalf("Candidates() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("Candidates() = %v, want only the shooting drill", ids(got))
	}

	// With no drills in the category the full pool is in scope.
	ctx.Category = "dribbling"
	got, err = s.Candidates(pool, ctx)
	if err != nil {
		t.Fatalf("Candidates() error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("empty category should widen to full pool, got %v", ids(got))
	}
}

func TestCandidatesEmptyPool(t *testing.T) {
	s := NewScorer(DefaultConfig())
	_, err := s.Candidates(nil, ScoreContext{Category: "shooting"})
	if !errors.Is(err, models.ErrEmptyDrillPool) {
		t.Errorf("Candidates(empty) error = %v, want ErrEmptyDrillPool", err)
	}
}

func TestCandidatesPromotesReinforcementHead(t *testing.T) {
	s := NewScorer(DefaultConfig())
	pool := []models.Drill{
		drill(1, "shooting", 25),
		drill(2, "shooting", 30),
		drill(3, "shooting", 35),
	}
	ctx := ScoreContext{
		Category:         "shooting",
		Target:           30,
		Window:           models.DifficultyWindow{Low: 10, High: 50},
		ReinforceDrillID: 3,
	}

	got, err := s.Candidates(pool, ctx)
	if err != nil {
		t.Fatalf("Candidates() error: %v", err)
	}
	if got[0].ID != 3 {
		t.Errorf("reinforcement head should be first, got %v", ids(got))
	}
	if len(got) != 3 {
		t.Errorf("promotion must not drop candidates, got %v", ids(got))
	}
}

func TestScoreProximity(t *testing.T) {
	s := NewScorer(DefaultConfig())
	ctx := ScoreContext{Category: "shooting", Target: 30}

	near := s.Score(drill(1, "shooting", 32), ctx)
	far := s.Score(drill(2, "shooting", 60), ctx)
	if near <= far {
		t.Errorf("near-target drill scored %f, far drill %f; want near > far", near, far)
	}
}

func TestScoreNovelty(t *testing.T) {
	s := NewScorer(DefaultConfig())
	now := time.Now()
	ctx := ScoreContext{
		Category: "shooting",
		Target:   30,
		Now:      now,
		Attempts: []models.AttemptRecord{
			{DrillID: 1, Category: "shooting", Outcome: models.OutcomeSuccess, AttemptedAt: now.Add(-2 * time.Hour)},
		},
	}

	fresh := s.Score(drill(2, "shooting", 30), ctx)
	repeated := s.Score(drill(1, "shooting", 30), ctx)
	if fresh <= repeated {
		t.Errorf("never-attempted drill scored %f, just-attempted %f; want fresh > repeated", fresh, repeated)
	}
}

func TestScoreFailurePenalty(t *testing.T) {
	s := NewScorer(DefaultConfig())
	now := time.Now()
	attempts := []models.AttemptRecord{
		{DrillID: 1, Category: "shooting", Outcome: models.OutcomeFail, AttemptedAt: now.AddDate(0, 0, -30)},
		{DrillID: 1, Category: "shooting", Outcome: models.OutcomeFail, AttemptedAt: now.AddDate(0, 0, -29)},
		{DrillID: 2, Category: "shooting", Outcome: models.OutcomeSuccess, AttemptedAt: now.AddDate(0, 0, -30)},
	}
	ctx := ScoreContext{Category: "shooting", Target: 30, Now: now, Attempts: attempts}

	failed := s.Score(drill(1, "shooting", 30), ctx)
	succeeded := s.Score(drill(2, "shooting", 30), ctx)
	if failed >= succeeded {
		t.Errorf("repeatedly-failed drill scored %f, succeeded drill %f; want failed < succeeded", failed, succeeded)
	}

	// While struggling the penalty is dampened, not erased.
	ctx.IsStruggling = true
	dampened := s.Score(drill(1, "shooting", 30), ctx)
	if dampened <= failed {
		t.Errorf("struggle dampening should soften the penalty: %f vs %f", dampened, failed)
	}
}

func TestScoreFailureSimilarity(t *testing.T) {
	s := NewScorer(DefaultConfig())
	now := time.Now()
	attempts := []models.AttemptRecord{
		{
			DrillID: 9, Category: "shooting", Outcome: models.OutcomeFail,
			DifficultyScore: 50, Tags: []string{"off_dribble", "midrange"},
			AttemptedAt: now.AddDate(0, 0, -1),
		},
	}

	// Struggling: a drill sharing tags with the recent failure is favored.
	ctx := ScoreContext{Category: "shooting", Target: 50, Now: now, Attempts: attempts, IsStruggling: true}
	similar := s.Score(drill(1, "shooting", 50, "off_dribble", "midrange"), ctx)
	unrelated := s.Score(drill(2, "shooting", 50, "free_throw"), ctx)
	if similar <= unrelated {
		t.Errorf("struggling: similar drill scored %f, unrelated %f; want similar > unrelated", similar, unrelated)
	}

	// Not struggling: the preference is dampened but still present.
	ctx.IsStruggling = false
	simCalm := s.failureSimilarity(drill(1, "shooting", 50, "off_dribble", "midrange"), ctx)
	ctx.IsStruggling = true
	simStruggling := s.failureSimilarity(drill(1, "shooting", 50, "off_dribble", "midrange"), ctx)
	if simCalm >= simStruggling {
		t.Errorf("similarity should be dampened when not struggling: %f vs %f", simCalm, simStruggling)
	}
}

func TestPickExploitsHighestScore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.ExplorationEpsilon = 0 // force the exploit branch
	s := NewScorer(cfg)
	rng := rand.New(rand.NewSource(1))

	candidates := []models.Drill{
		drill(1, "shooting", 80),
		drill(2, "shooting", 31), // closest to target, highest proximity
		drill(3, "shooting", 60),
	}
	ctx := ScoreContext{Category: "shooting", Target: 30}

	got, explored := s.Pick(candidates, ctx, rng)
	if explored {
		t.Fatal("epsilon 0 must never explore")
	}
	if got.ID != 2 {
		t.Errorf("Pick() = drill %d, want drill 2", got.ID)
	}
}

func TestPickTieBreaksByOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.ExplorationEpsilon = 0
	s := NewScorer(cfg)
	rng := rand.New(rand.NewSource(1))

	// Identical drills score identically; the earlier candidate wins.
	candidates := []models.Drill{
		drill(7, "shooting", 30),
		drill(8, "shooting", 30),
	}
	got, _ := s.Pick(candidates, ScoreContext{Category: "shooting", Target: 30}, rng)
	if got.ID != 7 {
		t.Errorf("Pick() tie = drill %d, want first candidate 7", got.ID)
	}
}

func TestPickExplores(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.ExplorationEpsilon = 1 // force the explore branch
	s := NewScorer(cfg)
	rng := rand.New(rand.NewSource(1))

	candidates := []models.Drill{drill(4, "shooting", 80)}
	got, explored := s.Pick(candidates, ScoreContext{Category: "shooting", Target: 30}, rng)
	if !explored {
		t.Fatal("epsilon 1 must always explore")
	}
	if got.ID != 4 {
		t.Errorf("Pick() = drill %d, want the only candidate", got.ID)
	}
}

func TestTagOverlapRatio(t *testing.T) {
	tests := []struct {
		a, b []string
		want float64
	}{
		{[]string{"a", "b"}, []string{"a", "b"}, 1},
		{[]string{"a", "b"}, []string{"c"}, 0},
		{[]string{"a", "b", "c"}, []string{"b", "c", "d"}, 0.5},
		{nil, []string{"a"}, 0},
		{[]string{"a"}, nil, 0},
	}
	for _, tt := range tests {
		got := tagOverlapRatio(tt.a, tt.b)
		if diff := got - tt.want; diff > 0.001 || diff < -0.001 {
			t.Errorf("tagOverlapRatio(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}

func ids(drills []models.Drill) []int64 {
	out := make([]int64, len(drills))
	for i, d := range drills {
		out[i] = d.ID
	}
	return out
}
