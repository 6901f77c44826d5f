package session

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/drillcoach/backend/internal/adaptive"
	"github.com/drillcoach/backend/internal/models"
	"github.com/drillcoach/backend/internal/progression"
)

// fakeStore is an in-memory RecordStore for exercising the orchestrator
// without Postgres.
type fakeStore struct {
	users    map[int64]*models.UserProgressionState
	drills   map[int64]models.Drill
	sessions map[string]*models.Session
}

func newFakeStore(drills ...models.Drill) *fakeStore {
	f := &fakeStore{
		users:    map[int64]*models.UserProgressionState{},
		drills:   map[int64]models.Drill{},
		sessions: map[string]*models.Session{},
	}
	for _, d := range drills {
		f.drills[d.ID] = d
	}
	return f
}

func (f *fakeStore) GetUser(_ context.Context, userID int64) (*models.UserProgressionState, error) {
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	u := &models.UserProgressionState{
		UserID:               userID,
		ConfidenceByCategory: map[string]float64{},
		ReinforcementQueues:  map[string][]int64{},
		XP:                   models.DeriveXPState(0),
	}
	f.users[userID] = u
	return u, nil
}

func (f *fakeStore) PutUser(_ context.Context, state *models.UserProgressionState) error {
	f.users[state.UserID] = state
	return nil
}

func (f *fakeStore) GetDrillPool(_ context.Context, category string) ([]models.Drill, error) {
	var pool []models.Drill
	for _, d := range f.drills {
		if category == "" || d.Category == category {
			pool = append(pool, d)
		}
	}
	return pool, nil
}

func (f *fakeStore) GetDrill(_ context.Context, drillID int64) (*models.Drill, error) {
	d, ok := f.drills[drillID]
	if !ok {
		return nil, models.ErrDrillNotFound
	}
	return &d, nil
}

func (f *fakeStore) CreateSession(_ context.Context, s *models.Session) error {
	f.sessions[s.SessionID] = s
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeStore) MarkSessionCompleted(_ context.Context, sessionID string) error {
	s, ok := f.sessions[sessionID]
	if !ok {
		return models.ErrSessionNotFound
	}
	if s.Status != models.SessionOpen {
		return models.ErrSessionCompleted
	}
	now := time.Now()
	s.Status = models.SessionCompleted
	s.CompletedAt = &now
	return nil
}

func catalog() []models.Drill {
	return []models.Drill{
		{ID: 1, Category: "shooting", Title: "Form Shooting", DifficultyScore: 10, Tags: []string{"form"}, DurationMinutes: 10},
		{ID: 2, Category: "shooting", Title: "Elbow Jumpers", DifficultyScore: 30, Tags: []string{"midrange"}, DurationMinutes: 15},
		{ID: 3, Category: "shooting", Title: "Step-Backs", DifficultyScore: 78, Tags: []string{"three_point"}, DurationMinutes: 25},
		{ID: 4, Category: "passing", Title: "Wall Passes", DifficultyScore: 8, Tags: []string{"form"}, DurationMinutes: 10},
	}
}

func newTestService(store RecordStore) *Service {
	cfg := adaptive.DefaultConfig()
	cfg.Scoring.ExplorationEpsilon = 0 // deterministic picks
	selector := adaptive.NewSelector(cfg, rand.New(rand.NewSource(1)))
	return NewService(store, selector, progression.NewLedger(cfg), cfg)
}

func TestStartAssignsOnTargetDrill(t *testing.T) {
	store := newFakeStore(catalog()...)
	svc := newTestService(store)

	resp, err := svc.Start(context.Background(), 1, models.StartSessionRequest{Category: "shooting"})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// Fresh user: confidence 0.5 → target 30; drill 2 sits on it.
	if resp.Drill.ID != 2 {
		t.Errorf("assigned drill %d, want 2", resp.Drill.ID)
	}
	if resp.Metadata.ConfidenceBefore != 0.5 {
		t.Errorf("ConfidenceBefore = %f, want default 0.5", resp.Metadata.ConfidenceBefore)
	}
	if resp.DurationMinutes != 15 {
		t.Errorf("DurationMinutes = %d, want the drill default 15", resp.DurationMinutes)
	}
	if resp.Explanation == "" {
		t.Error("early sessions should carry an explanation")
	}

	sess, err := store.GetSession(context.Background(), resp.SessionID)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if sess.Status != models.SessionOpen {
		t.Errorf("session status = %s, want open", sess.Status)
	}
}

func TestStartRequiresCategory(t *testing.T) {
	svc := newTestService(newFakeStore(catalog()...))

	_, err := svc.Start(context.Background(), 1, models.StartSessionRequest{})
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("Start() error = %v, want ErrValidation", err)
	}
}

func TestStartUnknownCategoryUsesFullCatalog(t *testing.T) {
	svc := newTestService(newFakeStore(catalog()...))

	resp, err := svc.Start(context.Background(), 1, models.StartSessionRequest{Category: "conditioning"})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if resp.Drill.ID == 0 {
		t.Error("fallback to the full catalog should still assign a drill")
	}
}

func TestStartSkillLevelSeedsConfidence(t *testing.T) {
	svc := newTestService(newFakeStore(catalog()...))

	resp, err := svc.Start(context.Background(), 1, models.StartSessionRequest{
		Category:   "shooting",
		SkillLevel: "advanced",
	})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if resp.Metadata.ConfidenceBefore != 0.7 {
		t.Errorf("ConfidenceBefore = %f, want advanced seed 0.7", resp.Metadata.ConfidenceBefore)
	}
	if resp.Metadata.TargetDifficulty != 38 {
		t.Errorf("TargetDifficulty = %f, want 38", resp.Metadata.TargetDifficulty)
	}
}

func TestStartDifficultyHintSeedsConfidence(t *testing.T) {
	svc := newTestService(newFakeStore(catalog()...))

	// A hint inside the scale inverts the mapping so the first target
	// lands on the requested difficulty.
	resp, err := svc.Start(context.Background(), 1, models.StartSessionRequest{
		Category:       "shooting",
		DifficultyHint: 38,
	})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if resp.Metadata.TargetDifficulty != 38 {
		t.Errorf("TargetDifficulty = %f, want hint 38", resp.Metadata.TargetDifficulty)
	}
}

func TestStartStoredConfidenceWinsOverSeeds(t *testing.T) {
	store := newFakeStore(catalog()...)
	svc := newTestService(store)

	user, _ := store.GetUser(context.Background(), 1)
	user.ConfidenceByCategory["shooting"] = 0.8

	resp, err := svc.Start(context.Background(), 1, models.StartSessionRequest{
		Category:   "shooting",
		SkillLevel: "beginner",
	})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if resp.Metadata.ConfidenceBefore != 0.8 {
		t.Errorf("ConfidenceBefore = %f, stored value must win over the seed", resp.Metadata.ConfidenceBefore)
	}
}

func TestStartRecoveryMode(t *testing.T) {
	store := newFakeStore(catalog()...)
	svc := newTestService(store)

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return base })

	user, _ := store.GetUser(context.Background(), 1)
	user.ConfidenceByCategory["shooting"] = 0.6
	user.Attempts = []models.AttemptRecord{{
		DrillID:     2,
		Category:    "shooting",
		Outcome:     models.OutcomeSuccess,
		AttemptedAt: base.AddDate(0, 0, -5),
	}}

	resp, err := svc.Start(context.Background(), 1, models.StartSessionRequest{
		Category:        "shooting",
		DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// Five idle days: confidence is biased down and the session shortened.
	want := 0.6 - 0.14
	if diff := resp.Metadata.ConfidenceBefore - want; diff > 0.0001 || diff < -0.0001 {
		t.Errorf("ConfidenceBefore = %f, want %f after recovery bias", resp.Metadata.ConfidenceBefore, want)
	}
	if resp.DurationMinutes != 10 {
		t.Errorf("DurationMinutes = %d, want capped at 10", resp.DurationMinutes)
	}
}

func TestStartExplanationCadence(t *testing.T) {
	store := newFakeStore(catalog()...)
	svc := newTestService(store)

	user, _ := store.GetUser(context.Background(), 1)
	now := time.Now()
	// Five prior attempts, most recent today: past the always-explain
	// count and off the cadence, so no explanation.
	for i := 0; i < 5; i++ {
		user.Attempts = append(user.Attempts, models.AttemptRecord{
			DrillID:     2,
			Category:    "shooting",
			Outcome:     models.OutcomeSuccess,
			AttemptedAt: now.Add(-time.Duration(5-i) * time.Hour),
		})
	}

	resp, err := svc.Start(context.Background(), 1, models.StartSessionRequest{Category: "shooting"})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if resp.Explanation != "" {
		t.Errorf("sixth session should omit the explanation, got %q", resp.Explanation)
	}
}

func TestCompleteLifecycle(t *testing.T) {
	store := newFakeStore(catalog()...)
	svc := newTestService(store)
	ctx := context.Background()

	start, err := svc.Start(ctx, 1, models.StartSessionRequest{Category: "shooting"})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	resp, err := svc.Complete(ctx, start.SessionID, models.CompleteSessionRequest{
		Outcome: models.OutcomeSuccess,
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	if resp.XPAwarded != 34 {
		t.Errorf("XPAwarded = %d, want 34 for a standard success", resp.XPAwarded)
	}
	if resp.XP.TotalXP != 34 || resp.XP.Level != 1 {
		t.Errorf("XP = %+v, want total 34 at level 1", resp.XP)
	}
	if resp.Streak.CurrentStreakDays != 1 {
		t.Errorf("CurrentStreakDays = %d, want 1", resp.Streak.CurrentStreakDays)
	}
	if diff := resp.CategoryConfidence - 0.53; diff > 0.0001 || diff < -0.0001 {
		t.Errorf("CategoryConfidence = %f, want 0.53", resp.CategoryConfidence)
	}

	user, _ := store.GetUser(ctx, 1)
	if len(user.Attempts) != 1 {
		t.Fatalf("attempt history has %d entries, want 1", len(user.Attempts))
	}
	a := user.Attempts[0]
	if a.DrillID != start.Drill.ID || a.Outcome != models.OutcomeSuccess {
		t.Errorf("recorded attempt = %+v", a)
	}
}

func TestCompleteTwiceFails(t *testing.T) {
	store := newFakeStore(catalog()...)
	svc := newTestService(store)
	ctx := context.Background()

	start, err := svc.Start(ctx, 1, models.StartSessionRequest{Category: "shooting"})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if _, err := svc.Complete(ctx, start.SessionID, models.CompleteSessionRequest{Outcome: models.OutcomeSuccess}); err != nil {
		t.Fatalf("first Complete() error: %v", err)
	}

	_, err = svc.Complete(ctx, start.SessionID, models.CompleteSessionRequest{Outcome: models.OutcomeFail})
	if !errors.Is(err, models.ErrSessionCompleted) {
		t.Fatalf("second Complete() error = %v, want ErrSessionCompleted", err)
	}

	// The duplicate must not have touched progression.
	user, _ := store.GetUser(ctx, 1)
	if len(user.Attempts) != 1 {
		t.Errorf("attempt history has %d entries after duplicate completion, want 1", len(user.Attempts))
	}
	if user.XP.TotalXP != 34 {
		t.Errorf("TotalXP = %d after duplicate completion, want 34", user.XP.TotalXP)
	}
}

func TestCompleteUnknownSession(t *testing.T) {
	svc := newTestService(newFakeStore(catalog()...))

	_, err := svc.Complete(context.Background(), "no-such-session", models.CompleteSessionRequest{
		Outcome: models.OutcomeSuccess,
	})
	if !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("Complete() error = %v, want ErrSessionNotFound", err)
	}
}

func TestCompleteInvalidOutcome(t *testing.T) {
	svc := newTestService(newFakeStore(catalog()...))

	_, err := svc.Complete(context.Background(), "irrelevant", models.CompleteSessionRequest{
		Outcome: "crushed_it",
	})
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("Complete() error = %v, want ErrValidation", err)
	}
}

func TestGetHistoryPagination(t *testing.T) {
	store := newFakeStore(catalog()...)
	svc := newTestService(store)
	ctx := context.Background()

	user, _ := store.GetUser(ctx, 1)
	for i := 0; i < 5; i++ {
		user.Attempts = append(user.Attempts, models.AttemptRecord{
			DrillID:     int64(i + 1),
			Category:    "shooting",
			Outcome:     models.OutcomeSuccess,
			AttemptedAt: time.Now().Add(time.Duration(i) * time.Minute),
		})
	}

	resp, err := svc.GetHistory(ctx, 1, "", 1, 2)
	if err != nil {
		t.Fatalf("GetHistory() error: %v", err)
	}
	if resp.Total != 5 || len(resp.Attempts) != 2 {
		t.Fatalf("page 1 = %d of %d, want 2 of 5", len(resp.Attempts), resp.Total)
	}
	// Newest first.
	if resp.Attempts[0].DrillID != 5 || resp.Attempts[1].DrillID != 4 {
		t.Errorf("page 1 drills = [%d, %d], want [5, 4]", resp.Attempts[0].DrillID, resp.Attempts[1].DrillID)
	}

	last, err := svc.GetHistory(ctx, 1, "", 3, 2)
	if err != nil {
		t.Fatalf("GetHistory() error: %v", err)
	}
	if len(last.Attempts) != 1 || last.Attempts[0].DrillID != 1 {
		t.Errorf("page 3 = %v, want the single oldest attempt", last.Attempts)
	}
}
