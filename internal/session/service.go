package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drillcoach/backend/internal/adaptive"
	"github.com/drillcoach/backend/internal/models"
	"github.com/drillcoach/backend/internal/progression"
)

// Service is the session orchestrator: it opens sessions through the
// assignment selector and settles them through the progression ledger.
// Per-user writes are serialized with a keyed mutex so a queue append
// cannot clobber a concurrent confidence update.
type Service struct {
	store    RecordStore
	selector *adaptive.Selector
	ledger   *progression.Ledger
	cfg      adaptive.Config
	now      func() time.Time

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
}

func NewService(store RecordStore, selector *adaptive.Selector, ledger *progression.Ledger, cfg adaptive.Config) *Service {
	return &Service{
		store:     store,
		selector:  selector,
		ledger:    ledger,
		cfg:       cfg,
		now:       time.Now,
		userLocks: make(map[int64]*sync.Mutex),
	}
}

// SetClock overrides the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// ── Start ───────────────────────────────────────────────

// Start opens a session: it assigns a drill adaptively, persists the
// reinforcement-queue change, and records the session as Open.
func (s *Service) Start(ctx context.Context, userID int64, req models.StartSessionRequest) (*models.StartSessionResponse, error) {
	if req.Category == "" {
		return nil, fmt.Errorf("%w: category is required", models.ErrValidation)
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	pool, err := s.store.GetDrillPool(ctx, req.Category)
	if err != nil {
		return nil, fmt.Errorf("load drill pool: %w", err)
	}
	if len(pool) == 0 {
		// Category has no drills; fall back to the full catalog.
		pool, err = s.store.GetDrillPool(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("load drill pool: %w", err)
		}
	}

	now := s.now()
	categoryAttempts := state.CategoryAttempts(req.Category)

	confidence := s.effectiveConfidence(state, categoryAttempts, req)
	recovery := s.inRecoveryMode(categoryAttempts, now)
	if recovery {
		// Gentler re-entry after an absence: bias down pre-clamp.
		confidence -= s.cfg.Recovery.ConfidenceBias
	}

	assignment, err := s.selector.Assign(adaptive.AssignmentInput{
		Category:           req.Category,
		Confidence:         confidence,
		Attempts:           state.Attempts,
		Pool:               pool,
		ReinforcementQueue: state.ReinforcementQueues[req.Category],
		Now:                now,
	})
	if err != nil {
		return nil, err
	}

	state.ReinforcementQueues[req.Category] = assignment.UpdatedQueue
	if err := s.store.PutUser(ctx, state); err != nil {
		return nil, fmt.Errorf("persist reinforcement queue: %w", err)
	}

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = assignment.Drill.DurationMinutes
	}
	if recovery && duration > s.cfg.Recovery.MaxDurationMinutes {
		duration = s.cfg.Recovery.MaxDurationMinutes
	}

	sess := &models.Session{
		SessionID:       uuid.NewString(),
		UserID:          userID,
		Category:        req.Category,
		AssignedDrillID: assignment.Drill.ID,
		IsReinforcement: assignment.Metadata.IsReinforcement,
		DurationMinutes: duration,
		Status:          models.SessionOpen,
		StartedAt:       now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	resp := &models.StartSessionResponse{
		SessionID:       sess.SessionID,
		Drill:           assignment.Drill,
		DurationMinutes: duration,
		Metadata:        assignment.Metadata,
	}
	if s.shouldExplain(len(categoryAttempts)) {
		resp.Explanation = explainAssignment(assignment, recovery)
	}
	return resp, nil
}

// effectiveConfidence resolves the confidence used for assignment. A
// first-ever attempt in a category can be seeded from the caller's skill
// level or an explicit difficulty hint; afterwards the stored value wins.
func (s *Service) effectiveConfidence(state *models.UserProgressionState, categoryAttempts []models.AttemptRecord, req models.StartSessionRequest) float64 {
	if _, tracked := state.ConfidenceByCategory[req.Category]; tracked || len(categoryAttempts) > 0 {
		return state.Confidence(req.Category)
	}
	d := s.cfg.Difficulty
	if req.DifficultyHint >= d.Min && req.DifficultyHint <= d.Max && d.Slope != 0 {
		// Invert the difficulty mapping so the first assignment lands
		// near the requested difficulty.
		return (req.DifficultyHint-d.Base)/d.Slope + 0.5
	}
	if req.SkillLevel != "" {
		return models.ConfidenceSeedForSkillLevel(req.SkillLevel)
	}
	return models.DefaultConfidence
}

// inRecoveryMode reports whether the user's last attempt in the category
// is old enough to warrant a gentler re-entry.
func (s *Service) inRecoveryMode(categoryAttempts []models.AttemptRecord, now time.Time) bool {
	if len(categoryAttempts) == 0 {
		return false
	}
	last := categoryAttempts[len(categoryAttempts)-1].AttemptedAt
	gap := now.Sub(last).Hours() / 24
	return gap >= float64(s.cfg.Recovery.InactivityDays)
}

// shouldExplain applies the explanation cadence: the first few attempts
// in a category always get one, then only every Nth.
func (s *Service) shouldExplain(priorAttempts int) bool {
	if priorAttempts < s.cfg.ExplanationInitialCount {
		return true
	}
	if s.cfg.ExplanationCadence <= 0 {
		return false
	}
	return (priorAttempts+1)%s.cfg.ExplanationCadence == 0
}

func explainAssignment(a *adaptive.Assignment, recovery bool) string {
	switch {
	case recovery:
		return fmt.Sprintf("Welcome back! We picked %q as a short re-entry drill to rebuild momentum.", a.Drill.Title)
	case a.Metadata.IsReinforcement:
		return fmt.Sprintf("We're revisiting %q so you can lock in a skill you've been working on.", a.Drill.Title)
	case a.Metadata.IsStruggling:
		return fmt.Sprintf("We picked %q at a gentler difficulty to help you regain confidence.", a.Drill.Title)
	default:
		return fmt.Sprintf("We picked %q because it matches your current level (difficulty %.0f of %.0f targeted).",
			a.Drill.Title, a.Drill.DifficultyScore, a.Metadata.TargetDifficulty)
	}
}

// ── Complete ────────────────────────────────────────────

// Complete settles an open session: it marks the session completed
// exactly once, runs the progression ledger, appends the attempt record,
// and persists the updated state. Sessions are single-use; a duplicate
// completion is an error, never a silent success.
func (s *Service) Complete(ctx context.Context, sessionID string, req models.CompleteSessionRequest) (*models.CompleteSessionResponse, error) {
	if !models.ValidOutcomes[req.Outcome] {
		return nil, fmt.Errorf("%w: outcome must be success, partial, or fail", models.ErrValidation)
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	lock := s.userLock(sess.UserID)
	lock.Lock()
	defer lock.Unlock()

	// At-most-one effective completion: the store-level CAS is the
	// source of truth, not this read.
	if err := s.store.MarkSessionCompleted(ctx, sessionID); err != nil {
		return nil, err
	}

	drill, err := s.store.GetDrill(ctx, sess.AssignedDrillID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	state, err := s.store.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", sess.UserID, err)
	}

	now := s.now()
	confidence := s.ledger.UpdateConfidence(
		state.Confidence(sess.Category), req.Outcome, sess.IsReinforcement, req.ConfidenceAfter)
	xpAwarded := s.ledger.AwardXP(req.Outcome, sess.IsReinforcement, req.XPEarned)
	streak := s.ledger.UpdateStreak(state.Streak, now)

	state.ConfidenceByCategory[sess.Category] = confidence
	state.XP = models.DeriveXPState(state.XP.TotalXP + int64(xpAwarded))
	state.Streak = streak
	state.Attempts = append(state.Attempts, models.AttemptRecord{
		DrillID:         drill.ID,
		Category:        sess.Category,
		Outcome:         req.Outcome,
		DifficultyScore: drill.DifficultyScore,
		Tags:            append([]string(nil), drill.Tags...),
		AttemptedAt:     now,
	})

	if err := s.store.PutUser(ctx, state); err != nil {
		return nil, fmt.Errorf("persist progression: %w", err)
	}

	return &models.CompleteSessionResponse{
		XP:                 state.XP,
		Streak:             state.Streak,
		XPAwarded:          xpAwarded,
		CategoryConfidence: confidence,
	}, nil
}

// ── Progression Reads ───────────────────────────────────

func (s *Service) GetProgression(ctx context.Context, userID int64) (*models.ProgressionResponse, error) {
	state, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.ProgressionResponse{
		ConfidenceByCategory: state.ConfidenceByCategory,
		XP:                   state.XP,
		Streak:               state.Streak,
		TotalAttempts:        len(state.Attempts),
	}, nil
}

func (s *Service) GetHistory(ctx context.Context, userID int64, category string, page, pageSize int) (*models.HistoryResponse, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}

	state, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	attempts := state.Attempts
	if category != "" {
		attempts = state.CategoryAttempts(category)
	}

	// Newest first.
	reversed := make([]models.AttemptRecord, len(attempts))
	for i, a := range attempts {
		reversed[len(attempts)-1-i] = a
	}

	total := len(reversed)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &models.HistoryResponse{
		Attempts: reversed[start:end],
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}
