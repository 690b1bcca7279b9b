package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

// Leaderboard receives XP awards
type Leaderboard interface {
	AddXP(ctx context.Context, userID string, xp int) error
}

// Outcome describes what one recorded attempt changed
type Outcome struct {
	Progress        *domain.UserProgress
	XPAwarded       int
	FirstCompletion bool
	LeveledUp       bool
}

// Service applies grading results to user progress
type Service struct {
	store  Store
	board  Leaderboard
	logger *zap.Logger
	now    func() time.Time

	// serializes read-modify-write cycles on the store
	mu sync.Mutex
}

// Option configures a Service
type Option func(*Service)

// WithLeaderboard forwards XP awards to the leaderboard
func WithLeaderboard(b Leaderboard) Option {
	return func(s *Service) { s.board = b }
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a progress service over the store
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the user's progress, or a fresh level-1 record for unknown users
func (s *Service) Get(ctx context.Context, userID string) (*domain.UserProgress, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.CurrentStreak = currentStreak(p.CurrentStreak, p.LastSolvedAt, s.now())
	return p, nil
}

func (s *Service) load(ctx context.Context, userID string) (*domain.UserProgress, error) {
	p, err := s.store.Get(ctx, userID)
	if errors.Is(err, domain.ErrProgressNotFound) {
		return domain.NewUserProgress(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	if p.Tasks == nil {
		p.Tasks = make(map[string]*domain.TaskProgress)
	}
	return p, nil
}

// RecordAttempt applies one grading result. The first passing attempt at a
// task awards its XP; later passes only update attempt statistics.
func (s *Service) RecordAttempt(ctx context.Context, userID string, task *domain.Task, result *domain.ExecutionResult, lang domain.Language, source string) (*Outcome, error) {
	if task == nil || result == nil {
		return nil, fmt.Errorf("%w: task and result are required", domain.ErrInvalidInput)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tp, ok := p.Tasks[task.ID]
	if !ok {
		tp = &domain.TaskProgress{TaskID: task.ID}
		p.Tasks[task.ID] = tp
	}
	tp.Attempts++
	tp.PassedTests = result.PassedTests
	tp.TotalTests = result.TotalTests
	tp.LastCode = source
	tp.Language = lang
	tp.LastAttempt = now
	p.LastActivity = now

	out := &Outcome{Progress: p}
	if result.Success {
		if tp.BestTime == 0 || result.Duration < tp.BestTime {
			tp.BestTime = result.Duration
		}
		p.CurrentStreak = nextStreak(p.CurrentStreak, p.LastSolvedAt, now)
		p.LastSolvedAt = now

		if !p.HasCompleted(task.ID) {
			completedAt := now
			tp.Completed = true
			tp.CompletedAt = &completedAt
			p.CompletedTasks = append(p.CompletedTasks, task.ID)

			before := p.Level
			p.TotalXP += task.XPReward
			p.Level = domain.LevelForXP(p.TotalXP)

			out.XPAwarded = task.XPReward
			out.FirstCompletion = true
			out.LeveledUp = p.Level > before
		}
	}
	p.UpdatedAt = now

	if err := s.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save progress: %w", err)
	}

	if out.XPAwarded > 0 && s.board != nil {
		if err := s.board.AddXP(ctx, userID, out.XPAwarded); err != nil {
			s.logger.Warn("leaderboard update failed",
				zap.String("user_id", userID),
				zap.Int("xp", out.XPAwarded),
				zap.Error(err))
		}
	}

	s.logger.Debug("attempt recorded",
		zap.String("user_id", userID),
		zap.String("task_id", task.ID),
		zap.Bool("success", result.Success),
		zap.Int("xp_awarded", out.XPAwarded),
		zap.Int("level", p.Level))

	return out, nil
}
