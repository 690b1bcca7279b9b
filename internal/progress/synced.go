package progress

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

// SyncConfig tunes the hosted sync path
type SyncConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// consecutive failures before the breaker opens
	TripAfter    int
	OpenTimeout  time.Duration
}

// DefaultSyncConfig returns the defaults used by the daemon
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		TripAfter:    5,
		OpenTimeout:  30 * time.Second,
	}
}

// SyncedStore writes to a local store first and mirrors to a hosted store.
// The local store is authoritative: hosted failures are logged, never returned.
type SyncedStore struct {
	local  Store
	remote Store
	logger *zap.Logger

	saveBreaker circuitbreaker.CircuitBreaker[struct{}]
	saveRetry   retry.Retry[struct{}]
	getBreaker  circuitbreaker.CircuitBreaker[*domain.UserProgress]
}

// NewSyncedStore wraps local and remote. A nil remote makes this a
// pass-through to local.
func NewSyncedStore(local, remote Store, cfg SyncConfig, logger *zap.Logger) *SyncedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = 5
	}

	s := &SyncedStore{local: local, remote: remote, logger: logger}
	if remote == nil {
		return s
	}

	trip := func(counts circuitbreaker.Counts) bool {
		return int(counts.ConsecutiveFailures) >= cfg.TripAfter
	}
	onChange := func(from, to circuitbreaker.State) {
		logger.Warn("hosted progress circuit breaker state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}

	s.saveBreaker = circuitbreaker.New[struct{}](circuitbreaker.Config{
		MaxRequests:   1,
		Interval:      time.Minute,
		Timeout:       cfg.OpenTimeout,
		ReadyToTrip:   trip,
		OnStateChange: onChange,
	})
	s.getBreaker = circuitbreaker.New[*domain.UserProgress](circuitbreaker.Config{
		MaxRequests:   1,
		Interval:      time.Minute,
		Timeout:       cfg.OpenTimeout,
		ReadyToTrip:   trip,
		OnStateChange: onChange,
	})
	s.saveRetry = retry.New[struct{}](retry.Config{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.InitialDelay,
		MaxDelay:      cfg.MaxDelay,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable: func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
	})
	return s
}

// Get reads the local record. A user unknown locally is looked up in the
// hosted store and cached locally when found.
func (s *SyncedStore) Get(ctx context.Context, userID string) (*domain.UserProgress, error) {
	p, err := s.local.Get(ctx, userID)
	if err == nil || s.remote == nil || !errors.Is(err, domain.ErrProgressNotFound) {
		return p, err
	}

	hosted, rerr := s.getBreaker.Execute(ctx, func(ctx context.Context) (*domain.UserProgress, error) {
		hp, err := s.remote.Get(ctx, userID)
		if errors.Is(err, domain.ErrProgressNotFound) {
			// a missing record is an answer, not a failure
			return nil, nil
		}
		return hp, err
	})
	if rerr != nil {
		s.logger.Warn("hosted progress lookup failed", zap.String("user_id", userID), zap.Error(rerr))
		return nil, err
	}
	if hosted == nil {
		return nil, err
	}

	if serr := s.local.Save(ctx, hosted); serr != nil {
		s.logger.Warn("caching hosted progress failed", zap.String("user_id", userID), zap.Error(serr))
	}
	return hosted, nil
}

// Save persists locally, then mirrors to the hosted store
func (s *SyncedStore) Save(ctx context.Context, p *domain.UserProgress) error {
	if err := s.local.Save(ctx, p); err != nil {
		return err
	}
	if s.remote == nil {
		return nil
	}

	_, err := s.saveBreaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return s.saveRetry.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.remote.Save(ctx, p)
		})
	})
	if err != nil {
		s.logger.Warn("hosted progress sync failed", zap.String("user_id", p.UserID), zap.Error(err))
	}
	return nil
}
