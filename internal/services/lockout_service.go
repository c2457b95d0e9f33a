package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
)

// LedgerRepository defines the attempt-ledger operations used by the services layer
type LedgerRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error)
	CountFailures(ctx context.Context, identity, originIP string, since time.Time) (int, error)
	CountFailuresByIdentity(ctx context.Context, identity string, since time.Time) (int, error)
	ClearFailures(ctx context.Context, identity, originIP string) error
	History(ctx context.Context, identity string, limit int) ([]*models.LoginAttempt, error)
	CountDistinctIdentitiesByIP(ctx context.Context, originIP string, since time.Time) (int, error)
	DeleteByIdentity(ctx context.Context, identity string) (int64, error)
}

// LockoutConfig holds the lockout policy parameters
type LockoutConfig struct {
	MaxFailures int
	Window      time.Duration
}

// DefaultLockoutConfig returns the standard policy: 5 failures in 15 minutes
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxFailures: 5,
		Window:      15 * time.Minute,
	}
}

// LockoutService decides whether an (identity, origin IP) pair may attempt to
// authenticate, based on failed attempts within the trailing window
type LockoutService struct {
	repo   LedgerRepository
	config LockoutConfig
	logger *slog.Logger
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(repo LedgerRepository, config LockoutConfig, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		repo:   repo,
		config: config,
		logger: logger,
	}
}

// Message is the fixed client-facing lockout message. The window length is an
// approximation, not an exact unlock time.
func (s *LockoutService) Message() string {
	return fmt.Sprintf("Too many failed login attempts. Please try again in %d minutes.", int(s.config.Window.Minutes()))
}

// Window returns the configured lockout window
func (s *LockoutService) Window() time.Duration {
	return s.config.Window
}

// Evaluate computes the lockout decision for an (identity, origin IP) pair.
// The window is anchored to now on every call, so the lock clears once the
// oldest failures age out rather than a fixed duration after the lock fired.
// Fails open on storage errors: availability is prioritized over enforcement.
func (s *LockoutService) Evaluate(ctx context.Context, identity, originIP string) models.LockoutDecision {
	since := time.Now().Add(-s.config.Window)

	failures, err := s.repo.CountFailures(ctx, identity, originIP, since)
	if err != nil {
		s.logger.Error("failed to count login failures",
			slog.String("origin_ip", originIP),
			slog.Any("error", err))
		return models.LockoutDecision{Locked: false, RemainingAttempts: s.config.MaxFailures}
	}

	if failures >= s.config.MaxFailures {
		s.logger.Warn("account pair locked out",
			slog.String("origin_ip", originIP),
			slog.Int("failed_attempts", failures))
		return models.LockoutDecision{
			Locked:  true,
			Message: s.Message(),
		}
	}

	remaining := s.config.MaxFailures - failures
	if remaining < 0 {
		remaining = 0
	}

	return models.LockoutDecision{Locked: false, RemainingAttempts: remaining}
}
