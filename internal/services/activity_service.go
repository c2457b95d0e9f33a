package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ActivityConfig holds the suspicious-activity detection thresholds
type ActivityConfig struct {
	FailureThreshold int
	FailureWindow    time.Duration
	IPThreshold      int
	IPWindow         time.Duration
	FanOutThreshold  int
	FanOutWindow     time.Duration
}

// DefaultActivityConfig returns the standard detection thresholds
func DefaultActivityConfig() ActivityConfig {
	return ActivityConfig{
		FailureThreshold: 5,
		FailureWindow:    15 * time.Minute,
		IPThreshold:      3,
		IPWindow:         60 * time.Minute,
		FanOutThreshold:  10,
		FanOutWindow:     60 * time.Minute,
	}
}

// SuspicionReport is the outcome of an activity check. Advisory only: it is
// recorded as an event and never blocks authentication.
type SuspicionReport struct {
	Suspicious         bool
	Reasons            []string
	DistinctIPs        int
	DistinctIdentities int
}

// ActivityService evaluates heuristic rules over the event and attempt trails
// to flag likely credential-stuffing or account-takeover activity
type ActivityService struct {
	events   EventStore
	attempts LedgerRepository
	config   ActivityConfig
	logger   *slog.Logger
}

// NewActivityService creates a new ActivityService
func NewActivityService(events EventStore, attempts LedgerRepository, config ActivityConfig, logger *slog.Logger) *ActivityService {
	return &ActivityService{
		events:   events,
		attempts: attempts,
		config:   config,
		logger:   logger,
	}
}

// CheckSubject evaluates the per-subject rules: repeated ledger failures for
// the identity across all origin IPs in a short window, and sign-ins from
// multiple IP addresses in a short window. Failure events carry no subject
// (they are pre-auth), so the failure count reads the attempt ledger by
// identity; callers must run this before the window's failures are cleared.
func (s *ActivityService) CheckSubject(ctx context.Context, subjectID uuid.UUID, identity string) (*SuspicionReport, error) {
	report := &SuspicionReport{}
	now := time.Now()

	failures, err := s.attempts.CountFailuresByIdentity(ctx, identity, now.Add(-s.config.FailureWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count ledger failures: %w", err)
	}
	if failures >= s.config.FailureThreshold {
		report.Suspicious = true
		report.Reasons = append(report.Reasons, "multiple failed login attempts")
	}

	distinctIPs, err := s.events.CountDistinctIPsBySubject(ctx, subjectID, now.Add(-s.config.IPWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count distinct IPs: %w", err)
	}
	report.DistinctIPs = distinctIPs
	if distinctIPs > s.config.IPThreshold {
		report.Suspicious = true
		report.Reasons = append(report.Reasons, "multiple IP addresses in short time")
	}

	return report, nil
}

// CheckIP evaluates the per-IP fan-out rule: one origin IP failing against
// many distinct identities indicates credential stuffing
func (s *ActivityService) CheckIP(ctx context.Context, originIP string) (*SuspicionReport, error) {
	report := &SuspicionReport{}

	identities, err := s.attempts.CountDistinctIdentitiesByIP(ctx, originIP, time.Now().Add(-s.config.FanOutWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count distinct identities: %w", err)
	}
	report.DistinctIdentities = identities
	if identities > s.config.FanOutThreshold {
		report.Suspicious = true
		report.Reasons = append(report.Reasons, "failures against many identities from one address")
	}

	return report, nil
}
