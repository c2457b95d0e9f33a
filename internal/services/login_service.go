package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/bastion/internal/auth"
	"github.com/BradenHooton/bastion/internal/identity"
	"github.com/BradenHooton/bastion/internal/models"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
	"github.com/google/uuid"
)

// LoginInput carries the credentials and request perimeter metadata for one
// login attempt
type LoginInput struct {
	Identity    string
	Password    string
	OriginIP    string
	UserAgent   string
	CountryCode string
}

// LoginResult is the successful-login outcome
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	SubjectID uuid.UUID
	MFAUsed   bool
}

// LoginService orchestrates a login attempt: lockout evaluation, provider
// authentication, ledger recording, event logging and session issuance.
// Ledger and event writes never fail the flow; a provider outage does.
type LoginService struct {
	provider     identity.Provider
	lockout      *LockoutService
	activity     *ActivityService
	events       *SecurityEventService
	attempts     LedgerRepository
	tokenManager *auth.TokenManager
	attemptTTL   time.Duration
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
}

// NewLoginService creates a new LoginService
func NewLoginService(
	provider identity.Provider,
	lockout *LockoutService,
	activity *ActivityService,
	events *SecurityEventService,
	attempts LedgerRepository,
	tokenManager *auth.TokenManager,
	attemptTTL time.Duration,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *LoginService {
	return &LoginService{
		provider:     provider,
		lockout:      lockout,
		activity:     activity,
		events:       events,
		attempts:     attempts,
		tokenManager: tokenManager,
		attemptTTL:   attemptTTL,
		logger:       logger,
		auditLogger:  auditLogger,
	}
}

// Login runs the full authentication flow for one attempt. Returns
// models.ErrAccountLocked, models.ErrInvalidCredentials or
// models.ErrInternalServer for the terminal failure outcomes.
func (s *LoginService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	decision := s.lockout.Evaluate(ctx, input.Identity, input.OriginIP)
	if decision.Locked {
		s.events.Record(ctx, nil, models.EventAccountLocked, models.LockoutMetadata{
			FailedAttempts: s.lockout.config.MaxFailures,
			WindowMinutes:  int(s.lockout.Window().Minutes()),
		}, input.OriginIP, input.UserAgent)
		return nil, models.ErrAccountLocked
	}

	s.checkFanOut(ctx, input)

	result, err := s.provider.SignIn(ctx, input.Identity, input.Password)
	if err != nil {
		// Provider outage is not a credential verdict: no attempt row, no
		// failure counted against the pair
		s.logger.ErrorContext(ctx, "identity provider unavailable",
			slog.String("origin_ip", input.OriginIP),
			slog.Any("error", err))
		s.events.Record(ctx, nil, models.EventLoginFailure, models.LoginFailureMetadata{
			Reason: "provider_unavailable",
		}, input.OriginIP, input.UserAgent)
		return nil, models.ErrInternalServer
	}

	if !result.OK {
		s.recordFailure(ctx, input, result.FailureReason)
		return nil, models.ErrInvalidCredentials
	}

	return s.recordSuccess(ctx, input, result)
}

// recordFailure appends the failed attempt and its event, then re-evaluates
// the pair so a lockout crossing is logged at the moment it happens
func (s *LoginService) recordFailure(ctx context.Context, input LoginInput, reason string) {
	attempt := &models.LoginAttempt{
		Identity:      input.Identity,
		OriginIP:      input.OriginIP,
		UserAgent:     input.UserAgent,
		Succeeded:     false,
		FailureReason: &reason,
		AttemptedAt:   time.Now(),
		ExpiresAt:     time.Now().Add(s.attemptTTL),
	}
	if _, err := s.attempts.RecordAttempt(ctx, attempt); err != nil {
		s.logger.ErrorContext(ctx, "failed to record login attempt",
			slog.String("origin_ip", input.OriginIP),
			slog.Any("error", err))
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     models.EventLoginFailure,
		Identity:      input.Identity,
		IPAddress:     input.OriginIP,
		UserAgent:     input.UserAgent,
		Success:       false,
		FailureReason: reason,
	})

	s.events.Record(ctx, nil, models.EventLoginFailure, models.LoginFailureMetadata{
		Reason:      reason,
		CountryCode: input.CountryCode,
	}, input.OriginIP, input.UserAgent)

	decision := s.lockout.Evaluate(ctx, input.Identity, input.OriginIP)
	if decision.Locked {
		s.events.Record(ctx, nil, models.EventAccountLocked, models.LockoutMetadata{
			FailedAttempts: s.lockout.config.MaxFailures,
			WindowMinutes:  int(s.lockout.Window().Minutes()),
		}, input.OriginIP, input.UserAgent)
	}
}

// recordSuccess appends the successful attempt, clears the pair's failure
// history, runs the advisory activity checks and mints a session token
func (s *LoginService) recordSuccess(ctx context.Context, input LoginInput, result *identity.SignInResult) (*LoginResult, error) {
	attempt := &models.LoginAttempt{
		Identity:    input.Identity,
		OriginIP:    input.OriginIP,
		UserAgent:   input.UserAgent,
		Succeeded:   true,
		AttemptedAt: time.Now(),
		ExpiresAt:   time.Now().Add(s.attemptTTL),
	}
	if _, err := s.attempts.RecordAttempt(ctx, attempt); err != nil {
		s.logger.ErrorContext(ctx, "failed to record login attempt",
			slog.String("origin_ip", input.OriginIP),
			slog.Any("error", err))
	}

	// The heuristics read the window's failures from the ledger, so they must
	// run before ClearFailures wipes the pair
	subjectID := result.SubjectID
	s.checkSubjectActivity(ctx, subjectID, input)

	if err := s.attempts.ClearFailures(ctx, input.Identity, input.OriginIP); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear login failures",
			slog.String("origin_ip", input.OriginIP),
			slog.Any("error", err))
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: models.EventLoginSuccess,
		SubjectID: result.SubjectID.String(),
		Identity:  input.Identity,
		IPAddress: input.OriginIP,
		UserAgent: input.UserAgent,
		Success:   true,
	})

	s.events.Record(ctx, &subjectID, models.EventLoginSuccess, models.LoginSuccessMetadata{
		MFAUsed:     result.MFAUsed,
		CountryCode: input.CountryCode,
	}, input.OriginIP, input.UserAgent)

	token, expiresAt, err := s.tokenManager.GenerateSessionToken(subjectID, input.Identity)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate session token",
			slog.String("subject_id", subjectID.String()),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		SubjectID: subjectID,
		MFAUsed:   result.MFAUsed,
	}, nil
}

// checkFanOut runs the per-IP credential-stuffing heuristic. Advisory: a hit
// records an event but never blocks the attempt.
func (s *LoginService) checkFanOut(ctx context.Context, input LoginInput) {
	report, err := s.activity.CheckIP(ctx, input.OriginIP)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to run IP activity check",
			slog.String("origin_ip", input.OriginIP),
			slog.Any("error", err))
		return
	}
	if !report.Suspicious {
		return
	}

	s.events.Record(ctx, nil, models.EventSuspiciousActivity, models.SuspiciousActivityMetadata{
		Reasons:            report.Reasons,
		DistinctIdentities: report.DistinctIdentities,
	}, input.OriginIP, input.UserAgent)
}

// checkSubjectActivity runs the per-subject heuristics at success time, while
// the window's failed attempts are still in the ledger
func (s *LoginService) checkSubjectActivity(ctx context.Context, subjectID uuid.UUID, input LoginInput) {
	report, err := s.activity.CheckSubject(ctx, subjectID, input.Identity)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to run subject activity check",
			slog.String("subject_id", subjectID.String()),
			slog.Any("error", err))
		return
	}
	if !report.Suspicious {
		return
	}

	s.events.Record(ctx, &subjectID, models.EventSuspiciousActivity, models.SuspiciousActivityMetadata{
		Reasons:     report.Reasons,
		DistinctIPs: report.DistinctIPs,
	}, input.OriginIP, input.UserAgent)
}
