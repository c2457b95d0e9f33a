package services_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/BradenHooton/bastion/internal/auth"
	"github.com/BradenHooton/bastion/internal/identity"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/BradenHooton/bastion/internal/services"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginFixture struct {
	service  *services.LoginService
	provider *services.MockProvider
	attempts *services.MockLedgerRepository
	events   *services.MockEventStore
}

func newLoginFixture() *loginFixture {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	auditLogger := pkglogger.NewAuditLogger(logger)

	provider := &services.MockProvider{}
	attempts := services.NewMockLedgerRepository()
	events := services.NewMockEventStore()

	lockout := services.NewLockoutService(attempts, services.DefaultLockoutConfig(), logger)
	activity := services.NewActivityService(events, attempts, services.DefaultActivityConfig(), logger)
	eventService := services.NewSecurityEventService(events, nil, logger, auditLogger)
	tokenManager := auth.NewTokenManager("test-secret-key-with-enough-entropy", 15*time.Minute)

	service := services.NewLoginService(
		provider, lockout, activity, eventService, attempts,
		tokenManager, 24*time.Hour, logger, auditLogger,
	)

	return &loginFixture{
		service:  service,
		provider: provider,
		attempts: attempts,
		events:   events,
	}
}

func okSignIn(subjectID uuid.UUID) func(ctx context.Context, identityStr, credential string) (*identity.SignInResult, error) {
	return func(ctx context.Context, identityStr, credential string) (*identity.SignInResult, error) {
		return &identity.SignInResult{OK: true, SubjectID: subjectID}, nil
	}
}

func TestLoginServiceLogin_Success(t *testing.T) {
	f := newLoginFixture()
	subjectID := uuid.New()
	f.provider.SignInFunc = okSignIn(subjectID)

	result, err := f.service.Login(context.Background(), services.LoginInput{
		Identity:  "test@example.com",
		Password:  "correct-horse",
		OriginIP:  "192.168.1.1",
		UserAgent: "Mozilla/5.0",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, subjectID, result.SubjectID)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), result.ExpiresAt, 5*time.Second)

	require.Len(t, f.attempts.Attempts, 1)
	assert.True(t, f.attempts.Attempts[0].Succeeded)

	successEvents := f.events.EventsOfType(models.EventLoginSuccess)
	require.Len(t, successEvents, 1)
	assert.Equal(t, subjectID, *successEvents[0].SubjectID)
}

func TestLoginServiceLogin_InvalidCredentials(t *testing.T) {
	f := newLoginFixture()

	result, err := f.service.Login(context.Background(), services.LoginInput{
		Identity: "test@example.com",
		Password: "wrong",
		OriginIP: "192.168.1.1",
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	require.Len(t, f.attempts.Attempts, 1)
	attempt := f.attempts.Attempts[0]
	assert.False(t, attempt.Succeeded)
	require.NotNil(t, attempt.FailureReason)
	assert.Equal(t, identity.ReasonInvalidCredentials, *attempt.FailureReason)

	failureEvents := f.events.EventsOfType(models.EventLoginFailure)
	require.Len(t, failureEvents, 1)
	assert.Nil(t, failureEvents[0].SubjectID)
}

func TestLoginServiceLogin_LockedAfterRepeatedFailures(t *testing.T) {
	f := newLoginFixture()
	ctx := context.Background()
	input := services.LoginInput{
		Identity: "test@example.com",
		Password: "wrong",
		OriginIP: "192.168.1.1",
	}

	for i := 0; i < 5; i++ {
		_, err := f.service.Login(ctx, input)
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	// Sixth attempt is rejected before the provider is consulted
	providerCalled := false
	f.provider.SignInFunc = func(ctx context.Context, identityStr, credential string) (*identity.SignInResult, error) {
		providerCalled = true
		return &identity.SignInResult{OK: true, SubjectID: uuid.New()}, nil
	}

	_, err := f.service.Login(ctx, input)
	assert.ErrorIs(t, err, models.ErrAccountLocked)
	assert.False(t, providerCalled)

	// The crossing and the rejected attempt both log an account_locked event
	lockedEvents := f.events.EventsOfType(models.EventAccountLocked)
	assert.NotEmpty(t, lockedEvents)
	// No attempt row for the rejected attempt
	assert.Len(t, f.attempts.Attempts, 5)
}

func TestLoginServiceLogin_SuccessClearsFailures(t *testing.T) {
	f := newLoginFixture()
	ctx := context.Background()
	input := services.LoginInput{
		Identity: "test@example.com",
		Password: "wrong",
		OriginIP: "192.168.1.1",
	}

	for i := 0; i < 4; i++ {
		_, _ = f.service.Login(ctx, input)
	}

	f.provider.SignInFunc = okSignIn(uuid.New())
	input.Password = "correct-horse"
	_, err := f.service.Login(ctx, input)
	require.NoError(t, err)

	// Only the successful row remains; the pair starts fresh
	require.Len(t, f.attempts.Attempts, 1)
	assert.True(t, f.attempts.Attempts[0].Succeeded)

	f.provider.SignInFunc = nil
	input.Password = "wrong"
	_, err = f.service.Login(ctx, input)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestLoginServiceLogin_FailuresScopedToPair(t *testing.T) {
	f := newLoginFixture()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = f.service.Login(ctx, services.LoginInput{
			Identity: "test@example.com",
			Password: "wrong",
			OriginIP: "192.168.1.1",
		})
	}

	// The same identity from another address still reaches the provider
	subjectID := uuid.New()
	f.provider.SignInFunc = okSignIn(subjectID)
	result, err := f.service.Login(ctx, services.LoginInput{
		Identity: "test@example.com",
		Password: "correct-horse",
		OriginIP: "10.0.0.1",
	})

	require.NoError(t, err)
	assert.Equal(t, subjectID, result.SubjectID)
}

func TestLoginServiceLogin_ProviderOutage(t *testing.T) {
	f := newLoginFixture()
	f.provider.SignInFunc = func(ctx context.Context, identityStr, credential string) (*identity.SignInResult, error) {
		return nil, errors.New("identity provider returned status 503")
	}

	_, err := f.service.Login(context.Background(), services.LoginInput{
		Identity: "test@example.com",
		Password: "correct-horse",
		OriginIP: "192.168.1.1",
	})

	assert.ErrorIs(t, err, models.ErrInternalServer)

	// An outage is not a credential verdict: nothing counts against the pair
	assert.Empty(t, f.attempts.Attempts)

	failureEvents := f.events.EventsOfType(models.EventLoginFailure)
	require.Len(t, failureEvents, 1)
	assert.Equal(t, models.LoginFailureMetadata{Reason: "provider_unavailable"}, failureEvents[0].Metadata)
}

func TestLoginServiceLogin_LedgerFailureDoesNotBlockLogin(t *testing.T) {
	f := newLoginFixture()
	subjectID := uuid.New()
	f.provider.SignInFunc = okSignIn(subjectID)
	f.attempts.RecordAttemptFunc = func(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
		return nil, errors.New("connection refused")
	}

	result, err := f.service.Login(context.Background(), services.LoginInput{
		Identity: "test@example.com",
		Password: "correct-horse",
		OriginIP: "192.168.1.1",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestLoginServiceLogin_RepeatedFailuresFlaggedOnSuccess(t *testing.T) {
	f := newLoginFixture()
	ctx := context.Background()

	// Failures spread across addresses: no single pair reaches the lockout
	// threshold, but the identity's window does
	for _, originIP := range []string{"192.168.1.1", "10.0.0.1"} {
		for i := 0; i < 4; i++ {
			_, err := f.service.Login(ctx, services.LoginInput{
				Identity: "test@example.com",
				Password: "wrong",
				OriginIP: originIP,
			})
			assert.ErrorIs(t, err, models.ErrInvalidCredentials)
		}
	}

	f.provider.SignInFunc = okSignIn(uuid.New())
	_, err := f.service.Login(ctx, services.LoginInput{
		Identity: "test@example.com",
		Password: "correct-horse",
		OriginIP: "172.16.0.1",
	})
	require.NoError(t, err)

	suspicious := f.events.EventsOfType(models.EventSuspiciousActivity)
	require.NotEmpty(t, suspicious)
	metadata, ok := suspicious[0].Metadata.(models.SuspiciousActivityMetadata)
	require.True(t, ok)
	assert.Contains(t, metadata.Reasons, "multiple failed login attempts")
}

func TestLoginServiceLogin_FanOutRecordsSuspiciousActivity(t *testing.T) {
	f := newLoginFixture()
	f.attempts.CountDistinctIdentitiesByIPFunc = func(ctx context.Context, originIP string, since time.Time) (int, error) {
		return 12, nil
	}
	f.provider.SignInFunc = okSignIn(uuid.New())

	_, err := f.service.Login(context.Background(), services.LoginInput{
		Identity: "test@example.com",
		Password: "correct-horse",
		OriginIP: "192.168.1.1",
	})
	require.NoError(t, err)

	suspicious := f.events.EventsOfType(models.EventSuspiciousActivity)
	require.NotEmpty(t, suspicious)
	metadata, ok := suspicious[0].Metadata.(models.SuspiciousActivityMetadata)
	require.True(t, ok)
	assert.Contains(t, metadata.Reasons, "failures against many identities from one address")
	assert.Equal(t, 12, metadata.DistinctIdentities)
}
