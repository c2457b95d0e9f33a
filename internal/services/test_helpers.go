package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/bastion/internal/identity"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/google/uuid"
)

// MockLedgerRepository implements LedgerRepository for testing. By default it
// keeps attempts in memory and answers queries from that state; individual
// Func fields override behavior for error injection.
type MockLedgerRepository struct {
	mu       sync.Mutex
	Attempts []*models.LoginAttempt

	RecordAttemptFunc               func(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error)
	CountFailuresFunc               func(ctx context.Context, identity, originIP string, since time.Time) (int, error)
	CountFailuresByIdentityFunc     func(ctx context.Context, identity string, since time.Time) (int, error)
	ClearFailuresFunc               func(ctx context.Context, identity, originIP string) error
	HistoryFunc                     func(ctx context.Context, identity string, limit int) ([]*models.LoginAttempt, error)
	CountDistinctIdentitiesByIPFunc func(ctx context.Context, originIP string, since time.Time) (int, error)
	DeleteByIdentityFunc            func(ctx context.Context, identity string) (int64, error)
}

func NewMockLedgerRepository() *MockLedgerRepository {
	return &MockLedgerRepository{}
}

func (m *MockLedgerRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt.ID = uuid.New()
	m.Attempts = append(m.Attempts, attempt)
	return attempt, nil
}

func (m *MockLedgerRepository) CountFailures(ctx context.Context, identity, originIP string, since time.Time) (int, error) {
	if m.CountFailuresFunc != nil {
		return m.CountFailuresFunc(ctx, identity, originIP, since)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.Attempts {
		// Inclusive lower bound, matching the repository's attempted_at >= $3
		if !a.Succeeded && a.Identity == identity && a.OriginIP == originIP && !a.AttemptedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MockLedgerRepository) CountFailuresByIdentity(ctx context.Context, identity string, since time.Time) (int, error) {
	if m.CountFailuresByIdentityFunc != nil {
		return m.CountFailuresByIdentityFunc(ctx, identity, since)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.Attempts {
		if !a.Succeeded && a.Identity == identity && !a.AttemptedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MockLedgerRepository) ClearFailures(ctx context.Context, identity, originIP string) error {
	if m.ClearFailuresFunc != nil {
		return m.ClearFailuresFunc(ctx, identity, originIP)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.Attempts[:0]
	for _, a := range m.Attempts {
		if a.Succeeded || a.Identity != identity || a.OriginIP != originIP {
			kept = append(kept, a)
		}
	}
	m.Attempts = kept
	return nil
}

func (m *MockLedgerRepository) History(ctx context.Context, identity string, limit int) ([]*models.LoginAttempt, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, identity, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var history []*models.LoginAttempt
	for i := len(m.Attempts) - 1; i >= 0 && len(history) < limit; i-- {
		if m.Attempts[i].Identity == identity {
			history = append(history, m.Attempts[i])
		}
	}
	return history, nil
}

func (m *MockLedgerRepository) CountDistinctIdentitiesByIP(ctx context.Context, originIP string, since time.Time) (int, error) {
	if m.CountDistinctIdentitiesByIPFunc != nil {
		return m.CountDistinctIdentitiesByIPFunc(ctx, originIP, since)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	identities := make(map[string]struct{})
	for _, a := range m.Attempts {
		if !a.Succeeded && a.OriginIP == originIP && !a.AttemptedAt.Before(since) {
			identities[a.Identity] = struct{}{}
		}
	}
	return len(identities), nil
}

func (m *MockLedgerRepository) DeleteByIdentity(ctx context.Context, identity string) (int64, error) {
	if m.DeleteByIdentityFunc != nil {
		return m.DeleteByIdentityFunc(ctx, identity)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.Attempts[:0]
	var deleted int64
	for _, a := range m.Attempts {
		if a.Identity == identity {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	m.Attempts = kept
	return deleted, nil
}

// MockEventStore implements EventStore for testing
type MockEventStore struct {
	mu            sync.Mutex
	CreatedEvents []*models.SecurityEvent

	CreateFunc                    func(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error)
	GetBySubjectIDFunc            func(ctx context.Context, subjectID uuid.UUID, limit int) ([]*models.SecurityEvent, error)
	CountDistinctIPsBySubjectFunc func(ctx context.Context, subjectID uuid.UUID, since time.Time) (int, error)
	AnonymizeBySubjectFunc        func(ctx context.Context, subjectID uuid.UUID) (int64, error)
}

func NewMockEventStore() *MockEventStore {
	return &MockEventStore{}
}

func (m *MockEventStore) Create(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = uuid.New()
	event.OccurredAt = time.Now()
	m.CreatedEvents = append(m.CreatedEvents, event)
	return event, nil
}

func (m *MockEventStore) GetBySubjectID(ctx context.Context, subjectID uuid.UUID, limit int) ([]*models.SecurityEvent, error) {
	if m.GetBySubjectIDFunc != nil {
		return m.GetBySubjectIDFunc(ctx, subjectID, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var events []*models.SecurityEvent
	for i := len(m.CreatedEvents) - 1; i >= 0 && len(events) < limit; i-- {
		e := m.CreatedEvents[i]
		if e.SubjectID != nil && *e.SubjectID == subjectID {
			events = append(events, e)
		}
	}
	return events, nil
}

func (m *MockEventStore) CountDistinctIPsBySubject(ctx context.Context, subjectID uuid.UUID, since time.Time) (int, error) {
	if m.CountDistinctIPsBySubjectFunc != nil {
		return m.CountDistinctIPsBySubjectFunc(ctx, subjectID, since)
	}
	return 0, nil
}

func (m *MockEventStore) AnonymizeBySubject(ctx context.Context, subjectID uuid.UUID) (int64, error) {
	if m.AnonymizeBySubjectFunc != nil {
		return m.AnonymizeBySubjectFunc(ctx, subjectID)
	}
	return 0, nil
}

// EventsOfType returns the recorded events matching the type, for assertions
func (m *MockEventStore) EventsOfType(eventType string) []*models.SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var events []*models.SecurityEvent
	for _, e := range m.CreatedEvents {
		if e.EventType == eventType {
			events = append(events, e)
		}
	}
	return events
}

// MockAlertNotifier implements AlertNotifier for testing. Notified receives
// each event so tests can wait on the asynchronous alert dispatch.
type MockAlertNotifier struct {
	Notified chan *models.SecurityEvent

	NotifyFunc func(ctx context.Context, event *models.SecurityEvent) error
}

func NewMockAlertNotifier() *MockAlertNotifier {
	return &MockAlertNotifier{
		Notified: make(chan *models.SecurityEvent, 16),
	}
}

func (m *MockAlertNotifier) Notify(ctx context.Context, event *models.SecurityEvent) error {
	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, event)
	}
	m.Notified <- event
	return nil
}

// MockProvider implements identity.Provider for testing
type MockProvider struct {
	SignInFunc             func(ctx context.Context, identityStr, credential string) (*identity.SignInResult, error)
	EnrollMFAFunc          func(ctx context.Context, subjectID uuid.UUID) (*identity.MFAEnrollment, error)
	VerifyMFAChallengeFunc func(ctx context.Context, subjectID uuid.UUID, factorID, code string) (bool, error)
}

func (m *MockProvider) SignIn(ctx context.Context, identityStr, credential string) (*identity.SignInResult, error) {
	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, identityStr, credential)
	}
	return &identity.SignInResult{OK: false, FailureReason: identity.ReasonInvalidCredentials}, nil
}

func (m *MockProvider) EnrollMFA(ctx context.Context, subjectID uuid.UUID) (*identity.MFAEnrollment, error) {
	if m.EnrollMFAFunc != nil {
		return m.EnrollMFAFunc(ctx, subjectID)
	}
	return &identity.MFAEnrollment{FactorID: "factor_test", SecretURI: "otpauth://totp/test"}, nil
}

func (m *MockProvider) VerifyMFAChallenge(ctx context.Context, subjectID uuid.UUID, factorID, code string) (bool, error) {
	if m.VerifyMFAChallengeFunc != nil {
		return m.VerifyMFAChallengeFunc(ctx, subjectID, factorID, code)
	}
	return true, nil
}
