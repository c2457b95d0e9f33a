package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
	"github.com/google/uuid"
)

// DataExport bundles everything the service holds about one subject
type DataExport struct {
	SubjectID  uuid.UUID               `json:"subject_id"`
	Identity   string                  `json:"identity"`
	ExportedAt time.Time               `json:"exported_at"`
	Attempts   []*models.LoginAttempt  `json:"login_attempts"`
	Events     []*models.SecurityEvent `json:"security_events"`
}

// ErasureReceipt summarizes a right-to-erasure run
type ErasureReceipt struct {
	AttemptRows int64 `json:"attempt_rows_deleted"`
	EventRows   int64 `json:"event_rows_anonymized"`
}

// PrivacyService implements the data-subject operations: export, erasure and
// login history
type PrivacyService struct {
	attempts LedgerRepository
	events   EventStore
	recorder *SecurityEventService
	logger   *slog.Logger
}

// NewPrivacyService creates a new PrivacyService
func NewPrivacyService(attempts LedgerRepository, events EventStore, recorder *SecurityEventService, logger *slog.Logger) *PrivacyService {
	return &PrivacyService{
		attempts: attempts,
		events:   events,
		recorder: recorder,
		logger:   logger,
	}
}

// LoginHistory returns the subject's most recent attempts, newest first
func (s *PrivacyService) LoginHistory(ctx context.Context, identity string, limit int) ([]*models.LoginAttempt, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	history, err := s.attempts.History(ctx, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch login history: %w", err)
	}

	return history, nil
}

// Export assembles the subject's complete trail for a data-access request and
// records the export as a security event
func (s *PrivacyService) Export(ctx context.Context, subjectID uuid.UUID, identity, originIP, userAgent string) (*DataExport, error) {
	attempts, err := s.attempts.History(ctx, identity, 1000)
	if err != nil {
		return nil, fmt.Errorf("failed to export login attempts: %w", err)
	}

	events, err := s.events.GetBySubjectID(ctx, subjectID, 1000)
	if err != nil {
		return nil, fmt.Errorf("failed to export security events: %w", err)
	}

	s.recorder.Record(ctx, &subjectID, models.EventDataExport, nil, originIP, userAgent)

	return &DataExport{
		SubjectID:  subjectID,
		Identity:   identity,
		ExportedAt: time.Now().UTC(),
		Attempts:   attempts,
		Events:     events,
	}, nil
}

// Erase handles a right-to-erasure request: attempt rows are deleted outright,
// event rows are kept for the audit trail but stripped of subject linkage and
// perimeter metadata. The receipt event is written after anonymization so it
// survives as an unlinked tombstone.
func (s *PrivacyService) Erase(ctx context.Context, subjectID uuid.UUID, identity, originIP, userAgent string) (*ErasureReceipt, error) {
	attemptRows, err := s.attempts.DeleteByIdentity(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to delete login attempts: %w", err)
	}

	eventRows, err := s.events.AnonymizeBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to anonymize security events: %w", err)
	}

	s.logger.InfoContext(ctx, "data erasure completed",
		slog.String("subject_id", subjectID.String()),
		slog.Int64("attempt_rows", attemptRows),
		slog.Int64("event_rows", eventRows))

	s.recorder.Record(ctx, nil, models.EventDataDeletion, models.DataLifecycleMetadata{
		AttemptRows: int(attemptRows),
		EventRows:   int(eventRows),
	}, "", "")

	return &ErasureReceipt{
		AttemptRows: attemptRows,
		EventRows:   eventRows,
	}, nil
}
