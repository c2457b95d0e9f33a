package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
	"github.com/google/uuid"
)

// EventStore defines the security-event persistence operations
type EventStore interface {
	Create(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error)
	GetBySubjectID(ctx context.Context, subjectID uuid.UUID, limit int) ([]*models.SecurityEvent, error)
	CountDistinctIPsBySubject(ctx context.Context, subjectID uuid.UUID, since time.Time) (int, error)
	AnonymizeBySubject(ctx context.Context, subjectID uuid.UUID) (int64, error)
}

// AlertNotifier is the fire-and-forget side channel for critical events
type AlertNotifier interface {
	Notify(ctx context.Context, event *models.SecurityEvent) error
}

// SecurityEventService records security events with a dual-write pattern
// (immediate slog output plus durable row). Persistence failures are logged
// and swallowed so audit unavailability never blocks authentication.
type SecurityEventService struct {
	repo        EventStore
	notifier    AlertNotifier
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewSecurityEventService creates a new SecurityEventService
func NewSecurityEventService(repo EventStore, notifier AlertNotifier, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *SecurityEventService {
	return &SecurityEventService{
		repo:        repo,
		notifier:    notifier,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Record appends a security event. SubjectID is nil for pre-authentication
// events. Critical events additionally trigger the alert channel.
func (s *SecurityEventService) Record(ctx context.Context, subjectID *uuid.UUID, eventType string, metadata models.EventMetadata, originIP, userAgent string) {
	event := &models.SecurityEvent{
		SubjectID: subjectID,
		EventType: eventType,
		Metadata:  metadata,
		OriginIP:  originIP,
		UserAgent: userAgent,
	}

	// Dual-write: immediate slog output
	auditEvent := pkglogger.AuditEvent{
		EventType: eventType,
		IPAddress: originIP,
	}
	if subjectID != nil {
		auditEvent.SubjectID = subjectID.String()
	}
	s.auditLogger.LogSecurityEvent(auditEvent)

	created, err := s.repo.Create(ctx, event)
	if err != nil {
		// Non-critical: never fail the calling flow on audit persistence errors
		s.logger.ErrorContext(ctx, "failed to persist security event",
			slog.String("event_type", eventType),
			slog.Any("error", err))
		created = event
	}

	if models.IsCriticalEvent(eventType) {
		s.alert(created)
	}
}

// alert dispatches the critical-event notification without blocking or
// failing the caller
func (s *SecurityEventService) alert(event *models.SecurityEvent) {
	if s.notifier == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.notifier.Notify(ctx, event); err != nil {
			s.logger.Error("failed to send critical event alert",
				slog.String("event_type", event.EventType),
				slog.Any("error", err))
		}
	}()
}

// Query retrieves a subject's events, newest first, bounded
func (s *SecurityEventService) Query(ctx context.Context, subjectID uuid.UUID, limit int) ([]*models.SecurityEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	events, err := s.repo.GetBySubjectID(ctx, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}

	return events, nil
}
