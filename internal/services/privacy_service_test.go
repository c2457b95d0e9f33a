package services_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
	"github.com/BradenHooton/bastion/internal/services"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPrivacyFixture() (*services.PrivacyService, *services.MockLedgerRepository, *services.MockEventStore) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	attempts := services.NewMockLedgerRepository()
	events := services.NewMockEventStore()
	recorder := services.NewSecurityEventService(events, nil, logger, pkglogger.NewAuditLogger(logger))
	return services.NewPrivacyService(attempts, events, recorder, logger), attempts, events
}

func TestPrivacyServiceLoginHistory_NewestFirst(t *testing.T) {
	service, attempts, _ := newPrivacyFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = attempts.RecordAttempt(ctx, &models.LoginAttempt{
			Identity:    "test@example.com",
			OriginIP:    "192.168.1.1",
			Succeeded:   true,
			AttemptedAt: time.Now().Add(time.Duration(i) * time.Minute),
		})
	}
	_, _ = attempts.RecordAttempt(ctx, &models.LoginAttempt{
		Identity:    "other@example.com",
		OriginIP:    "10.0.0.1",
		Succeeded:   true,
		AttemptedAt: time.Now(),
	})

	history, err := service.LoginHistory(ctx, "test@example.com", 10)

	require.NoError(t, err)
	assert.Len(t, history, 3)
	for _, attempt := range history {
		assert.Equal(t, "test@example.com", attempt.Identity)
	}
}

func TestPrivacyServiceLoginHistory_ClampsLimit(t *testing.T) {
	service, attempts, _ := newPrivacyFixture()
	var gotLimit int
	attempts.HistoryFunc = func(ctx context.Context, identity string, limit int) ([]*models.LoginAttempt, error) {
		gotLimit = limit
		return nil, nil
	}

	_, err := service.LoginHistory(context.Background(), "test@example.com", -1)
	assert.NoError(t, err)
	assert.Equal(t, 20, gotLimit)

	_, err = service.LoginHistory(context.Background(), "test@example.com", 1000)
	assert.NoError(t, err)
	assert.Equal(t, 20, gotLimit)
}

func TestPrivacyServiceExport_AssemblesTrail(t *testing.T) {
	service, attempts, events := newPrivacyFixture()
	ctx := context.Background()
	subjectID := uuid.New()

	_, _ = attempts.RecordAttempt(ctx, &models.LoginAttempt{
		Identity:    "test@example.com",
		OriginIP:    "192.168.1.1",
		Succeeded:   true,
		AttemptedAt: time.Now(),
	})
	_, _ = events.Create(ctx, &models.SecurityEvent{
		SubjectID: &subjectID,
		EventType: models.EventLoginSuccess,
		OriginIP:  "192.168.1.1",
	})

	export, err := service.Export(ctx, subjectID, "test@example.com", "192.168.1.1", "Mozilla/5.0")

	require.NoError(t, err)
	assert.Equal(t, subjectID, export.SubjectID)
	assert.Equal(t, "test@example.com", export.Identity)
	assert.Len(t, export.Attempts, 1)
	assert.Len(t, export.Events, 1)

	// The export itself leaves a trace
	exportEvents := events.EventsOfType(models.EventDataExport)
	require.Len(t, exportEvents, 1)
	assert.Equal(t, subjectID, *exportEvents[0].SubjectID)
}

func TestPrivacyServiceErase_DeletesAndAnonymizes(t *testing.T) {
	service, attempts, events := newPrivacyFixture()
	ctx := context.Background()
	subjectID := uuid.New()

	for i := 0; i < 3; i++ {
		_, _ = attempts.RecordAttempt(ctx, &models.LoginAttempt{
			Identity:    "test@example.com",
			OriginIP:    "192.168.1.1",
			AttemptedAt: time.Now(),
		})
	}
	events.AnonymizeBySubjectFunc = func(ctx context.Context, id uuid.UUID) (int64, error) {
		assert.Equal(t, subjectID, id)
		return 7, nil
	}

	receipt, err := service.Erase(ctx, subjectID, "test@example.com", "192.168.1.1", "Mozilla/5.0")

	require.NoError(t, err)
	assert.Equal(t, int64(3), receipt.AttemptRows)
	assert.Equal(t, int64(7), receipt.EventRows)
	assert.Empty(t, attempts.Attempts)

	// Tombstone event carries counts but no subject linkage
	deletionEvents := events.EventsOfType(models.EventDataDeletion)
	require.Len(t, deletionEvents, 1)
	assert.Nil(t, deletionEvents[0].SubjectID)
	assert.Equal(t, models.DataLifecycleMetadata{AttemptRows: 3, EventRows: 7}, deletionEvents[0].Metadata)
}

func TestPrivacyServiceErase_PropagatesDeleteError(t *testing.T) {
	service, attempts, events := newPrivacyFixture()
	attempts.DeleteByIdentityFunc = func(ctx context.Context, identity string) (int64, error) {
		return 0, errors.New("connection refused")
	}

	_, err := service.Erase(context.Background(), uuid.New(), "test@example.com", "192.168.1.1", "")

	assert.Error(t, err)
	assert.Empty(t, events.EventsOfType(models.EventDataDeletion))
}
