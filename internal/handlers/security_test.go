package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/bastion/internal/handlers"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/BradenHooton/bastion/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityEvents_ReturnsOwnEvents(t *testing.T) {
	subjectID := uuid.New()
	mockEvents := &handlers.MockEventQuerier{
		QueryFunc: func(ctx context.Context, gotSubject uuid.UUID, limit int) ([]*models.SecurityEvent, error) {
			assert.Equal(t, subjectID, gotSubject)
			return []*models.SecurityEvent{
				{
					ID:         uuid.New(),
					SubjectID:  &gotSubject,
					EventType:  models.EventLoginSuccess,
					Metadata:   models.LoginSuccessMetadata{},
					OriginIP:   "192.168.1.1",
					OccurredAt: time.Now(),
				},
			}, nil
		},
	}

	handler := handlers.NewSecurityHandler(mockEvents, &handlers.MockPrivacyService{}, nil)
	req := handlers.NewTestRequest(t, "GET", "/security/events", nil)
	req = handlers.WithSessionContext(req, subjectID, "user@example.com")

	w := httptest.NewRecorder()
	handler.Events(w, req)

	var resp []handlers.EventResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, models.EventLoginSuccess, resp[0].EventType)
}

func TestSecurityEvents_PassesLimit(t *testing.T) {
	var gotLimit int
	mockEvents := &handlers.MockEventQuerier{
		QueryFunc: func(ctx context.Context, subjectID uuid.UUID, limit int) ([]*models.SecurityEvent, error) {
			gotLimit = limit
			return nil, nil
		},
	}

	handler := handlers.NewSecurityHandler(mockEvents, &handlers.MockPrivacyService{}, nil)
	req := handlers.NewTestRequest(t, "GET", "/security/events?limit=10", nil)
	req = handlers.WithSessionContext(req, uuid.New(), "user@example.com")

	w := httptest.NewRecorder()
	handler.Events(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, 10, gotLimit)
}

func TestSecurityEvents_RequiresSession(t *testing.T) {
	handler := handlers.NewSecurityHandler(&handlers.MockEventQuerier{}, &handlers.MockPrivacyService{}, nil)
	req := handlers.NewTestRequest(t, "GET", "/security/events", nil)

	w := httptest.NewRecorder()
	handler.Events(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestSecurityLoginHistory_ReturnsOwnHistory(t *testing.T) {
	reason := "invalid_credentials"
	mockPrivacy := &handlers.MockPrivacyService{
		LoginHistoryFunc: func(ctx context.Context, identity string, limit int) ([]*models.LoginAttempt, error) {
			assert.Equal(t, "user@example.com", identity)
			return []*models.LoginAttempt{
				{
					Identity:      identity,
					OriginIP:      "192.168.1.1",
					Succeeded:     false,
					FailureReason: &reason,
					AttemptedAt:   time.Now(),
				},
			}, nil
		},
	}

	handler := handlers.NewSecurityHandler(&handlers.MockEventQuerier{}, mockPrivacy, nil)
	req := handlers.NewTestRequest(t, "GET", "/security/login-history", nil)
	req = handlers.WithSessionContext(req, uuid.New(), "user@example.com")

	w := httptest.NewRecorder()
	handler.LoginHistory(w, req)

	var resp []handlers.AttemptResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	require.Len(t, resp, 1)
	assert.False(t, resp[0].Succeeded)
	require.NotNil(t, resp[0].FailureReason)
	assert.Equal(t, reason, *resp[0].FailureReason)
}

func TestSecurityExport_ReturnsTrail(t *testing.T) {
	subjectID := uuid.New()
	mockPrivacy := &handlers.MockPrivacyService{
		ExportFunc: func(ctx context.Context, gotSubject uuid.UUID, identity, originIP, userAgent string) (*services.DataExport, error) {
			assert.Equal(t, subjectID, gotSubject)
			return &services.DataExport{
				SubjectID:  gotSubject,
				Identity:   identity,
				ExportedAt: time.Now().UTC(),
			}, nil
		},
	}

	handler := handlers.NewSecurityHandler(&handlers.MockEventQuerier{}, mockPrivacy, nil)
	req := handlers.NewTestRequest(t, "GET", "/security/export", nil)
	req = handlers.WithSessionContext(req, subjectID, "user@example.com")

	w := httptest.NewRecorder()
	handler.Export(w, req)

	var resp services.DataExport
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, subjectID, resp.SubjectID)
	assert.Equal(t, "user@example.com", resp.Identity)
}

func TestSecurityErase_ReturnsReceipt(t *testing.T) {
	mockPrivacy := &handlers.MockPrivacyService{
		EraseFunc: func(ctx context.Context, subjectID uuid.UUID, identity, originIP, userAgent string) (*services.ErasureReceipt, error) {
			return &services.ErasureReceipt{AttemptRows: 4, EventRows: 9}, nil
		},
	}

	handler := handlers.NewSecurityHandler(&handlers.MockEventQuerier{}, mockPrivacy, nil)
	req := handlers.NewTestRequest(t, "DELETE", "/security/data", nil)
	req = handlers.WithSessionContext(req, uuid.New(), "user@example.com")

	w := httptest.NewRecorder()
	handler.Erase(w, req)

	var resp handlers.ErasureResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, int64(4), resp.AttemptRows)
	assert.Equal(t, int64(9), resp.EventRows)
}

func TestSecurityErase_RequiresSession(t *testing.T) {
	handler := handlers.NewSecurityHandler(&handlers.MockEventQuerier{}, &handlers.MockPrivacyService{}, nil)
	req := handlers.NewTestRequest(t, "DELETE", "/security/data", nil)

	w := httptest.NewRecorder()
	handler.Erase(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}
