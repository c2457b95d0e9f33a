package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/bastion/internal/auth"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/BradenHooton/bastion/internal/services"
	pkghttp "github.com/BradenHooton/bastion/pkg/http"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSessionContext adds session claims to request context for testing
// authenticated endpoints
func WithSessionContext(req *http.Request, subjectID uuid.UUID, identity string) *http.Request {
	claims := &models.SessionClaims{
		SubjectID: subjectID.String(),
		Identity:  identity,
	}
	ctx := context.WithValue(req.Context(), auth.SessionContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockLoginService implements LoginServiceInterface for testing
type MockLoginService struct {
	LoginFunc func(ctx context.Context, input services.LoginInput) (*services.LoginResult, error)
}

func (m *MockLoginService) Login(ctx context.Context, input services.LoginInput) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, input)
}

// FixedLockoutMessage implements LockoutMessenger with a constant message
type FixedLockoutMessage string

func (m FixedLockoutMessage) Message() string {
	return string(m)
}

// MockEventQuerier implements EventQuerier for testing
type MockEventQuerier struct {
	QueryFunc func(ctx context.Context, subjectID uuid.UUID, limit int) ([]*models.SecurityEvent, error)
}

func (m *MockEventQuerier) Query(ctx context.Context, subjectID uuid.UUID, limit int) ([]*models.SecurityEvent, error) {
	if m.QueryFunc == nil {
		return []*models.SecurityEvent{}, nil
	}
	return m.QueryFunc(ctx, subjectID, limit)
}

// MockPrivacyService implements PrivacyServiceInterface for testing
type MockPrivacyService struct {
	LoginHistoryFunc func(ctx context.Context, identity string, limit int) ([]*models.LoginAttempt, error)
	ExportFunc       func(ctx context.Context, subjectID uuid.UUID, identity, originIP, userAgent string) (*services.DataExport, error)
	EraseFunc        func(ctx context.Context, subjectID uuid.UUID, identity, originIP, userAgent string) (*services.ErasureReceipt, error)
}

func (m *MockPrivacyService) LoginHistory(ctx context.Context, identity string, limit int) ([]*models.LoginAttempt, error) {
	if m.LoginHistoryFunc == nil {
		return []*models.LoginAttempt{}, nil
	}
	return m.LoginHistoryFunc(ctx, identity, limit)
}

func (m *MockPrivacyService) Export(ctx context.Context, subjectID uuid.UUID, identity, originIP, userAgent string) (*services.DataExport, error) {
	if m.ExportFunc == nil {
		return &services.DataExport{SubjectID: subjectID, Identity: identity}, nil
	}
	return m.ExportFunc(ctx, subjectID, identity, originIP, userAgent)
}

func (m *MockPrivacyService) Erase(ctx context.Context, subjectID uuid.UUID, identity, originIP, userAgent string) (*services.ErasureReceipt, error) {
	if m.EraseFunc == nil {
		return &services.ErasureReceipt{}, nil
	}
	return m.EraseFunc(ctx, subjectID, identity, originIP, userAgent)
}
