package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/bastion/internal/auth"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/BradenHooton/bastion/internal/services"
	pkghttp "github.com/BradenHooton/bastion/pkg/http"
	"github.com/google/uuid"
)

// EventQuerier reads a subject's security event trail
type EventQuerier interface {
	Query(ctx context.Context, subjectID uuid.UUID, limit int) ([]*models.SecurityEvent, error)
}

// PrivacyServiceInterface defines the data-subject operations
type PrivacyServiceInterface interface {
	LoginHistory(ctx context.Context, identity string, limit int) ([]*models.LoginAttempt, error)
	Export(ctx context.Context, subjectID uuid.UUID, identity, originIP, userAgent string) (*services.DataExport, error)
	Erase(ctx context.Context, subjectID uuid.UUID, identity, originIP, userAgent string) (*services.ErasureReceipt, error)
}

// SecurityHandler serves the authenticated subject's own security data
type SecurityHandler struct {
	events   EventQuerier
	privacy  PrivacyServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewSecurityHandler creates a new SecurityHandler
func NewSecurityHandler(events EventQuerier, privacy PrivacyServiceInterface, ipConfig *pkghttp.IPConfig) *SecurityHandler {
	return &SecurityHandler{
		events:   events,
		privacy:  privacy,
		ipConfig: ipConfig,
	}
}

// EventResponse is the wire shape of one security event
type EventResponse struct {
	ID         string               `json:"id"`
	EventType  string               `json:"event_type"`
	Metadata   models.EventMetadata `json:"metadata"`
	OriginIP   string               `json:"origin_ip"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// AttemptResponse is the wire shape of one login attempt
type AttemptResponse struct {
	OriginIP      string    `json:"origin_ip"`
	UserAgent     string    `json:"user_agent"`
	Succeeded     bool      `json:"succeeded"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	AttemptedAt   time.Time `json:"attempted_at"`
}

// ErasureResponse confirms a right-to-erasure request
type ErasureResponse struct {
	Message     string `json:"message"`
	AttemptRows int64  `json:"attempt_rows_deleted"`
	EventRows   int64  `json:"event_rows_anonymized"`
}

// Events returns the caller's recent security events
// @Summary List own security events
// @Param limit query int false "Maximum events to return"
// @Produce json
// @Success 200 {array} EventResponse
// @Router /security/events [get]
func (h *SecurityHandler) Events(w http.ResponseWriter, r *http.Request) {
	subjectID := auth.SubjectIDFromContext(r)
	if subjectID == uuid.Nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	events, err := h.events.Query(r.Context(), subjectID, parseLimit(r))
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	resp := make([]EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, EventResponse{
			ID:         e.ID.String(),
			EventType:  e.EventType,
			Metadata:   e.Metadata,
			OriginIP:   e.OriginIP,
			OccurredAt: e.OccurredAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// LoginHistory returns the caller's recent login attempts
// @Summary List own login attempts
// @Param limit query int false "Maximum attempts to return"
// @Produce json
// @Success 200 {array} AttemptResponse
// @Router /security/login-history [get]
func (h *SecurityHandler) LoginHistory(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	history, err := h.privacy.LoginHistory(r.Context(), session.Identity, parseLimit(r))
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	resp := make([]AttemptResponse, 0, len(history))
	for _, a := range history {
		resp = append(resp, AttemptResponse{
			OriginIP:      a.OriginIP,
			UserAgent:     a.UserAgent,
			Succeeded:     a.Succeeded,
			FailureReason: a.FailureReason,
			AttemptedAt:   a.AttemptedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Export returns the caller's complete data trail
// @Summary Export own security data
// @Produce json
// @Success 200 {object} services.DataExport
// @Router /security/export [get]
func (h *SecurityHandler) Export(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	subjectID := auth.SubjectIDFromContext(r)
	if session == nil || subjectID == uuid.Nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	export, err := h.privacy.Export(r.Context(), subjectID, session.Identity,
		pkghttp.ExtractClientIP(r, h.ipConfig), r.Header.Get("User-Agent"))
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, export)
}

// Erase deletes the caller's attempt rows and anonymizes their event rows
// @Summary Erase own security data
// @Produce json
// @Success 200 {object} ErasureResponse
// @Router /security/data [delete]
func (h *SecurityHandler) Erase(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	subjectID := auth.SubjectIDFromContext(r)
	if session == nil || subjectID == uuid.Nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	receipt, err := h.privacy.Erase(r.Context(), subjectID, session.Identity,
		pkghttp.ExtractClientIP(r, h.ipConfig), r.Header.Get("User-Agent"))
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ErasureResponse{
		Message:     "Security data erased",
		AttemptRows: receipt.AttemptRows,
		EventRows:   receipt.EventRows,
	})
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
