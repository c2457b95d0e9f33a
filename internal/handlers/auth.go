package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
	"github.com/BradenHooton/bastion/internal/services"
	pkghttp "github.com/BradenHooton/bastion/pkg/http"
)

// LoginServiceInterface defines the login orchestration used by the handler
type LoginServiceInterface interface {
	Login(ctx context.Context, input services.LoginInput) (*services.LoginResult, error)
}

// LockoutMessenger supplies the fixed client-facing lockout message
type LockoutMessenger interface {
	Message() string
}

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	service  LoginServiceInterface
	lockout  LockoutMessenger
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service LoginServiceInterface, lockout LockoutMessenger, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		lockout:  lockout,
		ipConfig: ipConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Identity string `json:"identity" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents the response body for a successful login
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	SubjectID string    `json:"subject_id"`
	MFAUsed   bool      `json:"mfa_used"`
}

// Login handles a login attempt
// @Summary Authenticate with identity and password
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} LoginResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	// Normalize identity
	req.Identity = strings.ToLower(strings.TrimSpace(req.Identity))

	result, err := h.service.Login(r.Context(), services.LoginInput{
		Identity:    req.Identity,
		Password:    req.Password,
		OriginIP:    pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent:   r.Header.Get("User-Agent"),
		CountryCode: pkghttp.ExtractCountryCode(r, h.ipConfig),
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAccountLocked):
			pkghttp.WriteLocked(w, h.lockout.Message())
		case errors.Is(err, models.ErrInvalidCredentials):
			// Generic response regardless of failure reason to prevent
			// identity enumeration
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		SubjectID: result.SubjectID.String(),
		MFAUsed:   result.MFAUsed,
	})
}
