package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
	"github.com/google/uuid"
)

// HTTPProvider talks to a remote identity provider over its JSON API.
// Credential verdicts (200 / 401) are definitive; anything else, including
// timeouts, is a provider failure surfaced as an error.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPProvider creates an HTTPProvider with the given request timeout
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type signInRequest struct {
	Identity   string `json:"identity"`
	Credential string `json:"credential"`
}

type signInResponse struct {
	SubjectID string `json:"subject_id"`
	MFAUsed   bool   `json:"mfa_used"`
	ErrorCode string `json:"error_code"`
}

// SignIn submits the credential to the provider and returns its verdict
func (p *HTTPProvider) SignIn(ctx context.Context, identity, credential string) (*SignInResult, error) {
	var resp signInResponse
	status, err := p.post(ctx, "/v1/signin", signInRequest{Identity: identity, Credential: credential}, &resp)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		subjectID, err := uuid.Parse(resp.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("provider returned malformed subject id: %w", err)
		}
		return &SignInResult{OK: true, SubjectID: subjectID, MFAUsed: resp.MFAUsed}, nil
	case http.StatusUnauthorized:
		reason := resp.ErrorCode
		if reason == "" {
			reason = ReasonInvalidCredentials
		}
		return &SignInResult{OK: false, FailureReason: reason}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", models.ErrProviderUnavailable, status)
	}
}

type enrollRequest struct {
	SubjectID string `json:"subject_id"`
}

type enrollResponse struct {
	FactorID  string `json:"factor_id"`
	SecretURI string `json:"secret_uri"`
}

// EnrollMFA passes an MFA enrollment request through to the provider
func (p *HTTPProvider) EnrollMFA(ctx context.Context, subjectID uuid.UUID) (*MFAEnrollment, error) {
	var resp enrollResponse
	status, err := p.post(ctx, "/v1/mfa/enroll", enrollRequest{SubjectID: subjectID.String()}, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", models.ErrProviderUnavailable, status)
	}
	return &MFAEnrollment{FactorID: resp.FactorID, SecretURI: resp.SecretURI}, nil
}

type verifyRequest struct {
	SubjectID string `json:"subject_id"`
	FactorID  string `json:"factor_id"`
	Code      string `json:"code"`
}

// VerifyMFAChallenge passes an MFA challenge verification through to the provider
func (p *HTTPProvider) VerifyMFAChallenge(ctx context.Context, subjectID uuid.UUID, factorID, code string) (bool, error) {
	req := verifyRequest{SubjectID: subjectID.String(), FactorID: factorID, Code: code}
	status, err := p.post(ctx, "/v1/mfa/verify", req, &struct{}{})
	if err != nil {
		return false, err
	}

	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusUnauthorized:
		return false, nil
	default:
		return false, fmt.Errorf("%w: unexpected status %d", models.ErrProviderUnavailable, status)
	}
}

func (p *HTTPProvider) post(ctx context.Context, path string, body, out interface{}) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to encode provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("identity provider request failed",
			slog.String("path", path),
			slog.Any("error", err))
		return 0, fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	// 401 bodies carry the failure reason, so decode those too. An empty body
	// on a definitive status is acceptable.
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusUnauthorized {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return 0, fmt.Errorf("failed to decode provider response: %w", err)
		}
	}

	return resp.StatusCode, nil
}
