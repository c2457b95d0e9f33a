// Package identity wraps the external identity provider behind a narrow RPC
// boundary. The provider alone determines whether a credential is valid; this
// service never inspects or stores credentials itself.
package identity

import (
	"context"

	"github.com/google/uuid"
)

// Failure reasons reported by providers on a definitive rejection
const (
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonAccountDisabled    = "account_disabled"
)

// SignInResult is the provider's verdict on one credential check. OK=false with
// a FailureReason is a definitive rejection, not an error; transport and
// protocol failures surface as errors instead.
type SignInResult struct {
	OK            bool
	SubjectID     uuid.UUID
	MFAUsed       bool
	FailureReason string
}

// MFAEnrollment is the provider's response to an enrollment request, passed
// through to the caller untouched.
type MFAEnrollment struct {
	FactorID  string
	SecretURI string
}

// Provider is the external identity provider collaborator.
type Provider interface {
	SignIn(ctx context.Context, identity, credential string) (*SignInResult, error)
	EnrollMFA(ctx context.Context, subjectID uuid.UUID) (*MFAEnrollment, error)
	VerifyMFAChallenge(ctx context.Context, subjectID uuid.UUID, factorID, code string) (bool, error)
}
