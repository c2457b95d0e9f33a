package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	pkgauth "github.com/BradenHooton/bastion/pkg/auth"
	"github.com/google/uuid"
)

// LocalProvider is an in-process provider for development and tests. It holds
// bcrypt-hashed credentials in memory and never supports MFA.
type LocalProvider struct {
	mu    sync.RWMutex
	users map[string]localUser
}

type localUser struct {
	subjectID    uuid.UUID
	passwordHash string
}

// NewLocalProvider creates an empty LocalProvider
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{users: make(map[string]localUser)}
}

// Register adds a credential and returns the assigned subject ID
func (p *LocalProvider) Register(identity, password string) (uuid.UUID, error) {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" {
		return uuid.Nil, fmt.Errorf("identity cannot be empty")
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return uuid.Nil, err
	}

	subjectID := uuid.New()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[identity] = localUser{subjectID: subjectID, passwordHash: hash}

	return subjectID, nil
}

// SignIn verifies the credential against the registered bcrypt hash
func (p *LocalProvider) SignIn(ctx context.Context, identity, credential string) (*SignInResult, error) {
	p.mu.RLock()
	user, ok := p.users[strings.ToLower(strings.TrimSpace(identity))]
	p.mu.RUnlock()

	// Unknown identity and wrong password produce the same verdict
	if !ok {
		return &SignInResult{OK: false, FailureReason: ReasonInvalidCredentials}, nil
	}

	if err := pkgauth.ComparePassword(user.passwordHash, credential); err != nil {
		return &SignInResult{OK: false, FailureReason: ReasonInvalidCredentials}, nil
	}

	return &SignInResult{OK: true, SubjectID: user.subjectID}, nil
}

// EnrollMFA is not supported by the local provider
func (p *LocalProvider) EnrollMFA(ctx context.Context, subjectID uuid.UUID) (*MFAEnrollment, error) {
	return nil, fmt.Errorf("local provider does not support MFA enrollment")
}

// VerifyMFAChallenge is not supported by the local provider
func (p *LocalProvider) VerifyMFAChallenge(ctx context.Context, subjectID uuid.UUID, factorID, code string) (bool, error) {
	return false, fmt.Errorf("local provider does not support MFA challenges")
}
