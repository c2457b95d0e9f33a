package models

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the claims carried by session tokens minted after a
// successful provider authentication.
type SessionClaims struct {
	SubjectID string `json:"subject_id"`
	Identity  string `json:"identity,omitempty"`
	jwt.RegisteredClaims
}
