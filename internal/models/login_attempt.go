package models

import (
	"time"

	"github.com/google/uuid"
)

// LoginAttempt is one row of the append-only attempt ledger. Rows are never
// mutated; they are removed only by ClearFailures after a successful login or
// by the retention purge.
type LoginAttempt struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Identity      string    `db:"identity" json:"identity"`
	OriginIP      string    `db:"origin_ip" json:"origin_ip"`
	UserAgent     string    `db:"user_agent" json:"user_agent"`
	Succeeded     bool      `db:"succeeded" json:"succeeded"`
	FailureReason *string   `db:"failure_reason" json:"failure_reason,omitempty"`
	AttemptedAt   time.Time `db:"attempted_at" json:"attempted_at"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
}

// LockoutDecision is a derived projection over the ledger for one
// (identity, origin IP) pair. It is computed on demand and never persisted.
type LockoutDecision struct {
	Locked            bool
	Message           string
	RemainingAttempts int
}
