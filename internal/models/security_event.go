package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types for the security audit trail
const (
	EventLoginSuccess       = "login_success"
	EventLoginFailure       = "login_failure"
	EventAccountLocked      = "account_locked"
	EventSuspiciousActivity = "suspicious_activity"
	EventUnauthorizedAccess = "unauthorized_access"
	EventRateLimitExceeded  = "rate_limit_exceeded"
	EventMFAEnrolled        = "mfa_enrolled"
	EventMFARemoved         = "mfa_removed"
	EventDataExport         = "data_export"
	EventDataDeletion       = "data_deletion"
)

// IsCriticalEvent reports whether an event type triggers the alert channel.
func IsCriticalEvent(eventType string) bool {
	switch eventType {
	case EventSuspiciousActivity, EventAccountLocked, EventUnauthorizedAccess, EventDataDeletion:
		return true
	}
	return false
}

// SecurityEvent is one row of the append-only security audit trail.
// SubjectID is nil for pre-authentication events where no account has been
// verified yet.
type SecurityEvent struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	SubjectID  *uuid.UUID    `db:"subject_id" json:"subject_id,omitempty"`
	EventType  string        `db:"event_type" json:"event_type"`
	Metadata   EventMetadata `db:"metadata" json:"metadata"`
	OriginIP   string        `db:"origin_ip" json:"origin_ip"`
	UserAgent  string        `db:"user_agent" json:"user_agent"`
	OccurredAt time.Time     `db:"occurred_at" json:"occurred_at"`
}

// EventMetadata is the closed set of per-event-type payload shapes, stored as
// JSONB. Unknown or legacy payloads decode into GenericMetadata.
type EventMetadata interface {
	eventMetadata()
}

// LoginFailureMetadata carries the provider-supplied failure reason.
type LoginFailureMetadata struct {
	Reason      string `json:"reason"`
	CountryCode string `json:"country_code,omitempty"`
}

// LoginSuccessMetadata records how the successful authentication was performed.
type LoginSuccessMetadata struct {
	MFAUsed     bool   `json:"mfa_used"`
	CountryCode string `json:"country_code,omitempty"`
}

// LockoutMetadata describes the state of the failure window when the lock fired.
type LockoutMetadata struct {
	FailedAttempts int `json:"failed_attempts"`
	WindowMinutes  int `json:"window_minutes"`
}

// SuspiciousActivityMetadata carries the advisory heuristic's findings.
type SuspiciousActivityMetadata struct {
	Reasons            []string `json:"reasons"`
	DistinctIPs        int      `json:"distinct_ips,omitempty"`
	DistinctIdentities int      `json:"distinct_identities,omitempty"`
}

// DataLifecycleMetadata describes GDPR export/deletion operations.
type DataLifecycleMetadata struct {
	AttemptRows int `json:"attempt_rows"`
	EventRows   int `json:"event_rows"`
}

// GenericMetadata is the forward-compatibility fallback for payloads without a
// dedicated shape.
type GenericMetadata map[string]interface{}

func (LoginFailureMetadata) eventMetadata()       {}
func (LoginSuccessMetadata) eventMetadata()       {}
func (LockoutMetadata) eventMetadata()            {}
func (SuspiciousActivityMetadata) eventMetadata() {}
func (DataLifecycleMetadata) eventMetadata()      {}
func (GenericMetadata) eventMetadata()            {}

// EncodeMetadata marshals metadata for JSONB storage. Nil metadata encodes as
// an empty object so the column stays non-null.
func EncodeMetadata(m EventMetadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// DecodeMetadata unmarshals a JSONB payload into the shape registered for the
// event type, falling back to GenericMetadata for unknown types or malformed
// payloads of known types.
func DecodeMetadata(eventType string, raw []byte) EventMetadata {
	if len(raw) == 0 {
		return GenericMetadata{}
	}

	switch eventType {
	case EventLoginFailure:
		var m LoginFailureMetadata
		if err := json.Unmarshal(raw, &m); err == nil {
			return m
		}
	case EventLoginSuccess:
		var m LoginSuccessMetadata
		if err := json.Unmarshal(raw, &m); err == nil {
			return m
		}
	case EventAccountLocked:
		var m LockoutMetadata
		if err := json.Unmarshal(raw, &m); err == nil {
			return m
		}
	case EventSuspiciousActivity:
		var m SuspiciousActivityMetadata
		if err := json.Unmarshal(raw, &m); err == nil {
			return m
		}
	case EventDataExport, EventDataDeletion:
		var m DataLifecycleMetadata
		if err := json.Unmarshal(raw, &m); err == nil {
			return m
		}
	}

	var g GenericMetadata
	if err := json.Unmarshal(raw, &g); err != nil {
		return GenericMetadata{}
	}
	return g
}
