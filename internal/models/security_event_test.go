package models

import (
	"testing"
)

func TestDecodeMetadata_TypedShapes(t *testing.T) {
	meta := DecodeMetadata(EventLoginFailure, []byte(`{"reason":"invalid_credentials"}`))
	failure, ok := meta.(LoginFailureMetadata)
	if !ok {
		t.Fatalf("expected LoginFailureMetadata, got %T", meta)
	}
	if failure.Reason != "invalid_credentials" {
		t.Errorf("expected reason invalid_credentials, got %s", failure.Reason)
	}

	meta = DecodeMetadata(EventAccountLocked, []byte(`{"failed_attempts":5,"window_minutes":15}`))
	lockout, ok := meta.(LockoutMetadata)
	if !ok {
		t.Fatalf("expected LockoutMetadata, got %T", meta)
	}
	if lockout.FailedAttempts != 5 || lockout.WindowMinutes != 15 {
		t.Errorf("unexpected lockout metadata: %+v", lockout)
	}

	meta = DecodeMetadata(EventSuspiciousActivity, []byte(`{"reasons":["multiple IP addresses in short time"],"distinct_ips":4}`))
	suspicious, ok := meta.(SuspiciousActivityMetadata)
	if !ok {
		t.Fatalf("expected SuspiciousActivityMetadata, got %T", meta)
	}
	if len(suspicious.Reasons) != 1 || suspicious.DistinctIPs != 4 {
		t.Errorf("unexpected suspicious metadata: %+v", suspicious)
	}
}

func TestDecodeMetadata_UnknownTypeFallsBack(t *testing.T) {
	meta := DecodeMetadata("password_changed", []byte(`{"changed_by":"admin"}`))
	generic, ok := meta.(GenericMetadata)
	if !ok {
		t.Fatalf("expected GenericMetadata fallback, got %T", meta)
	}
	if generic["changed_by"] != "admin" {
		t.Errorf("expected changed_by to survive fallback decode, got %v", generic["changed_by"])
	}
}

func TestDecodeMetadata_EmptyPayload(t *testing.T) {
	meta := DecodeMetadata(EventLoginSuccess, nil)
	if _, ok := meta.(GenericMetadata); !ok {
		t.Fatalf("expected GenericMetadata for empty payload, got %T", meta)
	}
}

func TestEncodeMetadata_NilEncodesEmptyObject(t *testing.T) {
	raw, err := EncodeMetadata(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != "{}" {
		t.Errorf("expected empty object, got %s", raw)
	}
}

func TestIsCriticalEvent(t *testing.T) {
	critical := []string{EventSuspiciousActivity, EventAccountLocked, EventUnauthorizedAccess, EventDataDeletion}
	for _, eventType := range critical {
		if !IsCriticalEvent(eventType) {
			t.Errorf("expected %s to be critical", eventType)
		}
	}

	nonCritical := []string{EventLoginSuccess, EventLoginFailure, EventRateLimitExceeded, EventDataExport, EventMFAEnrolled}
	for _, eventType := range nonCritical {
		if IsCriticalEvent(eventType) {
			t.Errorf("expected %s to be non-critical", eventType)
		}
	}
}
