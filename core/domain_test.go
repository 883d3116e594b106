package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRequestStatusTransitions(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		from    RequestStatus
		to      RequestStatus
		allowed bool
	}{
		{RequestStatusPending, RequestStatusProcessing, true},
		{RequestStatusPending, RequestStatusCompleted, true},
		{RequestStatusPending, RequestStatusFailed, true},
		{RequestStatusProcessing, RequestStatusCompleted, true},
		{RequestStatusProcessing, RequestStatusFailed, true},
		{RequestStatusProcessing, RequestStatusPending, false},
		{RequestStatusCompleted, RequestStatusFailed, false},
		{RequestStatusCompleted, RequestStatusProcessing, false},
		{RequestStatusFailed, RequestStatusPending, false},
		{RequestStatusPending, RequestStatusPending, false},
	}
	for _, tc := range cases {
		req := ExportRequest{ID: "req-1", Status: tc.from}
		err := req.TransitionTo(tc.to, now)
		if tc.allowed && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.allowed {
			if err == nil {
				t.Errorf("%s -> %s: expected rejection", tc.from, tc.to)
			} else if !errors.Is(err, ErrInvalidRequestStatusTransition) {
				t.Errorf("%s -> %s: wrong error %v", tc.from, tc.to, err)
			}
		}
		if tc.allowed && !req.UpdatedAt.Equal(now) {
			t.Errorf("%s -> %s: UpdatedAt not refreshed", tc.from, tc.to)
		}
	}
}

func TestReferenceDateForTruncatesToUTC(t *testing.T) {
	// 23:30 in Sao Paulo (UTC-3) is already the next day in UTC.
	sp := time.FixedZone("America/Sao_Paulo", -3*60*60)
	instant := time.Date(2026, 7, 31, 23, 30, 0, 0, sp)
	if got := ReferenceDateFor(instant); got != "2026-08-01" {
		t.Fatalf("expected 2026-08-01, got %q", got)
	}
}

func TestValidateReferenceDate(t *testing.T) {
	if err := ValidateReferenceDate("2026-08-01"); err != nil {
		t.Fatalf("valid date rejected: %v", err)
	}
	for _, bad := range []string{"", "  ", "01/08/2026", "2026-13-01", "2026-8-1"} {
		if err := ValidateReferenceDate(bad); !errors.Is(err, ErrInvalidReferenceDate) {
			t.Errorf("%q: expected ErrInvalidReferenceDate, got %v", bad, err)
		}
	}
}

func TestReportTypeValidate(t *testing.T) {
	if err := ReportTypeAccountsMarketing.Validate(); err != nil {
		t.Fatalf("accounts_marketing rejected: %v", err)
	}
	if err := ReportTypeAccounts.Validate(); err != nil {
		t.Fatalf("accounts rejected: %v", err)
	}
	if err := ReportType("payroll").Validate(); !errors.Is(err, ErrInvalidReportType) {
		t.Fatalf("expected ErrInvalidReportType, got %v", err)
	}
}

func TestBuilderRegistry(t *testing.T) {
	registry := NewBuilderRegistry()
	builder := stubBuilder{reportType: ReportTypeAccountsMarketing}
	if err := registry.Register(builder); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(builder); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if _, ok := registry.Get(ReportTypeAccountsMarketing); !ok {
		t.Fatalf("registered builder not found")
	}
	if _, ok := registry.Get(ReportTypeAccounts); ok {
		t.Fatalf("unregistered type must not resolve")
	}
}

func TestMemoryRequestLocker(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	locker := NewMemoryRequestLocker()
	locker.nowFn = func() time.Time { return current }

	key := DedupKey{APIKey: "acme-key", Type: ReportTypeAccountsMarketing, ReferenceDate: "2026-08-01"}
	handle, err := locker.Acquire(context.Background(), key, time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := locker.Acquire(context.Background(), key, time.Minute); err == nil {
		t.Fatalf("expected second acquire to fail while held")
	}

	other := DedupKey{APIKey: "other-key", Type: ReportTypeAccountsMarketing, ReferenceDate: "2026-08-01"}
	if _, err := locker.Acquire(context.Background(), other, time.Minute); err != nil {
		t.Fatalf("different key must not contend: %v", err)
	}

	if err := handle.Unlock(context.Background()); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := locker.Acquire(context.Background(), key, time.Minute); err != nil {
		t.Fatalf("acquire after unlock: %v", err)
	}
}

func TestMemoryRequestLockerExpires(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	locker := NewMemoryRequestLocker()
	locker.nowFn = func() time.Time { return current }

	key := DedupKey{APIKey: "acme-key", Type: ReportTypeAccountsMarketing, ReferenceDate: "2026-08-01"}
	if _, err := locker.Acquire(context.Background(), key, time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, err := locker.Acquire(context.Background(), key, time.Minute); err != nil {
		t.Fatalf("expired lock must be reacquirable: %v", err)
	}
}
