package redislock

import (
	"strings"
	"testing"

	"github.com/goliatone/go-exports/core"
)

func TestLockKeyFormat(t *testing.T) {
	key, err := LockKey(core.DedupKey{
		APIKey:        "acme-key",
		Type:          core.ReportTypeAccountsMarketing,
		ReferenceDate: "2026-08-01",
	})
	if err != nil {
		t.Fatalf("lock key: %v", err)
	}
	want := "go-exports::lock::acme-key::accounts_marketing::2026-08-01"
	if key != want {
		t.Fatalf("lock key = %q, want %q", key, want)
	}
}

func TestLockKeyValidation(t *testing.T) {
	cases := []struct {
		name string
		key  core.DedupKey
	}{
		{"missing api key", core.DedupKey{Type: core.ReportTypeAccountsMarketing, ReferenceDate: "2026-08-01"}},
		{"missing reference date", core.DedupKey{APIKey: "acme-key", Type: core.ReportTypeAccountsMarketing}},
		{"unknown report type", core.DedupKey{APIKey: "acme-key", Type: "bogus", ReferenceDate: "2026-08-01"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LockKey(tc.key); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestNewLockerRequiresClient(t *testing.T) {
	if _, err := NewLocker(nil); err == nil || !strings.Contains(err.Error(), "required") {
		t.Fatalf("expected client requirement error, got %v", err)
	}
}
