package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T, store *memRequestStore, enqueuer *stubEnqueuer, extra ...Option) *Service {
	t.Helper()
	options := []Option{
		WithRequestStore(store),
		WithClock(func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }),
	}
	if enqueuer != nil {
		options = append(options, WithJobEnqueuer(enqueuer))
	}
	options = append(options, extra...)
	svc, err := NewService(Config{}, options...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRequestExportCreatesAndEnqueues(t *testing.T) {
	store := newMemRequestStore()
	enqueuer := &stubEnqueuer{}
	svc := newTestService(t, store, enqueuer)

	result, err := svc.RequestExport(context.Background(), RequestExportInput{
		Sender:        testSenderRef(),
		Type:          ReportTypeAccountsMarketing,
		ReferenceDate: "2026-08-01",
	})
	if err != nil {
		t.Fatalf("RequestExport: %v", err)
	}
	if result.Reused {
		t.Fatalf("expected a fresh request, got reused")
	}
	if result.ReferenceDate != "2026-08-01" {
		t.Fatalf("unexpected reference date %q", result.ReferenceDate)
	}

	row := store.mustGet(result.RequestID)
	if row.Status != RequestStatusPending {
		t.Fatalf("expected PENDING, got %s", row.Status)
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected 1 enqueued message, got %d", len(enqueuer.messages))
	}
	msg := enqueuer.messages[0]
	if msg.RequestID != result.RequestID {
		t.Fatalf("enqueued message references %q, want %q", msg.RequestID, result.RequestID)
	}
	if msg.APIKey != "acme-key" || msg.ReferenceDate != "2026-08-01" {
		t.Fatalf("unexpected message payload %+v", msg)
	}
}

func TestRequestExportDefaultsReferenceDateToToday(t *testing.T) {
	store := newMemRequestStore()
	svc := newTestService(t, store, &stubEnqueuer{})

	result, err := svc.RequestExport(context.Background(), RequestExportInput{
		Sender: testSenderRef(),
		Type:   ReportTypeAccountsMarketing,
	})
	if err != nil {
		t.Fatalf("RequestExport: %v", err)
	}
	if result.ReferenceDate != "2026-08-01" {
		t.Fatalf("expected clock date, got %q", result.ReferenceDate)
	}
}

func TestRequestExportRejectsInFlightDuplicate(t *testing.T) {
	store := newMemRequestStore()
	svc := newTestService(t, store, &stubEnqueuer{})

	input := RequestExportInput{
		Sender:        testSenderRef(),
		Type:          ReportTypeAccountsMarketing,
		ReferenceDate: "2026-08-01",
	}
	if _, err := svc.RequestExport(context.Background(), input); err != nil {
		t.Fatalf("first RequestExport: %v", err)
	}

	_, err := svc.RequestExport(context.Background(), input)
	if err == nil {
		t.Fatalf("expected duplicate rejection")
	}
	if !errors.Is(err, ErrDuplicateInFlightRequest) {
		t.Fatalf("expected ErrDuplicateInFlightRequest, got %v", err)
	}
}

func TestRequestExportReusesCompletedRequest(t *testing.T) {
	store := newMemRequestStore()
	enqueuer := &stubEnqueuer{}
	svc := newTestService(t, store, enqueuer)

	input := RequestExportInput{
		Sender:        testSenderRef(),
		Type:          ReportTypeAccountsMarketing,
		ReferenceDate: "2026-08-01",
	}
	first, err := svc.RequestExport(context.Background(), input)
	if err != nil {
		t.Fatalf("first RequestExport: %v", err)
	}
	if _, _, err := store.ClaimPending(context.Background(), first.RequestID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := store.SetArtifact(context.Background(), first.RequestID, ArtifactRef{
		UploadURL: "https://storage.test/exports/acme-key/2026-08-01/report.zip",
		SignedURL: "https://storage.test/exports/acme-key/2026-08-01/report.zip?sig=1",
	}); err != nil {
		t.Fatalf("set artifact: %v", err)
	}
	if _, err := store.MarkCompleted(context.Background(), first.RequestID, "signed"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	result, err := svc.RequestExport(context.Background(), input)
	if err != nil {
		t.Fatalf("second RequestExport: %v", err)
	}
	if !result.Reused {
		t.Fatalf("expected reuse of completed request")
	}
	if result.RequestID != first.RequestID {
		t.Fatalf("expected id %q, got %q", first.RequestID, result.RequestID)
	}
	if result.UploadURL == "" {
		t.Fatalf("expected upload url on reused result")
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("reuse must not enqueue, got %d messages", len(enqueuer.messages))
	}
}

func TestRequestExportRetriesAfterFailure(t *testing.T) {
	store := newMemRequestStore()
	svc := newTestService(t, store, &stubEnqueuer{})

	input := RequestExportInput{
		Sender:        testSenderRef(),
		Type:          ReportTypeAccountsMarketing,
		ReferenceDate: "2026-08-01",
	}
	first, err := svc.RequestExport(context.Background(), input)
	if err != nil {
		t.Fatalf("first RequestExport: %v", err)
	}
	if _, _, err := store.ClaimPending(context.Background(), first.RequestID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := store.MarkInternalFailure(context.Background(), first.RequestID, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	second, err := svc.RequestExport(context.Background(), input)
	if err != nil {
		t.Fatalf("retry RequestExport: %v", err)
	}
	if second.Reused {
		t.Fatalf("failed requests must not be reused")
	}
	if second.RequestID == first.RequestID {
		t.Fatalf("expected a fresh request id")
	}
}

func TestRequestExportEnqueueFailureMarksRowFailed(t *testing.T) {
	store := newMemRequestStore()
	enqueuer := &stubEnqueuer{err: errors.New("queue down")}
	svc := newTestService(t, store, enqueuer)

	input := RequestExportInput{
		Sender:        testSenderRef(),
		Type:          ReportTypeAccountsMarketing,
		ReferenceDate: "2026-08-01",
	}
	if _, err := svc.RequestExport(context.Background(), input); err == nil {
		t.Fatalf("expected enqueue failure to surface")
	}

	// The orphaned row is FAILED with the cause recorded, so it no longer
	// blocks the dedup window.
	key := DedupKey{APIKey: "acme-key", Type: ReportTypeAccountsMarketing, ReferenceDate: "2026-08-01"}
	if _, found, err := store.FindActive(context.Background(), key); err != nil || found {
		t.Fatalf("expected no active request, found=%v err=%v", found, err)
	}
	row := store.mustGet("req-1")
	if row.Status != RequestStatusFailed {
		t.Fatalf("expected FAILED, got %s", row.Status)
	}
	if row.InternalError == "" {
		t.Fatalf("expected internal error to be recorded")
	}
	if row.ErrorAPI != "" {
		t.Fatalf("enqueue failure must not touch error_api")
	}

	// And the retry goes through once the queue recovers.
	enqueuer.err = nil
	if _, err := svc.RequestExport(context.Background(), input); err != nil {
		t.Fatalf("retry RequestExport: %v", err)
	}
}

func TestRequestExportValidatesInput(t *testing.T) {
	store := newMemRequestStore()
	svc := newTestService(t, store, &stubEnqueuer{})

	cases := []struct {
		name  string
		input RequestExportInput
	}{
		{
			name: "unknown report type",
			input: RequestExportInput{
				Sender: testSenderRef(),
				Type:   ReportType("payroll"),
			},
		},
		{
			name: "missing api key",
			input: RequestExportInput{
				Sender: SenderRef{ID: "sender-1", WebhookURL: "https://acme.test/hook"},
				Type:   ReportTypeAccountsMarketing,
			},
		},
		{
			name: "malformed reference date",
			input: RequestExportInput{
				Sender:        testSenderRef(),
				Type:          ReportTypeAccountsMarketing,
				ReferenceDate: "01/08/2026",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.RequestExport(context.Background(), tc.input); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if len(store.rows) != 0 {
		t.Fatalf("validation failures must not create rows, got %d", len(store.rows))
	}
}
