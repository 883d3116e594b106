package core

import (
	"context"
	"fmt"
	"strings"
)

// RequestExportInput carries one admission call. ReferenceDate defaults to
// the current UTC calendar date when empty.
type RequestExportInput struct {
	Sender        SenderRef
	Type          ReportType
	ReferenceDate string
}

// AdmissionResult reports what admission decided. Reused is true when an
// existing COMPLETED request satisfied the call and no job was enqueued.
type AdmissionResult struct {
	RequestID     string
	ReferenceDate string
	UploadURL     string
	Reused        bool
}

// RequestExport is the admission controller. For a dedup key
// (api_key, type, reference_date) it creates at most one in-flight request:
// a PENDING or PROCESSING match is a conflict, a COMPLETED match is returned
// for reuse, and FAILED matches are invisible so callers can always retry.
func (s *Service) RequestExport(ctx context.Context, in RequestExportInput) (AdmissionResult, error) {
	if s == nil || s.requestStore == nil {
		return AdmissionResult{}, fmt.Errorf("core: service is not configured")
	}
	startedAt := s.now()

	normalized, err := s.normalizeRequestExportInput(in)
	if err != nil {
		return AdmissionResult{}, s.mapError(err)
	}

	key := DedupKey{
		APIKey:        normalized.Sender.APIKey,
		Type:          normalized.Type,
		ReferenceDate: normalized.ReferenceDate,
	}
	fields := map[string]any{
		"api_key":        key.APIKey,
		"report_type":    string(key.Type),
		"reference_date": key.ReferenceDate,
	}

	result, err := s.admit(ctx, normalized, key)
	if err == nil {
		fields["request_id"] = result.RequestID
		fields["reused"] = result.Reused
	}
	s.observeOperation(ctx, startedAt, "admission", err, fields)
	if err != nil {
		return AdmissionResult{}, s.mapError(err)
	}
	return result, nil
}

func (s *Service) admit(ctx context.Context, in RequestExportInput, key DedupKey) (AdmissionResult, error) {
	existing, found, err := s.requestStore.FindActive(ctx, key)
	if err != nil {
		return AdmissionResult{}, err
	}
	if found {
		switch existing.Status {
		case RequestStatusPending, RequestStatusProcessing:
			return AdmissionResult{}, fmt.Errorf(
				"%w: request %s is %s for %s/%s/%s",
				ErrDuplicateInFlightRequest,
				existing.ID, existing.Status,
				key.APIKey, key.Type, key.ReferenceDate,
			)
		case RequestStatusCompleted:
			return AdmissionResult{
				RequestID:     existing.ID,
				ReferenceDate: existing.ReferenceDate,
				UploadURL:     existing.UploadURL,
				Reused:        true,
			}, nil
		}
	}

	created, err := s.requestStore.Create(ctx, CreateExportRequestInput{
		Sender:        in.Sender,
		Type:          in.Type,
		ReferenceDate: in.ReferenceDate,
	})
	if err != nil {
		return AdmissionResult{}, err
	}

	if s.enqueuer == nil {
		return AdmissionResult{}, s.failAdmission(ctx, created.ID,
			fmt.Errorf("core: job enqueuer is not configured"))
	}
	msg := &ExportJobMessage{
		RequestID:     created.ID,
		APIKey:        created.Sender.APIKey,
		ReferenceDate: created.ReferenceDate,
		WebhookURL:    created.Sender.WebhookURL,
	}
	if err := s.enqueuer.Enqueue(ctx, msg); err != nil {
		return AdmissionResult{}, s.failAdmission(ctx, created.ID,
			fmt.Errorf("core: enqueue export job: %w", err))
	}

	return AdmissionResult{
		RequestID:     created.ID,
		ReferenceDate: created.ReferenceDate,
	}, nil
}

// failAdmission retires a freshly created row whose job never made it onto
// the queue. The row moves to FAILED (ledger rows are never deleted), which
// drops it out of the dedup window so the caller can retry immediately.
func (s *Service) failAdmission(ctx context.Context, requestID string, cause error) error {
	if _, markErr := s.requestStore.MarkInternalFailure(ctx, requestID, cause.Error()); markErr != nil {
		return fmt.Errorf("%w (additionally failed to mark request %s: %v)", cause, requestID, markErr)
	}
	return cause
}

func (s *Service) normalizeRequestExportInput(in RequestExportInput) (RequestExportInput, error) {
	normalized := RequestExportInput{
		Sender: SenderRef{
			ID:         strings.TrimSpace(in.Sender.ID),
			Name:       strings.TrimSpace(in.Sender.Name),
			APIKey:     strings.TrimSpace(in.Sender.APIKey),
			WebhookURL: strings.TrimSpace(in.Sender.WebhookURL),
		},
		Type:          in.Type,
		ReferenceDate: strings.TrimSpace(in.ReferenceDate),
	}
	if err := normalized.Sender.Validate(); err != nil {
		return RequestExportInput{}, err
	}
	if err := normalized.Type.Validate(); err != nil {
		return RequestExportInput{}, err
	}
	if normalized.ReferenceDate == "" {
		normalized.ReferenceDate = ReferenceDateFor(s.now())
	}
	if err := ValidateReferenceDate(normalized.ReferenceDate); err != nil {
		return RequestExportInput{}, err
	}
	return normalized, nil
}
