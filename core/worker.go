package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const defaultWorkerNackDelay = 30 * time.Second

// FulfillmentWorker consumes export jobs and drives each request through
// PROCESSING to a terminal status. All bookkeeping goes through the ledger,
// so a redelivered message for an already claimed request is a no-op.
type FulfillmentWorker struct {
	service  *Service
	dequeuer JobDequeuer
}

func NewFulfillmentWorker(service *Service, dequeuer JobDequeuer) (*FulfillmentWorker, error) {
	if service == nil {
		return nil, fmt.Errorf("core: fulfillment worker requires a service")
	}
	if dequeuer == nil {
		return nil, fmt.Errorf("core: fulfillment worker requires a dequeuer")
	}
	return &FulfillmentWorker{service: service, dequeuer: dequeuer}, nil
}

// Run blocks consuming deliveries until ctx is cancelled.
func (w *FulfillmentWorker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivery, err := w.dequeuer.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			w.service.logError(ctx, "dequeue export job failed", map[string]any{
				"error": err.Error(),
			})
			continue
		}
		if delivery == nil {
			continue
		}
		w.ProcessDelivery(ctx, delivery)
	}
}

// ProcessDelivery handles one queue delivery. The message is acked for every
// outcome the ledger can record; it is only nacked back onto the queue when
// the ledger itself was unreachable.
func (w *FulfillmentWorker) ProcessDelivery(ctx context.Context, delivery JobDelivery) {
	msg := delivery.Message()
	if msg == nil || strings.TrimSpace(msg.RequestID) == "" {
		w.service.logError(ctx, "export job delivery has no request id", nil)
		_ = delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: "missing request id"})
		return
	}

	err := w.service.Fulfill(ctx, msg.RequestID)
	if err == nil {
		_ = delivery.Ack(ctx)
		return
	}
	if isLedgerUnavailable(err) {
		_ = delivery.Nack(ctx, JobNackOptions{
			Requeue: true,
			Delay:   defaultWorkerNackDelay,
			Reason:  err.Error(),
		})
		return
	}
	// Terminal outcome already written to the ledger.
	_ = delivery.Ack(ctx)
}

// errLedgerUnavailable wraps store errors hit before the worker could record
// any outcome, so the delivery can be retried instead of silently dropped.
type errLedgerUnavailable struct{ cause error }

func (e errLedgerUnavailable) Error() string {
	return fmt.Sprintf("core: request ledger unavailable: %v", e.cause)
}

func (e errLedgerUnavailable) Unwrap() error { return e.cause }

func isLedgerUnavailable(err error) bool {
	var target errLedgerUnavailable
	return errors.As(err, &target)
}

// Fulfill runs the fulfillment state machine for one request id: claim the
// PENDING row, obtain an artifact (reuse or build), deliver the signed URL,
// and settle the row as COMPLETED or FAILED. Delivery failures are recorded
// in error_api, everything else in internal_error.
func (s *Service) Fulfill(ctx context.Context, requestID string) error {
	startedAt := s.now()

	req, err := s.requestStore.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrExportRequestNotFound) {
			s.logError(ctx, "export job references unknown request", map[string]any{
				"request_id": requestID,
			})
			return nil
		}
		return errLedgerUnavailable{cause: err}
	}

	claimed, won, err := s.requestStore.ClaimPending(ctx, req.ID)
	if err != nil {
		return errLedgerUnavailable{cause: err}
	}
	if !won {
		s.logInfo(ctx, "export request already claimed", map[string]any{
			"request_id": req.ID,
			"status":     string(req.Status),
		})
		return nil
	}
	req = claimed

	if s.requestLocker != nil {
		handle, lockErr := s.requestLocker.Acquire(ctx, req.DedupKey(), defaultRequestLockTTL)
		if lockErr == nil && handle != nil {
			defer func() { _ = handle.Unlock(ctx) }()
		}
	}

	fields := map[string]any{
		"request_id":     req.ID,
		"api_key":        req.Sender.APIKey,
		"report_type":    string(req.Type),
		"reference_date": req.ReferenceDate,
	}

	signedURL, reused, err := s.obtainArtifact(ctx, req)
	if err != nil {
		s.observeOperation(ctx, startedAt, "fulfillment", err, fields)
		return s.settleInternalFailure(ctx, req.ID, err)
	}
	fields["reused"] = reused

	if s.notifier == nil {
		err = fmt.Errorf("core: webhook notifier is not configured")
		s.observeOperation(ctx, startedAt, "fulfillment", err, fields)
		return s.settleInternalFailure(ctx, req.ID, err)
	}
	if err := s.deliver(ctx, req, signedURL); err != nil {
		s.observeOperation(ctx, startedAt, "fulfillment", err, fields)
		return s.settleDeliveryFailure(ctx, req.ID, err)
	}

	if _, err := s.requestStore.MarkCompleted(ctx, req.ID, signedURL); err != nil {
		s.observeOperation(ctx, startedAt, "fulfillment", err, fields)
		return errLedgerUnavailable{cause: err}
	}
	s.observeOperation(ctx, startedAt, "fulfillment", nil, fields)
	return nil
}

// obtainArtifact returns a fresh signed URL for the request, either by
// re-signing a previously completed artifact for the same dedup key or by
// building and uploading a new one.
func (s *Service) obtainArtifact(ctx context.Context, req ExportRequest) (string, bool, error) {
	if s.artifactStore == nil {
		return "", false, fmt.Errorf("core: artifact store is not configured")
	}

	signedURL, reused, err := s.reuseArtifact(ctx, req)
	if err != nil {
		return "", false, err
	}
	if reused {
		return signedURL, true, nil
	}

	signedURL, err = s.buildArtifact(ctx, req)
	if err != nil {
		return "", false, err
	}
	return signedURL, false, nil
}

// reuseArtifact looks for an earlier COMPLETED request with the same dedup
// key and, when one holds an artifact, issues a fresh signed URL against it
// instead of rebuilding the report.
func (s *Service) reuseArtifact(ctx context.Context, req ExportRequest) (string, bool, error) {
	prior, found, err := s.requestStore.FindLatestCompleted(ctx, req.DedupKey(), req.ID)
	if err != nil {
		return "", false, fmt.Errorf("core: lookup completed request: %w", err)
	}
	if !found || strings.TrimSpace(prior.UploadURL) == "" {
		return "", false, nil
	}

	objectKey, err := s.artifactStore.RelativeObjectPath(prior.UploadURL)
	if err != nil {
		return "", false, fmt.Errorf("core: resolve artifact path: %w", err)
	}
	exists, err := s.artifactStore.Exists(ctx, objectKey)
	if err != nil {
		return "", false, fmt.Errorf("core: check artifact: %w", err)
	}
	if !exists {
		return "", false, nil
	}

	signedURL, err := s.artifactStore.SignedURL(ctx, objectKey, s.config.Storage.SignedURLTTL)
	if err != nil {
		return "", false, fmt.Errorf("core: sign artifact url: %w", err)
	}
	if _, err := s.requestStore.SetArtifact(ctx, req.ID, ArtifactRef{
		UploadURL: prior.UploadURL,
		SignedURL: signedURL,
	}); err != nil {
		return "", false, fmt.Errorf("core: record reused artifact: %w", err)
	}
	return signedURL, true, nil
}

// buildArtifact generates the report file, uploads it, removes the local
// copy, and records the artifact on the request.
func (s *Service) buildArtifact(ctx context.Context, req ExportRequest) (string, error) {
	if s.builders == nil {
		return "", fmt.Errorf("core: builder registry is not configured")
	}
	builder, ok := s.builders.Get(req.Type)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrReportTypeNotImplemented, string(req.Type))
	}

	localPath, err := builder.Build(ctx, req)
	if err != nil {
		return "", fmt.Errorf("core: build report: %w", err)
	}
	defer func() { _ = os.Remove(localPath) }()

	objectKey := ObjectKeyFor(req.Sender.APIKey, req.ReferenceDate, filepath.Base(localPath))
	uploadURL, err := s.artifactStore.Upload(ctx, localPath, objectKey)
	if err != nil {
		return "", fmt.Errorf("core: upload artifact: %w", err)
	}
	signedURL, err := s.artifactStore.SignedURL(ctx, objectKey, s.config.Storage.SignedURLTTL)
	if err != nil {
		return "", fmt.Errorf("core: sign artifact url: %w", err)
	}
	if _, err := s.requestStore.SetArtifact(ctx, req.ID, ArtifactRef{
		UploadURL: uploadURL,
		SignedURL: signedURL,
	}); err != nil {
		return "", fmt.Errorf("core: record artifact: %w", err)
	}
	return signedURL, nil
}

func (s *Service) deliver(ctx context.Context, req ExportRequest, signedURL string) error {
	timeout := s.config.Delivery.Timeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := s.notifier.Notify(ctx, req.Sender, signedURL); err != nil {
		return fmt.Errorf("core: webhook delivery: %w", err)
	}
	return nil
}

func (s *Service) settleInternalFailure(ctx context.Context, requestID string, cause error) error {
	if _, err := s.requestStore.MarkInternalFailure(ctx, requestID, cause.Error()); err != nil {
		return errLedgerUnavailable{cause: err}
	}
	return nil
}

func (s *Service) settleDeliveryFailure(ctx context.Context, requestID string, cause error) error {
	if _, err := s.requestStore.MarkDeliveryFailed(ctx, requestID, cause.Error()); err != nil {
		return errLedgerUnavailable{cause: err}
	}
	return nil
}

// ObjectKeyFor lays artifacts out as {api_key}/{reference_date}/{file}.
func ObjectKeyFor(apiKey, referenceDate, fileName string) string {
	return path.Join(apiKey, referenceDate, fileName)
}
