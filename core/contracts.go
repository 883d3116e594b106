package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// CreateExportRequestInput carries the admission-time snapshot for a new
// ledger row. Status is always PENDING on creation.
type CreateExportRequestInput struct {
	Sender        SenderRef
	Type          ReportType
	ReferenceDate string
}

type ArtifactRef struct {
	UploadURL string
	SignedURL string
}

// RequestStore is the persistent Request Ledger. Rows are created by
// admission, mutated only by the fulfillment worker afterwards, and never
// deleted (the retention sweeper flags them instead).
type RequestStore interface {
	Create(ctx context.Context, in CreateExportRequestInput) (ExportRequest, error)
	Get(ctx context.Context, id string) (ExportRequest, error)

	// FindActive returns the most recent request for the dedup key whose
	// status is not FAILED, so failed attempts never block a retry.
	FindActive(ctx context.Context, key DedupKey) (ExportRequest, bool, error)

	// FindLatestCompleted returns the most recent COMPLETED request for the
	// dedup key other than excludeID, for the artifact reuse path.
	FindLatestCompleted(ctx context.Context, key DedupKey, excludeID string) (ExportRequest, bool, error)

	// ClaimPending conditionally moves a PENDING request to PROCESSING and
	// reports whether this caller won the claim. The update must act on the
	// affected-row count so queue redeliveries are safe no-ops.
	ClaimPending(ctx context.Context, id string) (ExportRequest, bool, error)

	// SetArtifact persists upload_url (first write only) and refreshes
	// signed_url. A differing existing upload_url is ErrUploadURLAlreadySet.
	SetArtifact(ctx context.Context, id string, ref ArtifactRef) (ExportRequest, error)

	MarkCompleted(ctx context.Context, id string, signedURL string) (ExportRequest, error)
	MarkDeliveryFailed(ctx context.Context, id string, cause string) (ExportRequest, error)
	MarkInternalFailure(ctx context.Context, id string, cause string) (ExportRequest, error)

	// ListSweepable returns requests created before cutoff that still hold an
	// unswept artifact, for the retention sweeper.
	ListSweepable(ctx context.Context, cutoff time.Time, limit int) ([]ExportRequest, error)
	MarkSwept(ctx context.Context, id string) error
}

type CreateSenderInput struct {
	Name          string
	APIKey        string
	WebhookURL    string
	WebhookSecret string
}

type SenderStore interface {
	Create(ctx context.Context, in CreateSenderInput) (Sender, error)
	Get(ctx context.Context, id string) (Sender, error)
	FindByAPIKey(ctx context.Context, apiKey string) (Sender, bool, error)
	FindByWebhookURL(ctx context.Context, webhookURL string) (Sender, bool, error)
}

// ArtifactStore is the durable object storage contract consumed by the
// worker and the retention sweeper.
type ArtifactStore interface {
	// Upload stores the local file under objectKey and returns the permanent
	// object URL.
	Upload(ctx context.Context, localPath string, objectKey string) (string, error)
	SignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, objectKey string) (bool, error)
	Exists(ctx context.Context, objectKey string) (bool, error)
	// RelativeObjectPath strips the store prefix from a permanent URL,
	// yielding the object key signed URLs are issued against.
	RelativeObjectPath(uploadURL string) (string, error)
}

// ReportBuilder produces a compressed report artifact on the local
// filesystem and returns its path. Implementations must derive the working
// path from the request id so concurrent builds never share a temp file.
type ReportBuilder interface {
	Type() ReportType
	Build(ctx context.Context, req ExportRequest) (string, error)
}

type BuilderRegistry interface {
	Register(builder ReportBuilder) error
	Get(reportType ReportType) (ReportBuilder, bool)
}

// WebhookNotifier delivers the signed URL to the sender's webhook endpoint.
// Only HTTP 200/201 count as success; everything else is a delivery failure.
type WebhookNotifier interface {
	Notify(ctx context.Context, sender SenderRef, signedURL string) error
}

// ExportJobMessage is the queue payload. RequestID is the contract; the
// denormalized fields are an optimization and the ledger stays the source of
// truth on the consuming side.
type ExportJobMessage struct {
	RequestID     string
	APIKey        string
	ReferenceDate string
	WebhookURL    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *ExportJobMessage) error
}

type JobDelivery interface {
	Message() *ExportJobMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// RequestLocker serializes fulfillment per dedup key. The conditional
// PENDING->PROCESSING claim already guards double-processing; the locker is
// extra isolation for deployments that want it.
type RequestLocker interface {
	Acquire(ctx context.Context, key DedupKey, ttl time.Duration) (LockHandle, error)
}
