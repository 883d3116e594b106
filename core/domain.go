package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidReportType              = errors.New("core: invalid report type")
	ErrInvalidRequestStatusTransition = errors.New("core: invalid export request status transition")
	ErrInvalidReferenceDate           = errors.New("core: invalid reference date")
	ErrExportRequestNotFound          = errors.New("core: export request not found")
	ErrSenderNotFound                 = errors.New("core: sender not found")
	ErrDuplicateInFlightRequest       = errors.New("core: duplicate in-flight export request")
	ErrUploadURLAlreadySet            = errors.New("core: upload url is already set")
	ErrReportTypeNotImplemented       = errors.New("core: report type has no builder")
)

type ReportType string

const (
	ReportTypeAccounts          ReportType = "accounts"
	ReportTypeAccountsMarketing ReportType = "accounts_marketing"
)

func (t ReportType) Validate() error {
	switch t {
	case ReportTypeAccounts, ReportTypeAccountsMarketing:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidReportType, string(t))
	}
}

type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "PENDING"
	RequestStatusProcessing RequestStatus = "PROCESSING"
	RequestStatusCompleted  RequestStatus = "COMPLETED"
	RequestStatusFailed     RequestStatus = "FAILED"
)

// Terminal reports whether a status can never be left again.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusFailed
}

// SenderRef is the denormalized snapshot of a sender taken at admission time.
// Later changes to the sender's registration never affect in-flight requests.
type SenderRef struct {
	ID         string
	Name       string
	APIKey     string
	WebhookURL string
}

func (s SenderRef) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("core: sender id is required")
	}
	if strings.TrimSpace(s.APIKey) == "" {
		return fmt.Errorf("core: sender api key is required")
	}
	if strings.TrimSpace(s.WebhookURL) == "" {
		return fmt.Errorf("core: sender webhook url is required")
	}
	return nil
}

// Sender is the registered sender configuration, owned by the auth surface.
type Sender struct {
	ID            string
	Name          string
	APIKey        string
	WebhookURL    string
	WebhookSecret string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s Sender) Ref() SenderRef {
	return SenderRef{
		ID:         s.ID,
		Name:       s.Name,
		APIKey:     s.APIKey,
		WebhookURL: s.WebhookURL,
	}
}

// ExportRequest is the durable ledger row tracking one report request.
type ExportRequest struct {
	ID            string
	Sender        SenderRef
	Type          ReportType
	Status        RequestStatus
	ReferenceDate string
	UploadURL     string
	SignedURL     string
	ErrorAPI      string
	InternalError string
	Swept         bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DedupKey identifies the (api_key, type, reference_date) tuple used to
// decide whether a fresh report must be generated.
type DedupKey struct {
	APIKey        string
	Type          ReportType
	ReferenceDate string
}

func (r ExportRequest) DedupKey() DedupKey {
	return DedupKey{
		APIKey:        r.Sender.APIKey,
		Type:          r.Type,
		ReferenceDate: r.ReferenceDate,
	}
}

// TransitionTo enforces the forward-only lifecycle
// PENDING -> PROCESSING -> {COMPLETED, FAILED}. PENDING may jump straight to
// a terminal status (admission-time enqueue failure, reuse fast path).
func (r *ExportRequest) TransitionTo(status RequestStatus, now time.Time) error {
	if r == nil {
		return nil
	}
	if !requestTransitionAllowed(r.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidRequestStatusTransition, r.Status, status)
	}
	r.Status = status
	r.UpdatedAt = now
	return nil
}

func requestTransitionAllowed(current, next RequestStatus) bool {
	if current == next {
		return false
	}
	switch current {
	case RequestStatusPending:
		return next == RequestStatusProcessing ||
			next == RequestStatusCompleted ||
			next == RequestStatusFailed
	case RequestStatusProcessing:
		return next == RequestStatusCompleted || next == RequestStatusFailed
	default:
		return false
	}
}

const referenceDateLayout = "2006-01-02"

// ReferenceDateFor truncates an instant to its UTC calendar date.
func ReferenceDateFor(t time.Time) string {
	return t.UTC().Format(referenceDateLayout)
}

func ValidateReferenceDate(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", ErrInvalidReferenceDate)
	}
	if _, err := time.Parse(referenceDateLayout, trimmed); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidReferenceDate, value)
	}
	return nil
}
