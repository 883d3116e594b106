package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-exports/core"
)

// RequestStore is the SQL-backed Request Ledger. Status moves forward only,
// and the PENDING to PROCESSING claim is a conditional update so concurrent
// workers racing on a redelivered job cannot both win.
type RequestStore struct {
	db   *bun.DB
	repo repository.Repository[*exportRequestRecord]
	now  func() time.Time
}

func NewRequestStore(db *bun.DB) (*RequestStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*exportRequestRecord](db, exportRequestHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid export request repository wiring: %w", err)
		}
	}
	return &RequestStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *RequestStore) Create(ctx context.Context, in core.CreateExportRequestInput) (core.ExportRequest, error) {
	if s == nil || s.db == nil {
		return core.ExportRequest{}, fmt.Errorf("sqlstore: request store is not configured")
	}
	if err := in.Sender.Validate(); err != nil {
		return core.ExportRequest{}, err
	}
	if err := in.Type.Validate(); err != nil {
		return core.ExportRequest{}, err
	}
	if err := core.ValidateReferenceDate(in.ReferenceDate); err != nil {
		return core.ExportRequest{}, err
	}

	record := newExportRequestRecord(in, uuid.NewString(), s.now())
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.ExportRequest{}, err
	}
	return record.toDomain(), nil
}

func (s *RequestStore) Get(ctx context.Context, id string) (core.ExportRequest, error) {
	if s == nil || s.db == nil {
		return core.ExportRequest{}, fmt.Errorf("sqlstore: request store is not configured")
	}
	record := &exportRequestRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("er.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ExportRequest{}, fmt.Errorf("%w: %s", core.ErrExportRequestNotFound, id)
		}
		return core.ExportRequest{}, err
	}
	return record.toDomain(), nil
}

func (s *RequestStore) FindActive(ctx context.Context, key core.DedupKey) (core.ExportRequest, bool, error) {
	if s == nil || s.db == nil {
		return core.ExportRequest{}, false, fmt.Errorf("sqlstore: request store is not configured")
	}
	record := &exportRequestRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("er.sender_api_key = ?", key.APIKey).
		Where("er.report_type = ?", string(key.Type)).
		Where("er.reference_date = ?", key.ReferenceDate).
		Where("er.status != ?", string(core.RequestStatusFailed)).
		OrderExpr("er.created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ExportRequest{}, false, nil
		}
		return core.ExportRequest{}, false, err
	}
	return record.toDomain(), true, nil
}

func (s *RequestStore) FindLatestCompleted(ctx context.Context, key core.DedupKey, excludeID string) (core.ExportRequest, bool, error) {
	if s == nil || s.db == nil {
		return core.ExportRequest{}, false, fmt.Errorf("sqlstore: request store is not configured")
	}
	record := &exportRequestRecord{}
	query := s.db.NewSelect().
		Model(record).
		Where("er.sender_api_key = ?", key.APIKey).
		Where("er.report_type = ?", string(key.Type)).
		Where("er.reference_date = ?", key.ReferenceDate).
		Where("er.status = ?", string(core.RequestStatusCompleted)).
		OrderExpr("er.created_at DESC").
		Limit(1)
	if strings.TrimSpace(excludeID) != "" {
		query = query.Where("er.id != ?", strings.TrimSpace(excludeID))
	}
	if err := query.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ExportRequest{}, false, nil
		}
		return core.ExportRequest{}, false, err
	}
	return record.toDomain(), true, nil
}

// ClaimPending is the compare-and-swap claim: the update only fires when the
// row is still PENDING, and the affected-row count decides the winner.
func (s *RequestStore) ClaimPending(ctx context.Context, id string) (core.ExportRequest, bool, error) {
	if s == nil || s.db == nil {
		return core.ExportRequest{}, false, fmt.Errorf("sqlstore: request store is not configured")
	}
	id = strings.TrimSpace(id)
	result, err := s.db.NewUpdate().
		Model((*exportRequestRecord)(nil)).
		Set("status = ?", string(core.RequestStatusProcessing)).
		Set("updated_at = ?", s.now()).
		Where("id = ?", id).
		Where("status = ?", string(core.RequestStatusPending)).
		Exec(ctx)
	if err != nil {
		return core.ExportRequest{}, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.ExportRequest{}, false, err
	}
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return core.ExportRequest{}, false, getErr
	}
	return current, affected == 1, nil
}

// SetArtifact writes upload_url once and refreshes signed_url. Rewriting an
// unchanged upload_url is allowed so the reuse path can re-sign.
func (s *RequestStore) SetArtifact(ctx context.Context, id string, ref core.ArtifactRef) (core.ExportRequest, error) {
	if s == nil || s.db == nil {
		return core.ExportRequest{}, fmt.Errorf("sqlstore: request store is not configured")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return core.ExportRequest{}, err
	}
	if current.UploadURL != "" && current.UploadURL != ref.UploadURL {
		return core.ExportRequest{}, fmt.Errorf("%w: request %s", core.ErrUploadURLAlreadySet, id)
	}
	if _, err := s.db.NewUpdate().
		Model((*exportRequestRecord)(nil)).
		Set("upload_url = ?", ref.UploadURL).
		Set("signed_url = ?", ref.SignedURL).
		Set("updated_at = ?", s.now()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx); err != nil {
		return core.ExportRequest{}, err
	}
	return s.Get(ctx, id)
}

func (s *RequestStore) MarkCompleted(ctx context.Context, id string, signedURL string) (core.ExportRequest, error) {
	return s.settle(ctx, id, core.RequestStatusCompleted, func(update *bun.UpdateQuery) *bun.UpdateQuery {
		return update.Set("signed_url = ?", signedURL)
	})
}

func (s *RequestStore) MarkDeliveryFailed(ctx context.Context, id string, cause string) (core.ExportRequest, error) {
	return s.settle(ctx, id, core.RequestStatusFailed, func(update *bun.UpdateQuery) *bun.UpdateQuery {
		return update.Set("error_api = ?", cause)
	})
}

func (s *RequestStore) MarkInternalFailure(ctx context.Context, id string, cause string) (core.ExportRequest, error) {
	return s.settle(ctx, id, core.RequestStatusFailed, func(update *bun.UpdateQuery) *bun.UpdateQuery {
		return update.Set("internal_error = ?", cause)
	})
}

// settle moves a transient row to a terminal status. The guard mirrors
// ClaimPending: terminal rows are immutable, so the conditional update only
// matches PENDING or PROCESSING.
func (s *RequestStore) settle(
	ctx context.Context,
	id string,
	status core.RequestStatus,
	apply func(*bun.UpdateQuery) *bun.UpdateQuery,
) (core.ExportRequest, error) {
	if s == nil || s.db == nil {
		return core.ExportRequest{}, fmt.Errorf("sqlstore: request store is not configured")
	}
	id = strings.TrimSpace(id)
	update := s.db.NewUpdate().
		Model((*exportRequestRecord)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", s.now()).
		Where("id = ?", id).
		Where("status IN (?)", bun.In([]string{
			string(core.RequestStatusPending),
			string(core.RequestStatusProcessing),
		}))
	if apply != nil {
		update = apply(update)
	}
	result, err := update.Exec(ctx)
	if err != nil {
		return core.ExportRequest{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.ExportRequest{}, err
	}
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return core.ExportRequest{}, getErr
	}
	if affected == 0 {
		return core.ExportRequest{}, fmt.Errorf(
			"%w: %s -> %s", core.ErrInvalidRequestStatusTransition, current.Status, status)
	}
	return current, nil
}

func (s *RequestStore) ListSweepable(ctx context.Context, cutoff time.Time, limit int) ([]core.ExportRequest, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: request store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	records := []*exportRequestRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Where("er.swept = ?", false).
		Where("er.upload_url != ''").
		Where("er.created_at < ?", cutoff).
		OrderExpr("er.created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.ExportRequest, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *RequestStore) MarkSwept(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: request store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*exportRequestRecord)(nil)).
		Set("swept = ?", true).
		Set("updated_at = ?", s.now()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrExportRequestNotFound, id)
	}
	return nil
}

var _ core.RequestStore = (*RequestStore)(nil)
