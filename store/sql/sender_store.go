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

// SenderStore persists webhook sender registrations.
type SenderStore struct {
	db   *bun.DB
	repo repository.Repository[*senderRecord]
	now  func() time.Time
}

func NewSenderStore(db *bun.DB) (*SenderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*senderRecord](db, senderHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sender repository wiring: %w", err)
		}
	}
	return &SenderStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *SenderStore) Create(ctx context.Context, in core.CreateSenderInput) (core.Sender, error) {
	if s == nil || s.db == nil {
		return core.Sender{}, fmt.Errorf("sqlstore: sender store is not configured")
	}
	name := strings.TrimSpace(in.Name)
	apiKey := strings.TrimSpace(in.APIKey)
	webhookURL := strings.TrimSpace(in.WebhookURL)
	if name == "" || apiKey == "" || webhookURL == "" {
		return core.Sender{}, fmt.Errorf("sqlstore: sender name, api key and webhook url are required")
	}

	now := s.now()
	record := &senderRecord{
		ID:            uuid.NewString(),
		Name:          name,
		APIKey:        apiKey,
		WebhookURL:    webhookURL,
		WebhookSecret: strings.TrimSpace(in.WebhookSecret),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Sender{}, err
	}
	return record.toDomain(), nil
}

func (s *SenderStore) Get(ctx context.Context, id string) (core.Sender, error) {
	if s == nil || s.db == nil {
		return core.Sender{}, fmt.Errorf("sqlstore: sender store is not configured")
	}
	record := &senderRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("ws.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Sender{}, fmt.Errorf("%w: %s", core.ErrSenderNotFound, id)
		}
		return core.Sender{}, err
	}
	return record.toDomain(), nil
}

func (s *SenderStore) FindByAPIKey(ctx context.Context, apiKey string) (core.Sender, bool, error) {
	return s.findOne(ctx, "ws.api_key = ?", strings.TrimSpace(apiKey))
}

func (s *SenderStore) FindByWebhookURL(ctx context.Context, webhookURL string) (core.Sender, bool, error) {
	return s.findOne(ctx, "ws.webhook_url = ?", strings.TrimSpace(webhookURL))
}

func (s *SenderStore) findOne(ctx context.Context, clause string, value string) (core.Sender, bool, error) {
	if s == nil || s.db == nil {
		return core.Sender{}, false, fmt.Errorf("sqlstore: sender store is not configured")
	}
	if value == "" {
		return core.Sender{}, false, nil
	}
	record := &senderRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where(clause, value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Sender{}, false, nil
		}
		return core.Sender{}, false, err
	}
	return record.toDomain(), true, nil
}

var _ core.SenderStore = (*SenderStore)(nil)
