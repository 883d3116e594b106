// Package auth covers the sender-facing credential surface: onboarding new
// webhook senders and issuing the bearer tokens they authenticate with.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-exports/core"
)

// RegisterSenderInput is the onboarding request for a new webhook sender.
type RegisterSenderInput struct {
	Name       string
	WebhookURL string
}

// SenderRegistry onboards senders. Each registration mints a fresh API key
// and derives the webhook signing secret from it, so the sender only has to
// store one credential pair.
type SenderRegistry struct {
	store  core.SenderStore
	logger core.Logger
}

func NewSenderRegistry(store core.SenderStore, logger core.Logger) (*SenderRegistry, error) {
	if store == nil {
		return nil, fmt.Errorf("auth: sender store is required")
	}
	return &SenderRegistry{
		store:  store,
		logger: glog.Ensure(logger),
	}, nil
}

// Register creates the sender with a generated API key. A webhook URL can
// only belong to one sender.
func (r *SenderRegistry) Register(ctx context.Context, in RegisterSenderInput) (core.Sender, error) {
	if r == nil || r.store == nil {
		return core.Sender{}, fmt.Errorf("auth: sender registry is not configured")
	}
	name := strings.TrimSpace(in.Name)
	webhookURL := strings.TrimSpace(in.WebhookURL)
	if name == "" {
		return core.Sender{}, fmt.Errorf("auth: sender name is required")
	}
	if webhookURL == "" {
		return core.Sender{}, fmt.Errorf("auth: webhook url is required")
	}

	_, exists, err := r.store.FindByWebhookURL(ctx, webhookURL)
	if err != nil {
		return core.Sender{}, err
	}
	if exists {
		return core.Sender{}, fmt.Errorf("auth: a sender already uses webhook url %q", webhookURL)
	}

	apiKey := uuid.NewString()
	created, err := r.store.Create(ctx, core.CreateSenderInput{
		Name:          name,
		APIKey:        apiKey,
		WebhookURL:    webhookURL,
		WebhookSecret: WebhookSecretFor(apiKey),
	})
	if err != nil {
		return core.Sender{}, err
	}

	r.logger.Info("sender registered",
		"sender_id", created.ID,
		"webhook_url", created.WebhookURL,
	)
	return created, nil
}

// WebhookSecretFor derives the payload signing secret from the API key.
func WebhookSecretFor(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}
