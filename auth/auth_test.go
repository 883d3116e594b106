package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-exports/core"
)

type memSenderStore struct {
	mu      sync.Mutex
	nextID  int
	senders map[string]core.Sender
}

func newMemSenderStore() *memSenderStore {
	return &memSenderStore{senders: map[string]core.Sender{}}
}

func (m *memSenderStore) Create(_ context.Context, in core.CreateSenderInput) (core.Sender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	sender := core.Sender{
		ID:            fmt.Sprintf("sender-%d", m.nextID),
		Name:          in.Name,
		APIKey:        in.APIKey,
		WebhookURL:    in.WebhookURL,
		WebhookSecret: in.WebhookSecret,
		CreatedAt:     time.Now().UTC(),
	}
	m.senders[sender.ID] = sender
	return sender, nil
}

func (m *memSenderStore) Get(_ context.Context, id string) (core.Sender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sender, ok := m.senders[id]
	if !ok {
		return core.Sender{}, core.ErrSenderNotFound
	}
	return sender, nil
}

func (m *memSenderStore) FindByAPIKey(_ context.Context, apiKey string) (core.Sender, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sender := range m.senders {
		if sender.APIKey == apiKey {
			return sender, true, nil
		}
	}
	return core.Sender{}, false, nil
}

func (m *memSenderStore) FindByWebhookURL(_ context.Context, webhookURL string) (core.Sender, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sender := range m.senders {
		if sender.WebhookURL == webhookURL {
			return sender, true, nil
		}
	}
	return core.Sender{}, false, nil
}

func TestRegisterSenderMintsCredentials(t *testing.T) {
	store := newMemSenderStore()
	registry, err := NewSenderRegistry(store, nil)
	if err != nil {
		t.Fatalf("NewSenderRegistry: %v", err)
	}

	sender, err := registry.Register(context.Background(), RegisterSenderInput{
		Name:       "Marketing",
		WebhookURL: "https://acme.test/hooks/exports",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if sender.APIKey == "" {
		t.Fatalf("expected a generated api key")
	}
	if len(sender.APIKey) != 36 {
		t.Fatalf("expected a uuid api key, got %q", sender.APIKey)
	}
	if sender.WebhookSecret != WebhookSecretFor(sender.APIKey) {
		t.Fatalf("webhook secret must derive from the api key")
	}
	if len(sender.WebhookSecret) != 64 {
		t.Fatalf("expected hex sha-256 secret, got %q", sender.WebhookSecret)
	}
}

func TestRegisterSenderRejectsDuplicateWebhookURL(t *testing.T) {
	store := newMemSenderStore()
	registry, err := NewSenderRegistry(store, nil)
	if err != nil {
		t.Fatalf("NewSenderRegistry: %v", err)
	}
	input := RegisterSenderInput{Name: "Marketing", WebhookURL: "https://acme.test/hooks/exports"}
	if _, err := registry.Register(context.Background(), input); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := registry.Register(context.Background(), input); err == nil {
		t.Fatalf("expected duplicate webhook url rejection")
	}
}

func TestTokenIssueAndVerifyRoundTrip(t *testing.T) {
	store := newMemSenderStore()
	registry, _ := NewSenderRegistry(store, nil)
	sender, err := registry.Register(context.Background(), RegisterSenderInput{
		Name:       "Marketing",
		WebhookURL: "https://acme.test/hooks/exports",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	issuer, err := NewTokenIssuer(store, "signing-secret")
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	token, err := issuer.Issue(context.Background(), sender.APIKey)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected a compact jwt, got %q", token)
	}

	verified, err := issuer.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verified.ID != sender.ID {
		t.Fatalf("verified sender %q, want %q", verified.ID, sender.ID)
	}
}

func TestTokenIssueRejectsUnknownAPIKey(t *testing.T) {
	issuer, err := NewTokenIssuer(newMemSenderStore(), "signing-secret")
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	if _, err := issuer.Issue(context.Background(), "not-registered"); err == nil {
		t.Fatalf("expected unknown api key rejection")
	}
}

func TestTokenVerifyRejectsExpiredToken(t *testing.T) {
	store := newMemSenderStore()
	registry, _ := NewSenderRegistry(store, nil)
	sender, err := registry.Register(context.Background(), RegisterSenderInput{
		Name:       "Marketing",
		WebhookURL: "https://acme.test/hooks/exports",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	issuer, err := NewTokenIssuer(store, "signing-secret",
		WithTokenTTL(time.Minute),
		WithTokenClock(func() time.Time { return current }),
	)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	token, err := issuer.Issue(context.Background(), sender.APIKey)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, err := issuer.Verify(context.Background(), token); err == nil {
		t.Fatalf("expected expired token rejection")
	}
}

func TestTokenVerifyRejectsTamperedToken(t *testing.T) {
	store := newMemSenderStore()
	registry, _ := NewSenderRegistry(store, nil)
	sender, _ := registry.Register(context.Background(), RegisterSenderInput{
		Name:       "Marketing",
		WebhookURL: "https://acme.test/hooks/exports",
	})

	issuer, _ := NewTokenIssuer(store, "signing-secret")
	token, err := issuer.Issue(context.Background(), sender.APIKey)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other, _ := NewTokenIssuer(store, "different-secret")
	if _, err := other.Verify(context.Background(), token); err == nil {
		t.Fatalf("expected signature mismatch rejection")
	}
}
