// Package webhooks delivers export results to sender endpoints. A delivery
// is a single JSON POST carrying the signed artifact URL; only HTTP 200 and
// 201 count as success, and responses are never retried here because the
// ledger records the failure for a caller-driven retry.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-exports/core"
)

const (
	defaultDeliveryTimeout = 30 * time.Second
	signatureHeader        = "X-Export-Signature"
)

// deliveryPayload is the wire shape senders receive.
type deliveryPayload struct {
	Data string `json:"data"`
}

// SecretResolver returns the shared webhook secret for a sender, used to
// sign the payload. Returning an empty secret skips signing.
type SecretResolver func(ctx context.Context, sender core.SenderRef) (string, error)

// SenderStoreSecretResolver resolves secrets from the sender registry.
func SenderStoreSecretResolver(store core.SenderStore) SecretResolver {
	return func(ctx context.Context, sender core.SenderRef) (string, error) {
		if store == nil {
			return "", nil
		}
		registered, found, err := store.FindByAPIKey(ctx, sender.APIKey)
		if err != nil {
			return "", err
		}
		if !found {
			return "", nil
		}
		return registered.WebhookSecret, nil
	}
}

// Notifier posts signed URLs to sender webhook endpoints.
type Notifier struct {
	client  *http.Client
	logger  core.Logger
	secrets SecretResolver
	timeout time.Duration
}

type Option func(*Notifier)

func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) {
		if client != nil {
			n.client = client
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func WithSecretResolver(resolver SecretResolver) Option {
	return func(n *Notifier) {
		n.secrets = resolver
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

func NewNotifier(options ...Option) *Notifier {
	notifier := &Notifier{
		client:  &http.Client{},
		timeout: defaultDeliveryTimeout,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(notifier)
	}
	notifier.logger = glog.Ensure(notifier.logger)
	return notifier
}

// Notify delivers the signed URL to the sender's endpoint. Transport errors,
// timeouts, and any status outside 200/201 are delivery failures.
func (n *Notifier) Notify(ctx context.Context, sender core.SenderRef, signedURL string) error {
	if n == nil || n.client == nil {
		return fmt.Errorf("webhooks: notifier is not configured")
	}
	endpoint := strings.TrimSpace(sender.WebhookURL)
	if endpoint == "" {
		return fmt.Errorf("webhooks: sender webhook url is required")
	}

	body, err := json.Marshal(deliveryPayload{Data: signedURL})
	if err != nil {
		return fmt.Errorf("webhooks: encode payload: %w", err)
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhooks: build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	if n.secrets != nil {
		secret, secretErr := n.secrets(ctx, sender)
		if secretErr != nil {
			return fmt.Errorf("webhooks: resolve secret: %w", secretErr)
		}
		if secret != "" {
			request.Header.Set(signatureHeader, signPayload(secret, body))
		}
	}

	response, err := n.client.Do(request)
	if err != nil {
		return fmt.Errorf("webhooks: post %s: %w", endpoint, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
		return fmt.Errorf("webhooks: endpoint %s returned status %d", endpoint, response.StatusCode)
	}

	n.logger.Debug("webhook delivered",
		"webhook_url", endpoint,
		"status", response.StatusCode,
	)
	return nil
}

func signPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

var _ core.WebhookNotifier = (*Notifier)(nil)
