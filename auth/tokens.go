package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/goliatone/go-exports/core"
)

const defaultTokenTTL = time.Hour

type senderClaims struct {
	SenderID string `json:"sender_id"`
	jwt.RegisteredClaims
}

// TokenIssuer exchanges a sender API key for a short-lived bearer token and
// verifies tokens back to the sender that owns them.
type TokenIssuer struct {
	store  core.SenderStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type TokenOption func(*TokenIssuer)

func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(i *TokenIssuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

func WithTokenClock(now func() time.Time) TokenOption {
	return func(i *TokenIssuer) {
		if now != nil {
			i.now = now
		}
	}
}

func NewTokenIssuer(store core.SenderStore, secret string, options ...TokenOption) (*TokenIssuer, error) {
	if store == nil {
		return nil, fmt.Errorf("auth: sender store is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("auth: token signing secret is required")
	}
	issuer := &TokenIssuer{
		store:  store,
		secret: []byte(secret),
		ttl:    defaultTokenTTL,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(issuer)
	}
	return issuer, nil
}

// Issue returns a signed token for the sender owning apiKey.
func (i *TokenIssuer) Issue(ctx context.Context, apiKey string) (string, error) {
	if i == nil || i.store == nil {
		return "", fmt.Errorf("auth: token issuer is not configured")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", fmt.Errorf("auth: api key is required")
	}
	sender, found, err := i.store.FindByAPIKey(ctx, apiKey)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: api key", core.ErrSenderNotFound)
	}

	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, senderClaims{
		SenderID: sender.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sender.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})
	return token.SignedString(i.secret)
}

// Verify parses a token and resolves the sender it was issued to.
func (i *TokenIssuer) Verify(ctx context.Context, tokenString string) (core.Sender, error) {
	if i == nil || i.store == nil {
		return core.Sender{}, fmt.Errorf("auth: token issuer is not configured")
	}
	claims := &senderClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return core.Sender{}, fmt.Errorf("auth: parse token: %w", err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.SenderID) == "" {
		return core.Sender{}, fmt.Errorf("auth: token is not valid")
	}
	return i.store.Get(ctx, claims.SenderID)
}
