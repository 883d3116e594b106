package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-exports/core"
)

const senderCacheKeyPrefix = "go-exports::sender::v1"

// CachedSenderStore caches api-key lookups in front of a base sender store.
// Admission hits the lookup on every call, while sender registrations change
// rarely, so cached reads with invalidation on create are a safe trade.
type CachedSenderStore struct {
	base  core.SenderStore
	cache repositorycache.CacheService
}

func NewCachedSenderStore(base core.SenderStore, cacheService repositorycache.CacheService) (*CachedSenderStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base sender store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: sender cache service is required")
	}
	return &CachedSenderStore{base: base, cache: cacheService}, nil
}

// SenderCacheKey is the deterministic cache key contract for api-key reads:
// go-exports::sender::v1::api_key::<api_key> with the key URL-path escaped.
func SenderCacheKey(apiKey string) (string, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", fmt.Errorf("sqlstore: api key is required for cache key")
	}
	return strings.Join([]string{senderCacheKeyPrefix, "api_key", url.PathEscape(apiKey)}, "::"), nil
}

type cachedSenderEntry struct {
	Sender core.Sender
	Found  bool
}

func (s *CachedSenderStore) Create(ctx context.Context, in core.CreateSenderInput) (core.Sender, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Sender{}, fmt.Errorf("sqlstore: cached sender store is not configured")
	}
	created, err := s.base.Create(ctx, in)
	if err != nil {
		return core.Sender{}, err
	}
	if cacheKey, keyErr := SenderCacheKey(created.APIKey); keyErr == nil {
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			return core.Sender{}, err
		}
	}
	return created, nil
}

func (s *CachedSenderStore) Get(ctx context.Context, id string) (core.Sender, error) {
	if s == nil || s.base == nil {
		return core.Sender{}, fmt.Errorf("sqlstore: cached sender store is not configured")
	}
	return s.base.Get(ctx, id)
}

func (s *CachedSenderStore) FindByAPIKey(ctx context.Context, apiKey string) (core.Sender, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Sender{}, false, fmt.Errorf("sqlstore: cached sender store is not configured")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return core.Sender{}, false, nil
	}
	cacheKey, err := SenderCacheKey(apiKey)
	if err != nil {
		return core.Sender{}, false, err
	}

	entry, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedSenderEntry, error) {
		sender, found, fetchErr := s.base.FindByAPIKey(ctx, apiKey)
		if fetchErr != nil {
			return cachedSenderEntry{}, fetchErr
		}
		return cachedSenderEntry{Sender: sender, Found: found}, nil
	})
	if err != nil {
		return core.Sender{}, false, err
	}
	return entry.Sender, entry.Found, nil
}

func (s *CachedSenderStore) FindByWebhookURL(ctx context.Context, webhookURL string) (core.Sender, bool, error) {
	if s == nil || s.base == nil {
		return core.Sender{}, false, fmt.Errorf("sqlstore: cached sender store is not configured")
	}
	return s.base.FindByWebhookURL(ctx, webhookURL)
}

var _ core.SenderStore = (*CachedSenderStore)(nil)
