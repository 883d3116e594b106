// Package redislock provides a Redis-backed request locker for deployments
// running more than one fulfillment worker process.
package redislock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/goliatone/go-exports/core"
)

const (
	lockKeyPrefix  = "go-exports::lock::"
	defaultLockTTL = 30 * time.Second
)

// releaseScript deletes the lock only when the stored token still belongs to
// this holder, so an expired lock re-acquired by another worker survives a
// late unlock.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker serializes fulfillment per dedup key with SET NX plus TTL.
type Locker struct {
	client goredis.UniversalClient
}

func NewLocker(client goredis.UniversalClient) (*Locker, error) {
	if client == nil {
		return nil, fmt.Errorf("redislock: redis client is required")
	}
	return &Locker{client: client}, nil
}

func (l *Locker) Acquire(ctx context.Context, key core.DedupKey, ttl time.Duration) (core.LockHandle, error) {
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("redislock: locker is not configured")
	}
	lockKey, err := LockKey(key)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redislock: acquire %s: %w", lockKey, err)
	}
	if !ok {
		return nil, fmt.Errorf("redislock: lock already held for %q", lockKey)
	}
	return &lockHandle{client: l.client, key: lockKey, token: token}, nil
}

type lockHandle struct {
	client goredis.UniversalClient
	key    string
	token  string
}

func (h *lockHandle) Unlock(ctx context.Context) error {
	if h == nil || h.client == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, h.client, []string{h.key}, h.token).Err(); err != nil && err != goredis.Nil {
		return fmt.Errorf("redislock: release %s: %w", h.key, err)
	}
	return nil
}

// LockKey derives the Redis key for a dedup key.
func LockKey(key core.DedupKey) (string, error) {
	apiKey := strings.TrimSpace(key.APIKey)
	referenceDate := strings.TrimSpace(key.ReferenceDate)
	if apiKey == "" || referenceDate == "" {
		return "", fmt.Errorf("redislock: api key and reference date are required")
	}
	if err := key.Type.Validate(); err != nil {
		return "", err
	}
	return lockKeyPrefix + apiKey + "::" + string(key.Type) + "::" + referenceDate, nil
}

var _ core.RequestLocker = (*Locker)(nil)
