package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultRequestLockTTL = 30 * time.Second

// MemoryRequestLocker is the in-process default. Deployments with multiple
// worker processes should swap in a distributed locker.
type MemoryRequestLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryRequestLocker() *MemoryRequestLocker {
	return &MemoryRequestLocker{
		locks: make(map[string]time.Time),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryRequestLocker) Acquire(_ context.Context, key DedupKey, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: request locker is not configured")
	}
	lockKey, err := requestLockKey(key)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = defaultRequestLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.locks[lockKey]; ok && now.Before(until) {
		return nil, fmt.Errorf("core: request lock already held for %q", lockKey)
	}
	l.locks[lockKey] = now.Add(ttl)
	return &memoryLockHandle{locker: l, key: lockKey}, nil
}

type memoryLockHandle struct {
	locker *MemoryRequestLocker
	key    string
	once   sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		delete(h.locker.locks, h.key)
		h.locker.mu.Unlock()
	})
	return nil
}

func requestLockKey(key DedupKey) (string, error) {
	apiKey := strings.TrimSpace(key.APIKey)
	referenceDate := strings.TrimSpace(key.ReferenceDate)
	if apiKey == "" || referenceDate == "" {
		return "", fmt.Errorf("core: api key and reference date are required for lock acquisition")
	}
	if err := key.Type.Validate(); err != nil {
		return "", err
	}
	return apiKey + "::" + string(key.Type) + "::" + referenceDate, nil
}

var _ RequestLocker = (*MemoryRequestLocker)(nil)
