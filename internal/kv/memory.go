package kv

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore implements Store in process on ttlcache. It serves single-node
// deployments and tests; writes are serialized so compare-and-delete stays
// atomic.
type MemoryStore struct {
	mu       sync.Mutex
	cache    *ttlcache.Cache[string, []byte]
	stopOnce sync.Once
}

// NewMemoryStore starts the cache's expiry loop. Call Close to stop it.
func NewMemoryStore() *MemoryStore {
	c := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go c.Start()
	return &MemoryStore{cache: c}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	item := s.cache.Get(key)
	if item == nil {
		return nil, ErrNotFound
	}
	return bytes.Clone(item.Value()), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Set(key, bytes.Clone(value), cacheTTL(ttl))
	return nil
}

func (s *MemoryStore) Take(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.cache.GetAndDelete(key)
	if !ok || item == nil {
		return nil, ErrNotFound
	}
	return item.Value(), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.cache.GetAndDelete(key)
	return ok, nil
}

func (s *MemoryStore) DeleteIfValue(_ context.Context, key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(key)
	if item == nil || !bytes.Equal(item.Value(), value) {
		return false, nil
	}
	s.cache.Delete(key)
	return true, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(key)
	if item == nil {
		return false, nil
	}
	s.cache.Set(key, item.Value(), cacheTTL(ttl))
	return true, nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	item := s.cache.Get(key)
	if item == nil {
		return 0, ErrNotFound
	}

	exp := item.ExpiresAt()
	if exp.IsZero() {
		return NoExpiry, nil
	}
	return time.Until(exp), nil
}

func (s *MemoryStore) Scan(ctx context.Context, prefix string, fn func(key string) error) error {
	keys := s.cache.Keys()
	slices.Sort(keys)

	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// PurgeExpired drops entries whose TTL has elapsed but which the expiry loop
// has not evicted yet.
func (s *MemoryStore) PurgeExpired(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.cache.Len()
	s.cache.DeleteExpired()
	return max(before-s.cache.Len(), 0), nil
}

// Close stops the expiry loop.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(s.cache.Stop)
}

func cacheTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttlcache.NoTTL
	}
	return ttl
}
