// Package kv is the shared fast store behind transfer tokens and the
// connection registry. Every operation touches a single key atomically.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("kv: key not found")
	ErrUnavailable = errors.New("kv: store unavailable")
)

// NoExpiry is returned by TTL for keys without an expiration.
const NoExpiry time.Duration = -1

// Store is a string-keyed byte store with per-key TTLs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value. A non-positive ttl stores the key without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Take atomically reads and deletes key.
	Take(ctx context.Context, key string) ([]byte, error)
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// DeleteIfValue removes key only while it still holds value.
	DeleteIfValue(ctx context.Context, key string, value []byte) (bool, error)
	// Expire resets the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// TTL returns the remaining lifetime, NoExpiry, or ErrNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Scan calls fn for every key starting with prefix. Keys written during
	// the scan may or may not be visited.
	Scan(ctx context.Context, prefix string, fn func(key string) error) error
	Ping(ctx context.Context) error
}

// ExpiredPurger is implemented by stores that keep expired entries in memory
// until they are purged.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}
