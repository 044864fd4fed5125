package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultScanCount is the SCAN COUNT hint.
const DefaultScanCount = 1000

var deleteIfValue = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore implements Store on go-redis.
type RedisStore struct {
	client    *redis.Client
	scanCount int64
}

// NewRedisStore wraps client. scanCount <= 0 means DefaultScanCount.
func NewRedisStore(client *redis.Client, scanCount int) *RedisStore {
	if scanCount <= 0 {
		scanCount = DefaultScanCount
	}
	return &RedisStore{client: client, scanCount: int64(scanCount)}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, mapRedisErr(err)
	}
	return b, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return mapRedisErr(s.client.Set(ctx, key, value, ttl).Err())
}

// Take uses GETDEL, so two concurrent takers never both see the value.
func (s *RedisStore) Take(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.GetDel(ctx, key).Bytes()
	if err != nil {
		return nil, mapRedisErr(err)
	}
	return b, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, mapRedisErr(err)
	}
	return n > 0, nil
}

func (s *RedisStore) DeleteIfValue(ctx context.Context, key string, value []byte) (bool, error) {
	n, err := deleteIfValue.Run(ctx, s.client, []string{key}, value).Int64()
	if err != nil {
		return false, mapRedisErr(err)
	}
	return n > 0, nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ok, err := s.client.Persist(ctx, key).Result()
		if err != nil {
			return false, mapRedisErr(err)
		}
		if !ok {
			// PERSIST also answers false for keys without a TTL.
			n, err := s.client.Exists(ctx, key).Result()
			return n > 0, mapRedisErr(err)
		}
		return true, nil
	}

	ok, err := s.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, mapRedisErr(err)
	}
	return ok, nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, mapRedisErr(err)
	}

	switch d {
	case -2:
		return 0, ErrNotFound
	case -1:
		return NoExpiry, nil
	}
	return d, nil
}

func (s *RedisStore) Scan(ctx context.Context, prefix string, fn func(key string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", s.scanCount).Result()
		if err != nil {
			return mapRedisErr(err)
		}
		for _, k := range keys {
			if err := fn(k); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return mapRedisErr(s.client.Ping(ctx).Err())
}

func mapRedisErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return errors.Join(ErrUnavailable, err)
	}
}
