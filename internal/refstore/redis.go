package refstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCmdable captures the subset of *redis.Client used by RedisBackend,
// so tests can substitute a miniredis-style fake without a live server.
type RedisCmdable interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisBackend is the durable Backend implementation, keying references
// under a fixed namespace (mirrors the teacher's "pulse:stream:%s" key
// namespacing convention in features/stream/pulse/clients/pulse/client.go).
type RedisBackend struct {
	rdb    RedisCmdable
	prefix string
}

// NewRedisBackend wraps a Redis client. keyPrefix namespaces every key
// this backend writes (e.g. "bunkerplan:ref:").
func NewRedisBackend(rdb RedisCmdable, keyPrefix string) *RedisBackend {
	return &RedisBackend{rdb: rdb, prefix: keyPrefix}
}

func (b *RedisBackend) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.rdb.Set(ctx, b.prefix+key, value, ttl).Err()
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := b.rdb.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}
