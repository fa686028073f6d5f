package cache

import (
	"context"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
)

type MemcacheBackend struct {
	mc *memcache.Client
}

func NewMemcacheBackend(mc *memcache.Client) *MemcacheBackend {
	return &MemcacheBackend{mc: mc}
}

func (b *MemcacheBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item, err := b.mc.Get(key)
	if err == memcache.ErrCacheMiss {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return item.Value, true, nil
}

func (b *MemcacheBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.mc.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(ttl / time.Second),
	})
}

type RedisBackend struct {
	rdb *redis.Client
}

func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := b.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.rdb.Set(ctx, key, value, ttl).Err()
}

var (
	_ Backend = (*MemcacheBackend)(nil)
	_ Backend = (*RedisBackend)(nil)
)
