package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// Process-local copies are only trusted for a short while, since purges issued by other
// processes do not reach them.
const localCacheTTL = time.Minute

type RedisCacheStore struct {
	Data   *cache.Cache
	Prefix string
}

var _ CacheStore = (*RedisCacheStore)(nil)

// Wraps an existing client, so the cache shares a connection pool with the rest of the
// redis-backed state.
func NewRedisCacheStore(rdb *redis.Client, prefix string) *RedisCacheStore {
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, localCacheTTL),
	})
	return &RedisCacheStore{
		Data:   data,
		Prefix: prefix,
	}
}

func (s *RedisCacheStore) redisCacheKey(name, key string) string {
	return s.Prefix + ":cache/" + name + "/" + key
}

func (s *RedisCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	var val string
	err := s.Data.Get(ctx, s.redisCacheKey(name, key), &val)
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, name, key string, val string, ttl time.Duration) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   s.redisCacheKey(name, key),
		Value: val,
		TTL:   ttl,
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, name, key string) error {
	err := s.Data.Delete(ctx, s.redisCacheKey(name, key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
