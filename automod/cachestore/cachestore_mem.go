package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memEntry struct {
	val      string
	deadline time.Time
}

// The LRU itself only knows a single TTL (the longest we will ever use); each entry also
// carries its own deadline so shorter TTLs are honoured.
type MemCacheStore struct {
	Data *expirable.LRU[string, memEntry]
	Now  func() time.Time
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, maxTTL time.Duration) *MemCacheStore {
	return &MemCacheStore{
		Data: expirable.NewLRU[string, memEntry](capacity, nil, maxTTL),
		Now:  time.Now,
	}
}

func memCacheKey(name, key string) string {
	return name + "/" + key
}

func (s *MemCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	k := memCacheKey(name, key)
	v, ok := s.Data.Get(k)
	if !ok {
		return "", nil
	}
	if !s.Now().Before(v.deadline) {
		s.Data.Remove(k)
		return "", nil
	}
	return v.val, nil
}

func (s *MemCacheStore) Set(ctx context.Context, name, key string, val string, ttl time.Duration) error {
	s.Data.Add(memCacheKey(name, key), memEntry{val: val, deadline: s.Now().Add(ttl)})
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.Data.Remove(memCacheKey(name, key))
	return nil
}
