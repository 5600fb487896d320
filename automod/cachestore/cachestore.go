package cachestore

import (
	"context"
	"time"
)

type CacheStore interface {
	// Returns an empty string (and no error) on a miss.
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string, ttl time.Duration) error
	Purge(ctx context.Context, name, key string) error
}
