package kvstore

import (
	"context"
	"time"
)

// A sorted-set member with its score. Queues use unix milliseconds as the score.
type Member struct {
	Member string
	Score  float64
}

// Store is the key-value backend shared by all automod state: flags with expiry, counters,
// and time-ordered sets.
type Store interface {
	// Returns ok=false (and no error) when the key is missing or expired.
	Get(ctx context.Context, key string) (val string, ok bool, err error)
	// A zero ttl means the key never expires.
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	IncrBy(ctx context.Context, key string, n int64) (int64, error)

	ZAdd(ctx context.Context, key string, members ...Member) error
	ZRem(ctx context.Context, key string, members ...string) error
	// Members with min <= score <= max, lowest score first. limit <= 0 returns all.
	ZRangeByScore(ctx context.Context, key string, min, max float64, limit int) ([]Member, error)
	// Members by rank, inclusive on both ends; negative indices count from the end.
	ZRangeByRank(ctx context.Context, key string, start, stop int64) ([]Member, error)
	ZIncrBy(ctx context.Context, key, member string, n float64) (float64, error)
	ZScore(ctx context.Context, key, member string) (score float64, ok bool, err error)
}

// Score representation of a timestamp in sorted sets.
func TimeScore(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func ScoreTime(score float64) time.Time {
	return time.UnixMilli(int64(score)).UTC()
}
