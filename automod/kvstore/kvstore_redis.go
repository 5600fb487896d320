package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	Client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// Connects to redis, retrying the initial ping with exponential backoff.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)

	// check redis connection
	ping := func() error {
		_, err := rdb.Ping(ctx).Result()
		if err != nil {
			slog.Warn("redis ping failed", "err", err)
		}
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(ping, bo); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisStore{Client: rdb}, nil
}

func formatScore(f float64) string {
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsInf(f, 1) {
		return "+inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func fromZ(zs []redis.Z) []Member {
	out := make([]Member, 0, len(zs))
	for _, z := range zs {
		m, ok := z.Member.(string)
		if !ok {
			m = fmt.Sprint(z.Member)
		}
		out = append(out, Member{Member: m, Score: z.Score})
	}
	return out
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return s.Client.Set(ctx, key, val, ttl).Err()
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.Client.Del(ctx, keys...).Err()
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.Client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return s.Client.IncrBy(ctx, key, n).Result()
}

func (s *RedisStore) ZAdd(ctx context.Context, key string, members ...Member) error {
	if len(members) == 0 {
		return nil
	}
	zs := make([]redis.Z, 0, len(members))
	for _, m := range members {
		zs = append(zs, redis.Z{Score: m.Score, Member: m.Member})
	}
	return s.Client.ZAdd(ctx, key, zs...).Err()
}

func (s *RedisStore) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, 0, len(members))
	for _, m := range members {
		args = append(args, m)
	}
	return s.Client.ZRem(ctx, key, args...).Err()
}

func (s *RedisStore) ZRangeByScore(ctx context.Context, key string, min, max float64, limit int) ([]Member, error) {
	opt := &redis.ZRangeBy{
		Min: formatScore(min),
		Max: formatScore(max),
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}
	zs, err := s.Client.ZRangeByScoreWithScores(ctx, key, opt).Result()
	if err != nil {
		return nil, err
	}
	return fromZ(zs), nil
}

func (s *RedisStore) ZRangeByRank(ctx context.Context, key string, start, stop int64) ([]Member, error) {
	zs, err := s.Client.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	return fromZ(zs), nil
}

func (s *RedisStore) ZIncrBy(ctx context.Context, key, member string, n float64) (float64, error) {
	return s.Client.ZIncrBy(ctx, key, n, member).Result()
}

func (s *RedisStore) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	v, err := s.Client.ZScore(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
