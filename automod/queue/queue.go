// Time-ordered work queues, stored as a sorted set scored by the time an entry becomes ready.
package queue

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hivewatch/hivewatch/automod/kvstore"
)

type Entry struct {
	Key     string
	ReadyAt time.Time
}

// Adding a key that is already queued moves it to the new ready time.
type TimeQueue struct {
	Store kvstore.Store
	Key   string
}

func New(store kvstore.Store, key string) *TimeQueue {
	return &TimeQueue{Store: store, Key: key}
}

func toEntries(members []kvstore.Member) []Entry {
	out := make([]Entry, 0, len(members))
	for _, m := range members {
		out = append(out, Entry{Key: m.Member, ReadyAt: kvstore.ScoreTime(m.Score)})
	}
	return out
}

func (q *TimeQueue) Enqueue(ctx context.Context, key string, readyAt time.Time) error {
	return q.EnqueueMany(ctx, Entry{Key: key, ReadyAt: readyAt})
}

func (q *TimeQueue) EnqueueMany(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	members := make([]kvstore.Member, 0, len(entries))
	for _, e := range entries {
		members = append(members, kvstore.Member{Member: e.Key, Score: kvstore.TimeScore(e.ReadyAt)})
	}
	if err := q.Store.ZAdd(ctx, q.Key, members...); err != nil {
		return fmt.Errorf("enqueue to %s: %w", q.Key, err)
	}
	return nil
}

// Entries ready at or before now, oldest first. limit <= 0 returns all of them.
func (q *TimeQueue) Due(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	members, err := q.Store.ZRangeByScore(ctx, q.Key, math.Inf(-1), kvstore.TimeScore(now), limit)
	if err != nil {
		return nil, fmt.Errorf("reading due entries of %s: %w", q.Key, err)
	}
	return toEntries(members), nil
}

// Returns ok=false when the queue is empty.
func (q *TimeQueue) Earliest(ctx context.Context) (Entry, bool, error) {
	members, err := q.Store.ZRangeByRank(ctx, q.Key, 0, 0)
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading head of %s: %w", q.Key, err)
	}
	if len(members) == 0 {
		return Entry{}, false, nil
	}
	return toEntries(members)[0], true, nil
}

func (q *TimeQueue) Contains(ctx context.Context, key string) (bool, error) {
	_, ok, err := q.Store.ZScore(ctx, q.Key, key)
	return ok, err
}

func (q *TimeQueue) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return q.Store.ZRem(ctx, q.Key, keys...)
}

func (q *TimeQueue) All(ctx context.Context) ([]Entry, error) {
	members, err := q.Store.ZRangeByRank(ctx, q.Key, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", q.Key, err)
	}
	return toEntries(members), nil
}

func (q *TimeQueue) Len(ctx context.Context) (int, error) {
	all, err := q.All(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}
