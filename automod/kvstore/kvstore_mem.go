package kvstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

type memValue struct {
	val      string
	deadline time.Time
}

// In-process Store, for tests and single-node development. Only plain values expire; sorted
// sets live until deleted.
type MemStore struct {
	// Clock used for expiry; tests may override it.
	Now func() time.Time

	lk    sync.Mutex
	vals  map[string]memValue
	zsets map[string]map[string]float64
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		Now:   time.Now,
		vals:  make(map[string]memValue),
		zsets: make(map[string]map[string]float64),
	}
}

// caller must hold the lock
func (s *MemStore) lookup(key string) (memValue, bool) {
	v, ok := s.vals[key]
	if !ok {
		return v, false
	}
	if !v.deadline.IsZero() && !s.Now().Before(v.deadline) {
		delete(s.vals, key)
		return v, false
	}
	return v, true
}

func (s *MemStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	v, ok := s.lookup(key)
	return v.val, ok, nil
}

func (s *MemStore) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	v := memValue{val: val}
	if ttl > 0 {
		v.deadline = s.Now().Add(ttl)
	}
	s.vals[key] = v
	return nil
}

func (s *MemStore) Del(ctx context.Context, keys ...string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	for _, k := range keys {
		delete(s.vals, k)
		delete(s.zsets, k)
	}
	return nil
}

func (s *MemStore) Exists(ctx context.Context, key string) (bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	if _, ok := s.lookup(key); ok {
		return true, nil
	}
	_, ok := s.zsets[key]
	return ok, nil
}

func (s *MemStore) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	v, ok := s.lookup(key)
	var cur int64
	if ok {
		parsed, err := strconv.ParseInt(v.val, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %s is not an integer", key)
		}
		cur = parsed
	}
	cur += n
	v.val = strconv.FormatInt(cur, 10)
	s.vals[key] = v
	return cur, nil
}

func (s *MemStore) ZAdd(ctx context.Context, key string, members ...Member) error {
	if len(members) == 0 {
		return nil
	}
	s.lk.Lock()
	defer s.lk.Unlock()
	z, ok := s.zsets[key]
	if !ok {
		z = make(map[string]float64)
		s.zsets[key] = z
	}
	for _, m := range members {
		z[m.Member] = m.Score
	}
	return nil
}

func (s *MemStore) ZRem(ctx context.Context, key string, members ...string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	z, ok := s.zsets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(z, m)
	}
	if len(z) == 0 {
		delete(s.zsets, key)
	}
	return nil
}

// caller must hold the lock
func (s *MemStore) sorted(key string) []Member {
	z := s.zsets[key]
	out := make([]Member, 0, len(z))
	for m, score := range z {
		out = append(out, Member{Member: m, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Member < out[j].Member
		}
		return out[i].Score < out[j].Score
	})
	return out
}

func (s *MemStore) ZRangeByScore(ctx context.Context, key string, min, max float64, limit int) ([]Member, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	out := []Member{}
	for _, m := range s.sorted(key) {
		if m.Score < min || m.Score > max {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemStore) ZRangeByRank(ctx context.Context, key string, start, stop int64) ([]Member, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	all := s.sorted(key)
	n := int64(len(all))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return []Member{}, nil
	}
	return all[start : stop+1], nil
}

func (s *MemStore) ZIncrBy(ctx context.Context, key, member string, n float64) (float64, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	z, ok := s.zsets[key]
	if !ok {
		z = make(map[string]float64)
		s.zsets[key] = z
	}
	z[member] += n
	return z[member], nil
}

func (s *MemStore) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	score, ok := s.zsets[key][member]
	return score, ok, nil
}
