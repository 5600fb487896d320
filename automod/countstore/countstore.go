package countstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hivewatch/hivewatch/automod/keys"
	"github.com/hivewatch/hivewatch/automod/kvstore"
)

// Per-user counters. Values only grow until Forget is called for the user.
type CountStore interface {
	// Number of times content the app flagged for this user was approved by moderators.
	ApprovalCount(ctx context.Context, user string) (int, error)
	IncrementApprovals(ctx context.Context, user string) (int, error)
	ReplyCount(ctx context.Context, user string) (int, error)
	IncrementReplies(ctx context.Context, user string) (int, error)
	Forget(ctx context.Context, user string) error
}

// Approvals live in a single sorted set (one member per user), so the liveness sweep can
// see every user with approvals; replies are plain integer keys.
type KVCountStore struct {
	Store kvstore.Store
	Keys  *keys.Keys
}

var _ CountStore = (*KVCountStore)(nil)

func NewKVCountStore(store kvstore.Store, k *keys.Keys) *KVCountStore {
	return &KVCountStore{Store: store, Keys: k}
}

func approvalMember(user string) string {
	return keys.NormUser(user)
}

func (s *KVCountStore) ApprovalCount(ctx context.Context, user string) (int, error) {
	v, ok, err := s.Store.ZScore(ctx, s.Keys.Approvals(), approvalMember(user))
	if err != nil || !ok {
		return 0, err
	}
	return int(v), nil
}

func (s *KVCountStore) IncrementApprovals(ctx context.Context, user string) (int, error) {
	v, err := s.Store.ZIncrBy(ctx, s.Keys.Approvals(), approvalMember(user), 1)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (s *KVCountStore) ReplyCount(ctx context.Context, user string) (int, error) {
	v, ok, err := s.Store.Get(ctx, s.Keys.Replies(user))
	if err != nil || !ok {
		return 0, err
	}
	c, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("corrupt reply counter for %s: %w", user, err)
	}
	return c, nil
}

func (s *KVCountStore) IncrementReplies(ctx context.Context, user string) (int, error) {
	v, err := s.Store.IncrBy(ctx, s.Keys.Replies(user), 1)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (s *KVCountStore) Forget(ctx context.Context, user string) error {
	if err := s.Store.ZRem(ctx, s.Keys.Approvals(), approvalMember(user)); err != nil {
		return err
	}
	return s.Store.Del(ctx, s.Keys.Replies(user))
}
