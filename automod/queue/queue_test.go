package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivewatch/hivewatch/automod/kvstore"
)

func testTimeQueue(t *testing.T, store kvstore.Store) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	q := New(store, "test:queue")

	now := time.Now().UTC().Truncate(time.Millisecond)

	_, ok, err := q.Earliest(ctx)
	require.NoError(err)
	assert.False(ok)

	require.NoError(q.Enqueue(ctx, "late", now.Add(time.Hour)))
	require.NoError(q.EnqueueMany(ctx,
		Entry{Key: "first", ReadyAt: now.Add(-time.Minute)},
		Entry{Key: "second", ReadyAt: now},
	))

	due, err := q.Due(ctx, now, 0)
	require.NoError(err)
	assert.Equal([]Entry{
		{Key: "first", ReadyAt: now.Add(-time.Minute)},
		{Key: "second", ReadyAt: now},
	}, due)

	due, err = q.Due(ctx, now, 1)
	require.NoError(err)
	require.Len(due, 1)
	assert.Equal("first", due[0].Key)

	head, ok, err := q.Earliest(ctx)
	require.NoError(err)
	assert.True(ok)
	assert.Equal("first", head.Key)

	ok, err = q.Contains(ctx, "late")
	require.NoError(err)
	assert.True(ok)

	// re-enqueue moves the entry
	require.NoError(q.Enqueue(ctx, "late", now.Add(-time.Hour)))
	head, _, err = q.Earliest(ctx)
	require.NoError(err)
	assert.Equal("late", head.Key)

	require.NoError(q.Remove(ctx, "late", "first"))
	require.NoError(q.Remove(ctx))
	ok, err = q.Contains(ctx, "late")
	require.NoError(err)
	assert.False(ok)

	n, err := q.Len(ctx)
	require.NoError(err)
	assert.Equal(1, n)

	all, err := q.All(ctx)
	require.NoError(err)
	assert.Equal([]Entry{{Key: "second", ReadyAt: now}}, all)
}

func TestMemTimeQueue(t *testing.T) {
	testTimeQueue(t, kvstore.NewMemStore())
}

func TestRedisTimeQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := kvstore.NewRedisStore(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	testTimeQueue(t, store)
}
