package countstore

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivewatch/hivewatch/automod/keys"
	"github.com/hivewatch/hivewatch/automod/kvstore"
)

func testCountStoreBasics(t *testing.T, cs CountStore) {
	assert := assert.New(t)
	ctx := context.Background()

	c, err := cs.ApprovalCount(ctx, "Alice")
	assert.NoError(err)
	assert.Equal(0, c)

	_, err = cs.IncrementApprovals(ctx, "Alice")
	assert.NoError(err)
	c, err = cs.IncrementApprovals(ctx, "alice")
	assert.NoError(err)
	assert.Equal(2, c)

	c, err = cs.ApprovalCount(ctx, "ALICE")
	assert.NoError(err)
	assert.Equal(2, c)

	c, err = cs.ReplyCount(ctx, "alice")
	assert.NoError(err)
	assert.Equal(0, c)
	c, err = cs.IncrementReplies(ctx, "alice")
	assert.NoError(err)
	assert.Equal(1, c)

	// other users are untouched
	c, err = cs.ApprovalCount(ctx, "bob")
	assert.NoError(err)
	assert.Equal(0, c)

	assert.NoError(cs.Forget(ctx, "alice"))
	c, err = cs.ApprovalCount(ctx, "alice")
	assert.NoError(err)
	assert.Equal(0, c)
	c, err = cs.ReplyCount(ctx, "alice")
	assert.NoError(err)
	assert.Equal(0, c)
}

func TestMemCountStoreBasics(t *testing.T) {
	cs := NewKVCountStore(kvstore.NewMemStore(), keys.New("test"))
	testCountStoreBasics(t, cs)
}

func TestRedisCountStoreBasics(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := kvstore.NewRedisStore(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	testCountStoreBasics(t, NewKVCountStore(store, keys.New("test")))
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewKVCountStore(kvstore.NewMemStore(), keys.New("test"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cs.IncrementApprovals(ctx, "alice")
			assert.NoError(err)
			_, err = cs.IncrementReplies(ctx, "alice")
			assert.NoError(err)
		}()
	}
	wg.Wait()

	c, err := cs.ApprovalCount(ctx, "alice")
	assert.NoError(err)
	assert.Equal(20, c)
	c, err = cs.ReplyCount(ctx, "alice")
	assert.NoError(err)
	assert.Equal(20, c)
}
