package platform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindFromID(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(KindPost, KindFromID("t3_abc"))
	assert.Equal(KindComment, KindFromID("t1_abc"))
	assert.Equal(KindUnknown, KindFromID("t2_abc"))
	assert.Equal(KindUnknown, KindFromID(""))
	assert.Equal("post", KindPost.String())
}

func TestMockClientHistory(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	now := time.Now()

	c := NewMockClient("hivewatch", "pics")
	c.AddUser(User{Name: "Alice"},
		Item{ID: "t3_old", Community: "funny", CreatedAt: now.Add(-time.Hour)},
		Item{ID: "t1_new", Community: "funny", CreatedAt: now},
	)

	items, err := c.GetUserHistory(ctx, "alice", HistoryOptions{Posts: true, Comments: true})
	assert.NoError(err)
	assert.Len(items, 2)
	assert.Equal("t1_new", items[0].ID)
	assert.Equal(KindComment, items[0].Kind)
	assert.Equal("Alice", items[0].Author)

	items, err = c.GetUserHistory(ctx, "alice", HistoryOptions{Posts: true})
	assert.NoError(err)
	assert.Len(items, 1)
	assert.Equal("t3_old", items[0].ID)

	_, err = c.GetUser(ctx, "nobody")
	assert.True(errors.Is(err, ErrNotFound))

	assert.NoError(c.Ban(ctx, BanRequest{Community: "pics", User: "Alice"}))
	banned, err := c.IsBanned(ctx, "PICS", "alice")
	assert.NoError(err)
	assert.True(banned)
	assert.Len(c.BanCalls(), 1)
}
