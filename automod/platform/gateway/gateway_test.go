package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivewatch/hivewatch/automod/platform"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		Host:       srv.URL,
		Token:      "secret",
		Community:  "home",
		HTTPClient: srv.Client(),
	})
}

func TestGetUserHistory(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/api/v1/users/spammer/history", r.URL.Path)
		assert.Equal("Bearer secret", r.Header.Get("Authorization"))
		assert.Equal("true", r.URL.Query().Get("posts"))
		assert.Equal("false", r.URL.Query().Get("comments"))
		assert.Equal("100", r.URL.Query().Get("limit"))
		assert.Equal("week", r.URL.Query().Get("t"))
		_ = json.NewEncoder(w).Encode([]platform.Item{
			{ID: "t3_abc", Author: "spammer"},
			{ID: "t1_def", Author: "spammer", Kind: platform.KindComment},
		})
	})

	items, err := c.GetUserHistory(ctx, "spammer", platform.HistoryOptions{
		Posts:     true,
		Limit:     100,
		Timeframe: platform.TimeframeWeek,
	})
	require.NoError(err)
	require.Len(items, 2)
	assert.Equal(platform.KindPost, items[0].Kind)
	assert.Equal(platform.KindComment, items[1].Kind)
}

func TestNotFound(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no such user"}`))
	})

	_, err := c.GetUser(ctx, "ghost")
	assert.ErrorIs(err, platform.ErrNotFound)
	var ge *Error
	assert.ErrorAs(err, &ge)
	assert.Equal("no such user", ge.Message)

	flair, err := c.GetUserFlair(ctx, "home", "ghost")
	assert.NoError(err)
	assert.Nil(flair)
}

func TestBanAndFlags(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	var got banBody
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/communities/home/bans":
			assert.Equal(http.MethodPost, r.Method)
			assert.Equal("application/json", r.Header.Get("Content-Type"))
			assert.NoError(json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusNoContent)
		case "/api/v1/communities/home/moderators/alice":
			_, _ = w.Write([]byte(`{"value":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	assert.Equal("home", c.Community())
	require.NoError(c.Ban(ctx, platform.BanRequest{
		Community: "home",
		User:      "spammer",
		Reason:    "Banned by Hivewatch",
		Context:   "t3_abc",
	}))
	assert.Equal("spammer", got.User)
	assert.Equal("t3_abc", got.Context)
	assert.Zero(got.DurationDays)

	isMod, err := c.IsModerator(ctx, "home", "alice")
	require.NoError(err)
	assert.True(isMod)

	_, err = c.IsApprovedUser(ctx, "home", "alice")
	assert.ErrorIs(err, platform.ErrNotFound)
}

func TestServerError(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	err := c.Lock(ctx, "t3_abc")
	var ge *Error
	assert.ErrorAs(err, &ge)
	assert.Equal(http.StatusBadRequest, ge.StatusCode)
	assert.NotErrorIs(err, platform.ErrNotFound)
}
