package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivewatch/hivewatch/automod/platform"
)

func addSpreadHistory(client *platform.MockClient, name string, count int, created time.Time, communities ...string) {
	now := time.Now()
	var items []platform.Item
	for i := 0; i < count; i++ {
		items = append(items, platform.Item{
			ID:        fmt.Sprintf("t1_%s%d", name, i),
			Community: communities[i%len(communities)],
			CreatedAt: now.Add(-time.Duration(i+1) * time.Minute),
		})
	}
	client.AddUser(platform.User{Name: name, CreatedAt: created}, items...)
}

func TestBlockingDetector(t *testing.T) {
	ctx := context.Background()
	old := time.Now().AddDate(-1, 0, 0)

	tests := []struct {
		name        string
		count       int
		created     time.Time
		communities []string
		modded      []string
		blocking    bool
	}{
		{"all modded", 20, old, []string{"a", "b", "c"}, []string{"a", "b", "c"}, true},
		{"own community is ignored", 21, old, []string{"a", "b", "c", TestCommunity}, []string{"a", "b", "c"}, true},
		{"short history", 19, old, []string{"a", "b", "c"}, []string{"a", "b", "c"}, false},
		{"too few communities", 20, old, []string{"a", "b"}, []string{"a", "b"}, false},
		{"unmoderated community", 20, old, []string{"a", "b", "c"}, []string{"a", "b"}, false},
		{"young account", 20, time.Now().AddDate(0, 0, -7), []string{"a", "b", "c"}, []string{"a", "b", "c"}, false},
		{"only own community", 20, old, []string{TestCommunity}, nil, false},
	}
	for _, tc := range tests {
		eng, client, _ := EngineTestFixture()
		addSpreadHistory(client, "carol", tc.count, tc.created, tc.communities...)
		for _, c := range tc.modded {
			client.SetModerator(c, TestAppName, true)
		}
		s := FixtureSettings()
		s.BlockCheckEnabled = true

		v, err := eng.Evaluate(ctx, s, "carol", EvalOptions{})
		require.NoError(t, err)
		assert.False(t, v.Enforceable, tc.name)
		assert.Equal(t, tc.blocking, v.PossiblyBlocking, tc.name)
	}
}

func TestBlockingDetectorRunsForExemptUsers(t *testing.T) {
	ctx := context.Background()
	eng, client, _ := EngineTestFixture()
	watched := []string{"freekarma4u", "freekarmaforyou", "karmafarm"}
	addSpreadHistory(client, "carol", 20, time.Now().AddDate(-1, 0, 0), watched...)
	for _, c := range watched {
		client.SetModerator(c, TestAppName, true)
	}
	client.SetModerator(TestCommunity, "carol", true)

	s := FixtureSettings()
	s.BlockCheckEnabled = true
	v, err := eng.Evaluate(ctx, s, "carol", EvalOptions{})
	require.NoError(t, err)
	assert.False(t, v.Enforceable)
	assert.Empty(t, v.MatchedCommunities)
	assert.True(t, v.PossiblyBlocking)
}

func TestBlockingDetectorDisabled(t *testing.T) {
	ctx := context.Background()
	eng, client, _ := EngineTestFixture()
	addSpreadHistory(client, "carol", 20, time.Now().AddDate(-1, 0, 0), "a", "b", "c")
	for _, c := range []string{"a", "b", "c"} {
		client.SetModerator(c, TestAppName, true)
	}

	v, err := eng.Evaluate(ctx, FixtureSettings(), "carol", EvalOptions{})
	require.NoError(t, err)
	assert.False(t, v.PossiblyBlocking)
}

func TestAppModeratesCached(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client, store := EngineTestFixture()

	client.SetModerator("a", TestAppName, true)
	assert.True(eng.appModerates(ctx, "a"))

	// answer is served from the store until it expires
	client.SetModerator("a", TestAppName, false)
	assert.True(eng.appModerates(ctx, "A"))

	ok, err := store.Exists(ctx, eng.Keys.AppModOf("a"))
	assert.NoError(err)
	assert.True(ok)
}
