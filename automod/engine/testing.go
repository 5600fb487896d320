package engine

import (
	"log/slog"
	"time"

	"github.com/hivewatch/hivewatch/automod/cachestore"
	"github.com/hivewatch/hivewatch/automod/keys"
	"github.com/hivewatch/hivewatch/automod/kvstore"
	"github.com/hivewatch/hivewatch/automod/platform"
	"github.com/hivewatch/hivewatch/automod/settings"
)

const (
	TestAppName   = "hivewatch-bot"
	TestCommunity = "home"
)

// Engine wired to in-memory stores and a mock platform, for use in tests (including other
// packages).
func EngineTestFixture() (*Engine, *platform.MockClient, *kvstore.MemStore) {
	client := platform.NewMockClient(TestAppName, TestCommunity)
	store := kvstore.NewMemStore()
	cache := cachestore.NewMemCacheStore(100, keys.VerdictTTLLong)
	eng := NewEngine(client, store, cache, keys.New("test"), TestAppName, slog.Default())
	return eng, client, store
}

// Settings watching three communities, with a combined threshold of two items from at least
// two of them.
func FixtureSettings() *settings.Settings {
	s := settings.Defaults()
	s.Communities = []string{"freekarma4u", "freekarmaforyou", "karmafarm"}
	s.Domains = []string{"onlyfans.com"}
	s.CombinedThreshold = 2
	s.MinDistinctCommunities = 2
	return s
}

// Adds a user with one recent post in each of the given communities, newest first.
func AddUserWithHistory(client *platform.MockClient, name string, communities ...string) {
	now := time.Now()
	var items []platform.Item
	for i, c := range communities {
		items = append(items, platform.Item{
			ID:        "t3_" + name + "_" + c,
			Community: c,
			Permalink: "/r/" + c + "/comments/" + name,
			Score:     1,
			CreatedAt: now.Add(-time.Duration(i+1) * time.Hour),
		})
	}
	client.AddUser(platform.User{Name: name, CreatedAt: now.AddDate(-1, 0, 0)}, items...)
}
