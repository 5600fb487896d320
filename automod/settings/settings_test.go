package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	assert := assert.New(t)

	s, err := FromMap(map[string]any{})
	require.NoError(t, err)
	assert.Equal(Defaults(), s)
	assert.True(s.ThresholdsConfigured())
	assert.NoError(s.Validate())
	assert.Equal([]string{"beacons.ai"}, s.SitewideBannedDomains)
	assert.Equal(ReBanNever, s.ReBanPolicy)
	assert.True(s.BanEnabled)
	assert.True(s.RemoveEnabled)
	assert.True(s.LockReply)
	assert.True(s.ClearHistoryOnUnban)
	assert.Equal(28, s.LivenessIntervalDays)
}

func TestFromMap(t *testing.T) {
	assert := assert.New(t)

	s, err := FromMap(map[string]any{
		"communities":              " FreeKarma4U, freekarmaforyou ,,",
		"domains":                  []any{"OnlyFans.com", "*.example.com"},
		"combined_threshold":       int64(2),
		"min_distinct_communities": 2,
		"reban_policy":             "newonly",
		"user_allowlist":           "Alice",
		"sitewide_banned_domains":  []any{},
		"ban_enabled":              false,
	})
	require.NoError(t, err)
	assert.Equal([]string{"freekarma4u", "freekarmaforyou"}, s.Communities)
	assert.Equal([]string{"onlyfans.com", "*.example.com"}, s.Domains)
	assert.Equal(2, s.CombinedThreshold)
	assert.Equal(2, s.MinDistinctCommunities)
	assert.Equal(ReBanNewOnly, s.ReBanPolicy)
	assert.Empty(s.SitewideBannedDomains)
	assert.False(s.BanEnabled)
	assert.True(s.IsAllowlisted("alice"))
	assert.True(s.IsAllowlisted("ALICE"))
	assert.False(s.IsAllowlisted("bob"))
}

func TestHistoryKinds(t *testing.T) {
	assert := assert.New(t)

	s := Defaults()
	posts, comments := s.HistoryKinds()
	assert.True(posts)
	assert.True(comments)

	s.CombinedThreshold = 0
	s.PostThreshold = 3
	posts, comments = s.HistoryKinds()
	assert.True(posts)
	assert.False(comments)

	s.CommentThreshold = 3
	posts, comments = s.HistoryKinds()
	assert.True(posts)
	assert.True(comments)

	s.PostThreshold = 0
	posts, comments = s.HistoryKinds()
	assert.False(posts)
	assert.True(comments)

	s.CommentThreshold = 0
	assert.False(s.ThresholdsConfigured())
}

func TestValidate(t *testing.T) {
	assert := assert.New(t)

	s := Defaults()
	s.BanMessage = string(make([]byte, MaxBanMessageLength+1))
	err := s.Validate()
	assert.ErrorIs(err, ErrOversizeSettings)

	s = Defaults()
	s.BanNote = string(make([]byte, MaxBanNoteLength+1))
	assert.ErrorIs(s.Validate(), ErrOversizeSettings)

	s = Defaults()
	s.WebhookURL = "https://example.com/hook"
	assert.Error(s.Validate())
	s.WebhookURL = "https://discord.com/api/webhooks/123/abc"
	assert.NoError(s.Validate())
	s.WebhookURL = "https://hooks.slack.com/services/T000/B000/XXX"
	assert.NoError(s.Validate())

	s = Defaults()
	s.Domains = []string{"www.reddit.com"}
	assert.Error(s.Validate())
	s.Domains = []string{"*.redd.it"}
	assert.Error(s.Validate())

	s = Defaults()
	s.BanDurationDays = 1000
	assert.Error(s.Validate())
	s.BanDurationDays = 0
	s.DaysToMonitor = 0
	assert.Error(s.Validate())
}

func TestFileSource(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
communities = ["pics", "funny"]
combined_threshold = 4
reban_policy = "always"
`), 0o644))

	fs, err := NewFileSource(path, nil)
	require.NoError(t, err)
	s, err := fs.Current(ctx)
	require.NoError(t, err)
	assert.Equal([]string{"pics", "funny"}, s.Communities)
	assert.Equal(4, s.CombinedThreshold)
	assert.Equal(ReBanAlways, s.ReBanPolicy)

	// unchanged file serves the same snapshot
	again, err := fs.Current(ctx)
	require.NoError(t, err)
	assert.Same(s, again)

	require.NoError(t, os.WriteFile(path, []byte(`combined_threshold = 9`), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	s, err = fs.Current(ctx)
	require.NoError(t, err)
	assert.Equal(9, s.CombinedThreshold)
	assert.Empty(s.Communities)

	// broken file keeps the last good snapshot
	require.NoError(t, os.WriteFile(path, []byte(`combined_threshold = [`), 0o644))
	later = later.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	s, err = fs.Current(ctx)
	require.NoError(t, err)
	assert.Equal(9, s.CombinedThreshold)
}
