package automod

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivewatch/hivewatch/automod/cachestore"
	"github.com/hivewatch/hivewatch/automod/debounce"
	"github.com/hivewatch/hivewatch/automod/engine"
	"github.com/hivewatch/hivewatch/automod/keys"
	"github.com/hivewatch/hivewatch/automod/kvstore"
	"github.com/hivewatch/hivewatch/automod/liveness"
	"github.com/hivewatch/hivewatch/automod/platform"
	"github.com/hivewatch/hivewatch/automod/scheduler"
	"github.com/hivewatch/hivewatch/automod/secondcheck"
	"github.com/hivewatch/hivewatch/automod/settings"
)

type serviceFixture struct {
	svc    *Service
	client *platform.MockClient
	store  *kvstore.MemStore
	sched  *scheduler.MemScheduler
	s      *settings.Settings
}

func newServiceFixture(t *testing.T) *serviceFixture {
	client := platform.NewMockClient(engine.TestAppName, engine.TestCommunity)
	store := kvstore.NewMemStore()
	sched := scheduler.NewMemScheduler()
	s := engine.FixtureSettings()
	s.RemoveEnabled = false

	svc := NewService(client, store, cachestore.NewMemCacheStore(100, keys.VerdictTTLLong), sched, settings.NewStatic(s), ServiceConfig{
		AppName: engine.TestAppName,
	})
	return &serviceFixture{
		svc:    svc,
		client: client,
		store:  store,
		sched:  sched,
		s:      s,
	}
}

func TestContentCreatedToBan(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newServiceFixture(t)

	engine.AddUserWithHistory(f.client, "spammer", "freekarma4u", "karmafarm", "freekarmaforyou")
	f.client.AddUser(platform.User{Name: "spammer", CreatedAt: time.Now().AddDate(-1, 0, 0)},
		platform.Item{ID: "t3_new", Community: engine.TestCommunity, CreatedAt: time.Now()})

	require.NoError(f.svc.OnContentCreated(ctx, "t3_new", "spammer"))
	require.NoError(f.svc.OnContentCreated(ctx, "t3_other", engine.TestAppName))

	now := time.Now()
	f.svc.Intake.Now = func() time.Time { return now.Add(debounce.Delay) }
	require.NoError(f.svc.OnScheduledDebounceSweep(ctx, scheduler.JobEvent{Name: debounce.JobName, FromCron: true}))

	bans := f.client.BanCalls()
	require.Len(bans, 1)
	assert.Equal("spammer", bans[0].User)
	assert.Equal("t3_new", bans[0].Context)
	assert.Contains(bans[0].Reason, "freekarma4u")

	// banned users get a liveness check
	ok, err := f.svc.Liveness.Queue().Contains(ctx, "spammer")
	require.NoError(err)
	assert.True(ok)

	v, err := f.svc.Evaluate(ctx, "spammer", engine.EvalOptions{})
	require.NoError(err)
	assert.ElementsMatch([]string{"freekarma4u", "karmafarm", "freekarmaforyou"}, v.MatchedCommunities)
}

func TestModerationActionBanAndUnban(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newServiceFixture(t)
	f.s.SecondCheckIntervalHours = 6

	engine.AddUserWithHistory(f.client, "someone", "freekarma4u")
	_, err := f.svc.Evaluate(ctx, "someone", engine.EvalOptions{})
	require.NoError(err)
	queued, err := f.svc.SecondChecks.Queue().Contains(ctx, "someone")
	require.NoError(err)
	require.True(queued)
	require.NoError(f.svc.Engine.RecordEnforcement(ctx, "someone", time.Now()))

	require.NoError(f.svc.OnModerationAction(ctx, platform.ModAction{Type: platform.ModActionBan, TargetUser: "someone"}))
	queued, err = f.svc.SecondChecks.Queue().Contains(ctx, "someone")
	require.NoError(err)
	assert.False(queued)
	prev, err := f.svc.Engine.PreviousEnforcement(ctx, "someone")
	require.NoError(err)
	assert.False(prev.IsZero())

	// default settings clear the history on unban
	require.NoError(f.svc.OnModerationAction(ctx, platform.ModAction{Type: platform.ModActionUnban, TargetUser: "someone"}))
	prev, err = f.svc.Engine.PreviousEnforcement(ctx, "someone")
	require.NoError(err)
	assert.True(prev.IsZero())
}

func TestModerationActionUnbanKeepsHistory(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newServiceFixture(t)
	f.s.ClearHistoryOnUnban = false

	bannedAt := time.Now().Add(-time.Hour)
	require.NoError(f.svc.Engine.RecordEnforcement(ctx, "someone", bannedAt))
	require.NoError(f.svc.OnModerationAction(ctx, platform.ModAction{Type: platform.ModActionUnban, TargetUser: "someone"}))

	prev, err := f.svc.Engine.PreviousEnforcement(ctx, "someone")
	require.NoError(err)
	assert.Equal(bannedAt.UnixMilli(), prev.UnixMilli())
}

func TestModerationActionApproval(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newServiceFixture(t)

	approve := platform.ModAction{Type: platform.ModActionApproveComment, TargetUser: "someone", TargetItemID: "t1_abc"}

	// not reported by the app: ignored
	require.NoError(f.svc.OnModerationAction(ctx, approve))
	count, err := f.svc.Counts.ApprovalCount(ctx, "someone")
	require.NoError(err)
	assert.Zero(count)

	require.NoError(f.store.Set(ctx, f.svc.Keys.ItemReported("t1_abc"), "1", keys.ItemReportedTTL))
	require.NoError(f.svc.OnModerationAction(ctx, approve))
	require.NoError(f.svc.OnModerationAction(ctx, approve))
	count, err = f.svc.Counts.ApprovalCount(ctx, "someone")
	require.NoError(err)
	assert.Equal(2, count)

	ok, err := f.svc.Liveness.Queue().Contains(ctx, "someone")
	require.NoError(err)
	assert.True(ok)
}

func TestManualExemptionToggle(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newServiceFixture(t)
	engine.AddUserWithHistory(f.client, "spammer", "freekarma4u", "karmafarm")

	v, err := f.svc.Evaluate(ctx, "spammer", engine.EvalOptions{})
	require.NoError(err)
	assert.True(v.Enforceable)

	exempt, err := f.svc.OnManualExemptionToggle(ctx, "spammer")
	require.NoError(err)
	assert.True(exempt)
	v, err = f.svc.Evaluate(ctx, "spammer", engine.EvalOptions{})
	require.NoError(err)
	assert.False(v.Enforceable)

	exempt, err = f.svc.OnManualExemptionToggle(ctx, "spammer")
	require.NoError(err)
	assert.False(exempt)
	v, err = f.svc.Evaluate(ctx, "spammer", engine.EvalOptions{})
	require.NoError(err)
	assert.True(v.Enforceable)

	_, err = f.svc.OnManualExemptionToggle(ctx, "")
	assert.Error(err)
}

func TestOnInstall(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newServiceFixture(t)
	f.s.BanEnabled = true
	f.s.BanMessage = strings.Repeat("x", settings.MaxBanMessageLength+1)
	f.client.ModActions = []platform.ModAction{
		{Type: platform.ModActionBan, Moderator: engine.TestAppName, TargetUser: "oldban"},
	}

	stale, err := f.sched.RunAt(ctx, debounce.JobName, time.Now())
	require.NoError(err)

	require.NoError(f.svc.OnInstall(ctx))
	require.NoError(f.svc.OnInstall(ctx))

	jobs, err := f.sched.ListJobs(ctx)
	require.NoError(err)
	names := []string{}
	for _, j := range jobs {
		assert.NotEqual(stale, j.ID)
		assert.NotEmpty(j.Cron)
		names = append(names, j.Name)
	}
	assert.ElementsMatch([]string{debounce.JobName, secondcheck.JobName, liveness.JobName}, names)

	ok, err := f.svc.Liveness.Queue().Contains(ctx, "oldban")
	require.NoError(err)
	assert.True(ok)

	// warned once
	require.Len(f.client.ModeratorMessages, 1)
	assert.Contains(f.client.ModeratorMessages[0].Body, "Ban Message is too long")
}

func TestJobHandlers(t *testing.T) {
	assert := assert.New(t)
	f := newServiceFixture(t)

	handlers := f.svc.JobHandlers()
	assert.Len(handlers, 3)
	for _, name := range []string{debounce.JobName, secondcheck.JobName, liveness.JobName} {
		h, ok := handlers[name]
		assert.True(ok, name)
		assert.NotPanics(func() { h(context.Background(), scheduler.JobEvent{Name: name, FromCron: true}) })
	}
}
