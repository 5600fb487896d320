package debounce

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivewatch/hivewatch/automod/actions"
	"github.com/hivewatch/hivewatch/automod/engine"
	"github.com/hivewatch/hivewatch/automod/platform"
	"github.com/hivewatch/hivewatch/automod/scheduler"
	"github.com/hivewatch/hivewatch/automod/settings"
)

type intakeFixture struct {
	intake *Intake
	client *platform.MockClient
	sched  *scheduler.MemScheduler
	s      *settings.Settings
	now    time.Time
}

func (f *intakeFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newIntakeFixture(t *testing.T) *intakeFixture {
	eng, client, _ := engine.EngineTestFixture()
	sched := scheduler.NewMemScheduler()

	s := engine.FixtureSettings()
	s.BanEnabled = false
	s.RemoveEnabled = true

	f := &intakeFixture{
		client: client,
		sched:  sched,
		s:      s,
		now:    time.Now(),
	}
	f.intake = NewIntake(eng, actions.PipelineTestFixture(eng, nil), sched, settings.NewStatic(s), nil)
	f.intake.Now = func() time.Time { return f.now }

	engine.AddUserWithHistory(client, "spammer", "freekarma4u", "karmafarm")
	client.AddUser(platform.User{Name: "spammer", CreatedAt: time.Now().AddDate(-1, 0, 0)},
		platform.Item{ID: "t3_post", Community: engine.TestCommunity, CreatedAt: time.Now()},
		platform.Item{ID: "t1_comment", Community: engine.TestCommunity, CreatedAt: time.Now()},
	)
	return f
}

func TestEnqueueIgnoresAutomation(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newIntakeFixture(t)

	for _, user := range []string{engine.TestAppName, "AutoModerator", "automoderator", "home-ModTeam"} {
		ok, err := f.intake.Enqueue(ctx, user, "t3_post")
		require.NoError(err)
		assert.False(ok, user)
	}
	_, err := f.intake.Enqueue(ctx, "", "t3_post")
	assert.Error(err)

	ok, err := f.intake.Enqueue(ctx, "spammer", "t3_post")
	require.NoError(err)
	assert.True(ok)

	all, err := f.intake.Queue().All(ctx)
	require.NoError(err)
	require.Len(all, 1)
	assert.Equal("spammer:t3_post", all[0].Key)
	assert.Equal(f.now.Add(Delay).UnixMilli(), all[0].ReadyAt.UnixMilli())
}

func TestSweepProcessesDueEntries(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newIntakeFixture(t)

	_, err := f.intake.Enqueue(ctx, "spammer", "t3_post")
	require.NoError(err)

	// not due yet
	require.NoError(f.intake.Sweep(ctx, true))
	assert.Empty(f.client.RemoveCalls())

	f.advance(Delay + time.Second)
	require.NoError(f.intake.Sweep(ctx, true))
	assert.Equal([]platform.RemoveCall{{ID: "t3_post"}}, f.client.RemoveCalls())

	n, err := f.intake.Queue().Len(ctx)
	require.NoError(err)
	assert.Zero(n)
	guard, err := f.intake.Store.Exists(ctx, f.intake.Keys.DebounceRecentlyRan())
	require.NoError(err)
	assert.False(guard)
	assert.Empty(f.sched.Named(JobName))
}

func TestSweepBudgetSchedulesFollowUp(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newIntakeFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.intake.Enqueue(ctx, "spammer", fmt.Sprintf("t3_p%d", i))
		require.NoError(err)
	}
	f.advance(Delay)
	f.intake.Budget = 0

	require.NoError(f.intake.Sweep(ctx, false))
	n, err := f.intake.Queue().Len(ctx)
	require.NoError(err)
	assert.Equal(3, n)
	assert.Len(f.sched.Named(JobName), 1)

	// the guard is still held, so the periodic sweep backs off
	f.intake.Budget = SweepBudget
	require.NoError(f.intake.Sweep(ctx, true))
	n, err = f.intake.Queue().Len(ctx)
	require.NoError(err)
	assert.Equal(3, n)

	// ad-hoc sweeps ignore the guard
	require.NoError(f.intake.Sweep(ctx, false))
	n, err = f.intake.Queue().Len(ctx)
	require.NoError(err)
	assert.Zero(n)
}

func TestProcessOncePerItem(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newIntakeFixture(t)

	f.intake.Process(ctx, f.s, "spammer", "t3_post")
	f.intake.Process(ctx, f.s, "spammer", "t3_post")
	assert.Len(f.client.RemoveCalls(), 1)
}

func TestProcessContentTypeFilter(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newIntakeFixture(t)
	f.s.ContentTypeToActOn = settings.ContentPosts

	f.intake.Process(ctx, f.s, "spammer", "t1_comment")
	assert.Empty(f.client.RemoveCalls())

	f.intake.Process(ctx, f.s, "spammer", "t3_post")
	assert.Len(f.client.RemoveCalls(), 1)
}

func TestProcessCleanUser(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newIntakeFixture(t)
	engine.AddUserWithHistory(f.client, "regular", "golang", "cooking")

	f.intake.Process(ctx, f.s, "regular", "t3_post")
	assert.Empty(f.client.RemoveCalls())
	assert.Empty(f.client.ReportCalls())
}

func TestProcessPossiblyBlocking(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newIntakeFixture(t)
	f.s.BlockCheckEnabled = true
	f.s.BlockCheckAddNote = true

	communities := []string{"alpha", "beta", "gamma"}
	var items []platform.Item
	for i := 0; i < engine.BlockingMinHistory; i++ {
		items = append(items, platform.Item{
			ID:        fmt.Sprintf("t1_hidden%d", i),
			Community: communities[i%len(communities)],
			CreatedAt: time.Now().Add(-time.Duration(i) * time.Hour),
		})
	}
	f.client.AddUser(platform.User{Name: "hidden", CreatedAt: time.Now().AddDate(-1, 0, 0)}, items...)
	for _, c := range communities {
		f.client.SetModerator(c, engine.TestAppName, true)
	}

	f.intake.Process(ctx, f.s, "hidden", "t3_post")
	f.intake.Process(ctx, f.s, "hidden", "t1_comment")

	reports := f.client.ReportCalls()
	require.Len(reports, 1)
	assert.Equal("t3_post", reports[0].ID)
	assert.Contains(reports[0].Reason, "blocking")
	require.Len(f.client.Notes, 1)
	assert.Equal(platform.LabelSpamWarning, f.client.Notes[0].Label)
	assert.Empty(f.client.RemoveCalls())
}
