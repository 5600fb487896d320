package secondcheck

import (
	"context"
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

type queueFixture struct {
	queue  *Queue
	engine *engine.Engine
	client *platform.MockClient
	sched  *scheduler.MemScheduler
	s      *settings.Settings
	now    time.Time
}

func newQueueFixture(t *testing.T) *queueFixture {
	eng, client, _ := engine.EngineTestFixture()
	sched := scheduler.NewMemScheduler()
	s := engine.FixtureSettings()
	s.SecondCheckIntervalHours = 12

	f := &queueFixture{
		engine: eng,
		client: client,
		sched:  sched,
		s:      s,
		now:    time.Date(2024, 5, 1, 10, 10, 0, 0, time.UTC),
	}
	f.queue = NewQueue(eng, actions.PipelineTestFixture(eng, nil), sched, settings.NewStatic(s), nil)
	f.queue.Now = func() time.Time { return f.now }
	eng.SecondChecks = f.queue
	return f
}

func TestScheduleOnce(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newQueueFixture(t)

	require.NoError(f.queue.Schedule(ctx, "Someone", time.Hour))
	require.NoError(f.queue.Schedule(ctx, "someone", 2*time.Hour))

	all, err := f.queue.Queue().All(ctx)
	require.NoError(err)
	require.Len(all, 1)
	assert.Equal("someone", all[0].Key)
	assert.True(f.now.Add(time.Hour).Equal(all[0].ReadyAt))

	// the marker outlives the queue entry
	require.NoError(f.queue.Dequeue(ctx, "SOMEONE"))
	require.NoError(f.queue.Schedule(ctx, "someone", time.Hour))
	n, err := f.queue.Queue().Len(ctx)
	require.NoError(err)
	assert.Zero(n)
}

func TestCleanEvaluationQueuesSecondCheck(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newQueueFixture(t)
	engine.AddUserWithHistory(f.client, "newcomer", "freekarma4u")

	v, err := f.engine.Evaluate(ctx, f.s, "newcomer", engine.EvalOptions{})
	require.NoError(err)
	assert.False(v.Enforceable)

	ok, err := f.queue.Queue().Contains(ctx, "newcomer")
	require.NoError(err)
	assert.True(ok)
}

func TestRunEnforcesNewlyOverThreshold(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newQueueFixture(t)
	f.s.BanEnabled = true
	f.s.RemoveEnabled = false

	engine.AddUserWithHistory(f.client, "newcomer", "freekarma4u")
	v, err := f.engine.Evaluate(ctx, f.s, "newcomer", engine.EvalOptions{})
	require.NoError(err)
	require.False(v.Enforceable)

	// the user keeps posting in watched communities; the cached clean verdict must not be used
	engine.AddUserWithHistory(f.client, "newcomer", "freekarma4u", "karmafarm")
	require.NoError(f.queue.Run(ctx))
	assert.Empty(f.client.BanCalls())

	f.now = f.now.Add(13 * time.Hour)
	require.NoError(f.queue.Run(ctx))
	bans := f.client.BanCalls()
	require.Len(bans, 1)
	assert.Equal("newcomer", bans[0].User)

	n, err := f.queue.Queue().Len(ctx)
	require.NoError(err)
	assert.Zero(n)
}

func TestRunBatchSize(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newQueueFixture(t)

	for i := 0; i < BatchSize+5; i++ {
		require.NoError(f.queue.Schedule(ctx, "user"+string(rune('a'+i%26))+string(rune('a'+i/26)), time.Minute))
	}
	f.now = f.now.Add(time.Hour)
	require.NoError(f.queue.Run(ctx))

	n, err := f.queue.Queue().Len(ctx)
	require.NoError(err)
	assert.Equal(5, n)
}

func TestPlanNextWake(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newQueueFixture(t)

	// empty queue
	require.NoError(f.queue.PlanNextWake(ctx))
	assert.Empty(f.sched.Named(JobName))

	// due at 10:58, wake at 10:59: the hourly job fires one minute later
	require.NoError(f.queue.Queue().Enqueue(ctx, "soon", time.Date(2024, 5, 1, 10, 58, 0, 0, time.UTC)))
	require.NoError(f.queue.PlanNextWake(ctx))
	assert.Empty(f.sched.Named(JobName))

	// due at 10:20, wake at 10:21
	require.NoError(f.queue.Queue().Enqueue(ctx, "sooner", time.Date(2024, 5, 1, 10, 20, 0, 0, time.UTC)))
	require.NoError(f.queue.PlanNextWake(ctx))
	jobs := f.sched.Named(JobName)
	require.Len(jobs, 1)
	assert.True(time.Date(2024, 5, 1, 10, 21, 0, 0, time.UTC).Equal(jobs[0].RunAt))
}
