// One-time delayed re-evaluation of users who passed their first check, catching accounts
// that only build a problematic history after they start participating.
package secondcheck

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hivewatch/hivewatch/automod/actions"
	"github.com/hivewatch/hivewatch/automod/engine"
	"github.com/hivewatch/hivewatch/automod/keys"
	"github.com/hivewatch/hivewatch/automod/kvstore"
	"github.com/hivewatch/hivewatch/automod/queue"
	"github.com/hivewatch/hivewatch/automod/scheduler"
	"github.com/hivewatch/hivewatch/automod/settings"
)

const (
	JobName = "second-check"
	JobCron = "0 * * * *"

	// max users re-evaluated per run
	BatchSize = 50
	// an ad-hoc wake is planned this long after the earliest entry is due
	WakeDelay = time.Minute
	// no ad-hoc wake is planned when the cron job fires less than this after it
	MinWakeGap = 2 * time.Minute
)

type Queue struct {
	Logger    *slog.Logger
	Engine    *engine.Engine
	Pipeline  *actions.Pipeline
	Store     kvstore.Store
	Keys      *keys.Keys
	Scheduler scheduler.Scheduler
	Settings  settings.Source
	Now       func() time.Time

	queue *queue.TimeQueue
}

var _ engine.SecondCheckScheduler = (*Queue)(nil)

func NewQueue(eng *engine.Engine, pipeline *actions.Pipeline, sched scheduler.Scheduler, src settings.Source, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		Logger:    logger.With("component", "secondcheck"),
		Engine:    eng,
		Pipeline:  pipeline,
		Store:     eng.Store,
		Keys:      eng.Keys,
		Scheduler: sched,
		Settings:  src,
		Now:       time.Now,
		queue:     queue.New(eng.Store, eng.Keys.SecondCheckQueue()),
	}
}

func (q *Queue) now() time.Time {
	if q.Now != nil {
		return q.Now()
	}
	return time.Now()
}

func (q *Queue) Queue() *queue.TimeQueue {
	return q.queue
}

// Queues a re-check of the user after the interval, unless the user was already queued
// in the last four weeks.
func (q *Queue) Schedule(ctx context.Context, user string, interval time.Duration) error {
	member := keys.NormUser(user)
	marker := q.Keys.SecondChecked(user)
	seen, err := q.Store.Exists(ctx, marker)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}
	queued, err := q.queue.Contains(ctx, member)
	if err != nil {
		return err
	}
	if queued {
		return nil
	}

	now := q.now()
	if err := q.queue.Enqueue(ctx, member, now.Add(interval)); err != nil {
		return err
	}
	if err := q.Store.Set(ctx, marker, strconv.FormatInt(now.UnixMilli(), 10), keys.SecondCheckedTTL); err != nil {
		return fmt.Errorf("setting second-check marker: %w", err)
	}
	q.Logger.Debug("queued second check", "user", user, "at", now.Add(interval))
	return nil
}

func (q *Queue) Dequeue(ctx context.Context, user string) error {
	return q.queue.Remove(ctx, keys.NormUser(user))
}

// Re-evaluates a batch of due users, bypassing the verdict cache, and enforces against
// those now over threshold. Entries are removed before processing.
func (q *Queue) Run(ctx context.Context) error {
	due, err := q.queue.Due(ctx, q.now(), BatchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	users := make([]string, 0, len(due))
	for _, e := range due {
		users = append(users, e.Key)
	}
	if err := q.queue.Remove(ctx, users...); err != nil {
		return fmt.Errorf("removing due entries: %w", err)
	}

	s, err := q.Settings.Current(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	for _, user := range users {
		logger := q.Logger.With("user", user)
		logger.Info("running second check")
		v, err := q.Engine.Evaluate(ctx, s, user, engine.EvalOptions{BypassCache: true})
		if err != nil {
			logger.Error("second check evaluation failed", "err", err)
			continue
		}
		checksRun.WithLabelValues(strconv.FormatBool(v.Enforceable)).Inc()
		if !v.Enforceable {
			continue
		}
		q.Pipeline.Run(ctx, s, user, "", v)
	}

	return q.PlanNextWake(ctx)
}

// Schedules a one-off run shortly after the earliest queued entry is due, unless the
// periodic job covers it.
func (q *Queue) PlanNextWake(ctx context.Context) error {
	head, ok, err := q.queue.Earliest(ctx)
	if err != nil || !ok {
		return err
	}
	next := head.ReadyAt.Add(WakeDelay)
	cronNext, err := scheduler.NextCron(JobCron, q.now())
	if err != nil {
		return err
	}
	if cronNext.Sub(next) < MinWakeGap {
		return nil
	}
	if _, err := q.Scheduler.RunAt(ctx, JobName, next); err != nil {
		return fmt.Errorf("scheduling second check wake: %w", err)
	}
	return nil
}
