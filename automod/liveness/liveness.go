// Periodic sweep that re-checks accounts the app holds state about, and prunes that state
// once an account no longer exists.
package liveness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/hivewatch/hivewatch/automod/countstore"
	"github.com/hivewatch/hivewatch/automod/keys"
	"github.com/hivewatch/hivewatch/automod/kvstore"
	"github.com/hivewatch/hivewatch/automod/platform"
	"github.com/hivewatch/hivewatch/automod/queue"
	"github.com/hivewatch/hivewatch/automod/scheduler"
	"github.com/hivewatch/hivewatch/automod/settings"
)

const (
	JobName = "liveness-sweep"

	DefaultInterval = 28 * 24 * time.Hour
	SweepBudget     = 10 * time.Second
	FollowUpDelay   = 5 * time.Second

	// accounts seeded from the moderation log are spread over this window
	PopulateSpread   = 2 * 24 * time.Hour
	populateLogLimit = 1000
	deletedAccount   = "[deleted]"
)

// Random minute past every sixth hour, so installs do not all sweep at once.
func JobCron(rnd *rand.Rand) string {
	return fmt.Sprintf("%d */6 * * *", rnd.Intn(60))
}

type VerdictPurger interface {
	PurgeVerdict(ctx context.Context, user string) error
}

type Sweeper struct {
	Logger    *slog.Logger
	Client    platform.Client
	Store     kvstore.Store
	Keys      *keys.Keys
	Counts    countstore.CountStore
	// optional; drops the cached verdict of purged users
	Verdicts  VerdictPurger
	Scheduler scheduler.Scheduler
	AppName   string
	// optional; when set, the interval follows the livenessIntervalDays setting
	Settings  settings.Source
	Interval  time.Duration
	Budget    time.Duration
	Now       func() time.Time
	Rand      *rand.Rand

	queue *queue.TimeQueue
}

func NewSweeper(client platform.Client, store kvstore.Store, k *keys.Keys, counts countstore.CountStore, sched scheduler.Scheduler, appName string, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		Logger:    logger.With("component", "liveness"),
		Client:    client,
		Store:     store,
		Keys:      k,
		Counts:    counts,
		Scheduler: sched,
		AppName:   appName,
		Interval:  DefaultInterval,
		Budget:    SweepBudget,
		Now:       time.Now,
		Rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		queue:     queue.New(store, k.LivenessQueue()),
	}
}

func (sw *Sweeper) now() time.Time {
	if sw.Now != nil {
		return sw.Now()
	}
	return time.Now()
}

func (sw *Sweeper) Queue() *queue.TimeQueue {
	return sw.queue
}

func (sw *Sweeper) randomWithin(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(sw.Rand.Int63n(int64(d)))
}

func (sw *Sweeper) interval(ctx context.Context) time.Duration {
	if sw.Settings != nil {
		s, err := sw.Settings.Current(ctx)
		if err == nil && s.LivenessIntervalDays > 0 {
			return time.Duration(s.LivenessIntervalDays) * 24 * time.Hour
		}
	}
	if sw.Interval <= 0 {
		return DefaultInterval
	}
	return sw.Interval
}

// Schedules (or pushes back) the next liveness check of a user.
func (sw *Sweeper) Schedule(ctx context.Context, user string) error {
	return sw.queue.Enqueue(ctx, keys.NormUser(user), sw.now().Add(sw.interval(ctx)))
}

// Accounts the platform can no longer show are either deleted, suspended or shadowbanned.
// Only deleted accounts also fail the mod note lookup.
func (sw *Sweeper) active(ctx context.Context, user string) bool {
	if _, err := sw.Client.GetUser(ctx, user); err == nil {
		return true
	}
	if _, err := sw.Client.ListModNotes(ctx, sw.Client.Community(), user, 1); err == nil {
		return true
	}
	return false
}

// Removes every piece of per-user state, the cached verdict and the user's schedule entry.
func (sw *Sweeper) Purge(ctx context.Context, user string) error {
	var errs []error
	if err := sw.Store.Del(ctx, sw.Keys.UserKeys(user)...); err != nil {
		errs = append(errs, err)
	}
	if err := sw.Counts.Forget(ctx, user); err != nil {
		errs = append(errs, err)
	}
	if sw.Verdicts != nil {
		if err := sw.Verdicts.PurgeVerdict(ctx, user); err != nil {
			errs = append(errs, err)
		}
	}
	if err := sw.queue.Remove(ctx, keys.NormUser(user)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Checks due accounts until done or out of time budget, scheduling a follow-up run when
// entries remain. Cron-triggered runs are skipped while another run happened recently.
func (sw *Sweeper) Run(ctx context.Context, fromCron bool) error {
	due, err := sw.queue.Due(ctx, sw.now(), 0)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		sw.Logger.Debug("no users due a liveness check")
		return nil
	}

	// make sure the platform is healthy, or every account would look deleted
	if _, err := sw.Client.AppAccount(ctx); err != nil {
		return fmt.Errorf("platform health probe: %w", err)
	}

	guard := sw.Keys.LivenessRecentlyRan()
	if fromCron {
		recent, err := sw.Store.Exists(ctx, guard)
		if err != nil {
			sw.Logger.Error("failed to read sweep guard", "err", err)
		} else if recent {
			return nil
		}
	}
	if err := sw.Store.Set(ctx, guard, "true", keys.LivenessGuardTTL); err != nil {
		sw.Logger.Error("failed to set sweep guard", "err", err)
	}

	deadline := sw.now().Add(sw.Budget)
	for len(due) > 0 && sw.now().Before(deadline) {
		user := due[0].Key
		due = due[1:]

		if sw.active(ctx, user) {
			if err := sw.Schedule(ctx, user); err != nil {
				sw.Logger.Error("failed to reschedule liveness check", "user", user, "err", err)
			}
			sweptAccounts.WithLabelValues("active").Inc()
			continue
		}
		if err := sw.Purge(ctx, user); err != nil {
			sw.Logger.Error("failed to purge deleted account", "user", user, "err", err)
			continue
		}
		sweptAccounts.WithLabelValues("deleted").Inc()
		sw.Logger.Info("account appears deleted, removed stored state", "user", user)
	}

	if len(due) > 0 {
		sw.Logger.Info("liveness sweep not fully processed", "remaining", len(due))
		if _, err := sw.Scheduler.RunAt(ctx, JobName, sw.now().Add(FollowUpDelay)); err != nil {
			return fmt.Errorf("scheduling follow-up sweep: %w", err)
		}
	}
	return nil
}

// Spreads every scheduled entry randomly over the interval when the interval differs from
// the one the schedule was built with.
func (sw *Sweeper) Reschedule(ctx context.Context) error {
	interval := sw.interval(ctx)
	want := strconv.FormatInt(int64(interval/time.Second), 10)
	prev, ok, err := sw.Store.Get(ctx, sw.Keys.LivenessInterval())
	if err != nil {
		return err
	}
	if ok && prev == want {
		return nil
	}

	entries, err := sw.queue.All(ctx)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		now := sw.now()
		for i := range entries {
			entries[i].ReadyAt = now.Add(sw.randomWithin(interval))
		}
		if err := sw.queue.EnqueueMany(ctx, entries...); err != nil {
			return err
		}
		sw.Logger.Info("rescheduled liveness checks", "count", len(entries), "interval", interval)
	}
	return sw.Store.Set(ctx, sw.Keys.LivenessInterval(), want, 0)
}

// Seeds the schedule with accounts the app banned before, once per install.
func (sw *Sweeper) PopulateFromModLog(ctx context.Context) error {
	done, err := sw.Store.Exists(ctx, sw.Keys.LivenessPopulated())
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	actions, err := sw.Client.ListModActions(ctx, sw.Client.Community(), platform.ModActionBan, sw.AppName, populateLogLimit)
	if err != nil {
		return fmt.Errorf("reading moderation log: %w", err)
	}
	users := lo.Uniq(lo.FilterMap(actions, func(a platform.ModAction, _ int) (string, bool) {
		return keys.NormUser(a.TargetUser), a.TargetUser != "" && a.TargetUser != deletedAccount
	}))

	if len(users) > 0 {
		now := sw.now()
		entries := lo.Map(users, func(u string, _ int) queue.Entry {
			return queue.Entry{Key: u, ReadyAt: now.Add(sw.randomWithin(PopulateSpread))}
		})
		if err := sw.queue.EnqueueMany(ctx, entries...); err != nil {
			return err
		}
		sw.Logger.Info("seeded liveness checks from moderation log", "count", len(users))
	}
	return sw.Store.Set(ctx, sw.Keys.LivenessPopulated(), strconv.FormatInt(sw.now().UnixMilli(), 10), 0)
}
