package automod

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/hivewatch/hivewatch/automod/actions"
	"github.com/hivewatch/hivewatch/automod/cachestore"
	"github.com/hivewatch/hivewatch/automod/countstore"
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

type ServiceConfig struct {
	// the app's own account name
	AppName string
	// prefix of every store key; defaults to the app name
	KeyPrefix string
	Logger    *slog.Logger
}

// Entry point for all platform events and scheduled jobs. Wires the engine, the
// enforcement pipeline and the background queues to one community.
//
// Use NewService; several fields depend on each other.
type Service struct {
	Logger       *slog.Logger
	Client       platform.Client
	Store        kvstore.Store
	Keys         *keys.Keys
	Settings     settings.Source
	Scheduler    scheduler.Scheduler
	Engine       *engine.Engine
	Counts       countstore.CountStore
	Pipeline     *actions.Pipeline
	Intake       *debounce.Intake
	SecondChecks *secondcheck.Queue
	Liveness     *liveness.Sweeper
	Rand         *rand.Rand
}

func NewService(client platform.Client, store kvstore.Store, cache cachestore.CacheStore, sched scheduler.Scheduler, src settings.Source, config ServiceConfig) *Service {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = config.AppName
	}
	k := keys.New(prefix)

	eng := engine.NewEngine(client, store, cache, k, config.AppName, logger)
	counts := countstore.NewKVCountStore(store, k)
	sweeper := liveness.NewSweeper(client, store, k, counts, sched, config.AppName, logger)
	sweeper.Settings = src
	sweeper.Verdicts = eng

	pipeline := actions.NewPipeline(&actions.Env{
		Logger:   logger.With("component", "actions"),
		Client:   client,
		Store:    store,
		Keys:     k,
		Counts:   counts,
		History:  eng,
		Liveness: sweeper,
		Webhook:  actions.NewWebhookNotifier(),
	})
	secondChecks := secondcheck.NewQueue(eng, pipeline, sched, src, logger)
	eng.SecondChecks = secondChecks

	return &Service{
		Logger:       logger,
		Client:       client,
		Store:        store,
		Keys:         k,
		Settings:     src,
		Scheduler:    sched,
		Engine:       eng,
		Counts:       counts,
		Pipeline:     pipeline,
		Intake:       debounce.NewIntake(eng, pipeline, sched, src, logger),
		SecondChecks: secondChecks,
		Liveness:     sweeper,
		Rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Handlers for every scheduled job, by job name.
func (s *Service) JobHandlers() map[string]scheduler.Handler {
	return map[string]scheduler.Handler{
		debounce.JobName:    s.jobHandler(s.OnScheduledDebounceSweep),
		secondcheck.JobName: s.jobHandler(s.OnScheduledSecondCheck),
		liveness.JobName:    s.jobHandler(s.OnScheduledLivenessSweep),
	}
}

func (s *Service) jobHandler(f func(ctx context.Context, ev scheduler.JobEvent) error) scheduler.Handler {
	return func(ctx context.Context, ev scheduler.JobEvent) {
		if err := f(ctx, ev); err != nil {
			s.Logger.Error("scheduled job failed", "job", ev.Name, "err", err)
		}
	}
}

func (s *Service) recoverEvent(kind string, args ...any) {
	// similar to an HTTP server, we want to recover any panics from event processing
	if r := recover(); r != nil {
		s.Logger.Error("automod event execution exception", append([]any{"err", r, "type", kind}, args...)...)
	}
}

func (s *Service) OnContentCreated(ctx context.Context, itemID, author string) error {
	defer s.recoverEvent("content", "item", itemID)
	_, err := s.Intake.Enqueue(ctx, author, itemID)
	return err
}

func (s *Service) OnModerationAction(ctx context.Context, action platform.ModAction) error {
	defer s.recoverEvent("modaction", "action", action.Type)

	current, err := s.Settings.Current(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	user := action.TargetUser
	logger := s.Logger.With("action", action.Type, "user", user)

	switch action.Type {
	case platform.ModActionBan, platform.ModActionUnban:
		if user == "" {
			return nil
		}
		logger.Info("ban status changed, dropping cached verdict")
		var errs []error
		if err := s.Engine.PurgeVerdict(ctx, user); err != nil {
			errs = append(errs, err)
		}
		if err := s.SecondChecks.Dequeue(ctx, user); err != nil {
			errs = append(errs, err)
		}
		if action.Type == platform.ModActionUnban && current.ClearHistoryOnUnban {
			if err := s.Engine.ClearEnforcement(ctx, user); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	case platform.ModActionApproveComment, platform.ModActionApprovePost:
		if user == "" || action.TargetItemID == "" {
			return nil
		}
		reported, err := s.Store.Exists(ctx, s.Keys.ItemReported(action.TargetItemID))
		if err != nil {
			return err
		}
		if !reported {
			return nil
		}
		count, err := s.Counts.IncrementApprovals(ctx, user)
		if err != nil {
			return err
		}
		logger.Info("reported item approved", "item", action.TargetItemID, "approvals", count)
		if err := s.Liveness.Schedule(ctx, user); err != nil {
			logger.Error("failed to schedule liveness check", "err", err)
		}
		return s.Engine.PurgeVerdict(ctx, user)
	}
	return nil
}

func (s *Service) OnScheduledDebounceSweep(ctx context.Context, ev scheduler.JobEvent) error {
	defer s.recoverEvent("job", "job", ev.Name)
	return s.Intake.Sweep(ctx, ev.FromCron)
}

func (s *Service) OnScheduledSecondCheck(ctx context.Context, ev scheduler.JobEvent) error {
	defer s.recoverEvent("job", "job", ev.Name)
	return s.SecondChecks.Run(ctx)
}

func (s *Service) OnScheduledLivenessSweep(ctx context.Context, ev scheduler.JobEvent) error {
	defer s.recoverEvent("job", "job", ev.Name)
	return s.Liveness.Run(ctx, ev.FromCron)
}

// Flips the manual exemption of a user. Returns whether the user is exempt afterwards.
func (s *Service) OnManualExemptionToggle(ctx context.Context, user string) (bool, error) {
	if user == "" {
		return false, fmt.Errorf("no user to exempt")
	}
	key := s.Keys.Exempt(user)
	exempt, err := s.Store.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if exempt {
		if err := s.Store.Del(ctx, key); err != nil {
			return true, err
		}
		s.Logger.Info("removed user from exempt list", "user", user)
	} else {
		if err := s.Store.Set(ctx, key, strconv.FormatInt(time.Now().UnixMilli(), 10), 0); err != nil {
			return false, err
		}
		if err := s.Liveness.Schedule(ctx, user); err != nil {
			s.Logger.Error("failed to schedule liveness check", "user", user, "err", err)
		}
		s.Logger.Info("added user to exempt list", "user", user)
	}
	if err := s.Engine.PurgeVerdict(ctx, user); err != nil {
		s.Logger.Error("failed to purge verdict", "user", user, "err", err)
	}
	return !exempt, nil
}

func (s *Service) Evaluate(ctx context.Context, user string, opts engine.EvalOptions) (*engine.Verdict, error) {
	current, err := s.Settings.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return s.Engine.Evaluate(ctx, current, user, opts)
}

// Resets scheduled jobs and one-time state after installation or upgrade.
func (s *Service) OnInstall(ctx context.Context) error {
	jobs, err := s.Scheduler.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("listing jobs: %w", err)
	}
	for _, j := range jobs {
		if err := s.Scheduler.CancelJob(ctx, j.ID); err != nil {
			return fmt.Errorf("cancelling job %s: %w", j.ID, err)
		}
	}

	livenessCron := liveness.JobCron(s.Rand)
	crons := []struct{ name, spec string }{
		{debounce.JobName, debounce.JobCron},
		{secondcheck.JobName, secondcheck.JobCron},
		{liveness.JobName, livenessCron},
	}
	for _, c := range crons {
		if _, err := s.Scheduler.RunCron(ctx, c.name, c.spec); err != nil {
			return err
		}
	}
	s.Logger.Info("registered scheduled jobs", "livenessCron", livenessCron)

	populated, err := s.Store.Exists(ctx, s.Keys.LivenessPopulated())
	if err != nil {
		return err
	}
	if populated {
		err = s.Liveness.Reschedule(ctx)
	} else {
		err = s.Liveness.PopulateFromModLog(ctx)
	}
	if err != nil {
		s.Logger.Error("failed to prepare liveness schedule", "err", err)
	}

	if err := s.SecondChecks.PlanNextWake(ctx); err != nil {
		s.Logger.Error("failed to plan second check", "err", err)
	}
	return s.warnOversizeSettings(ctx)
}

// Tells moderators, once, about ban texts over the platform limits.
func (s *Service) warnOversizeSettings(ctx context.Context) error {
	key := s.Keys.ConfigWarned()
	done, err := s.Store.Exists(ctx, key)
	if err != nil || done {
		return err
	}
	current, err := s.Settings.Current(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	if current.BanEnabled {
		if body := oversizeSettingsMessage(current, s.Client.Community()); body != "" {
			subject := actions.DisplayName + " Configuration Issue"
			if err := s.Client.SendModeratorMessage(ctx, s.Client.Community(), subject, body); err != nil {
				return fmt.Errorf("sending configuration warning: %w", err)
			}
		}
	}
	return s.Store.Set(ctx, key, strconv.FormatInt(time.Now().UnixMilli(), 10), 0)
}

func oversizeSettingsMessage(current *settings.Settings, community string) string {
	var problems []string
	if len(current.BanMessage) > settings.MaxBanMessageLength {
		problems = append(problems, fmt.Sprintf("* The Ban Message is too long - it needs to be under %d characters long.", settings.MaxBanMessageLength))
	}
	if len(current.BanNote) > settings.MaxBanNoteLength {
		problems = append(problems, fmt.Sprintf("* The Ban Note is too long - it needs to be under %d characters long.", settings.MaxBanNoteLength))
	}
	if len(problems) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "There's an issue with the settings of %s on /r/%s that needs to be addressed for it to work properly.\n\n", actions.DisplayName, community)
	sb.WriteString(strings.Join(problems, "\n"))
	fmt.Fprintf(&sb, "\n\nIt is likely that %s will not be able to ban users until this is resolved.", actions.DisplayName)
	return sb.String()
}
