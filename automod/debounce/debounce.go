// Buffers newly created content for a short delay before evaluating its author, so the
// platform has caught up with the author's latest activity by the time history is fetched.
package debounce

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hivewatch/hivewatch/automod/actions"
	"github.com/hivewatch/hivewatch/automod/engine"
	"github.com/hivewatch/hivewatch/automod/keys"
	"github.com/hivewatch/hivewatch/automod/kvstore"
	"github.com/hivewatch/hivewatch/automod/platform"
	"github.com/hivewatch/hivewatch/automod/queue"
	"github.com/hivewatch/hivewatch/automod/scheduler"
	"github.com/hivewatch/hivewatch/automod/settings"
)

const (
	JobName = "debounce-sweep"
	// runs every minute; follow-up sweeps are scheduled ad hoc
	JobCron = "* * * * *"

	// delay between a content event and the evaluation of its author
	Delay = 10 * time.Second
	// wall-clock budget of one sweep
	SweepBudget = 10 * time.Second

	blockingReportReason = "User may be blocking bot. Check history for communities not moderated by " + actions.DisplayName + "."
	blockingNoteText     = "User may be blocking " + actions.DisplayName
)

// Accounts whose activity is never evaluated, besides the app's own.
var IgnoredAuthors = []string{"AutoModerator"}

type Intake struct {
	Logger    *slog.Logger
	Client    platform.Client
	Engine    *engine.Engine
	Pipeline  *actions.Pipeline
	Store     kvstore.Store
	Keys      *keys.Keys
	Scheduler scheduler.Scheduler
	Settings  settings.Source
	AppName   string
	// overridable for tests
	Budget time.Duration
	Now    func() time.Time

	queue *queue.TimeQueue
}

func NewIntake(eng *engine.Engine, pipeline *actions.Pipeline, sched scheduler.Scheduler, src settings.Source, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{
		Logger:    logger.With("component", "debounce"),
		Client:    eng.Client,
		Engine:    eng,
		Pipeline:  pipeline,
		Store:     eng.Store,
		Keys:      eng.Keys,
		Scheduler: sched,
		Settings:  src,
		AppName:   eng.AppName,
		Budget:    SweepBudget,
		Now:       time.Now,
		queue:     queue.New(eng.Store, eng.Keys.DebounceQueue()),
	}
}

func (in *Intake) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}

func (in *Intake) Queue() *queue.TimeQueue {
	return in.queue
}

func entryKey(user, target string) string {
	return user + ":" + target
}

func parseEntryKey(key string) (user, target string, ok bool) {
	user, target, ok = strings.Cut(key, ":")
	if !ok || user == "" || target == "" {
		return "", "", false
	}
	return user, target, true
}

func (in *Intake) ignored(user string) bool {
	if strings.EqualFold(user, in.AppName) {
		return true
	}
	if strings.EqualFold(user, in.Client.Community()+"-ModTeam") {
		return true
	}
	for _, name := range IgnoredAuthors {
		if strings.EqualFold(user, name) {
			return true
		}
	}
	return false
}

// Queues the author of a new post or comment for evaluation. Returns false when the author
// is never evaluated.
func (in *Intake) Enqueue(ctx context.Context, user, target string) (bool, error) {
	if user == "" || target == "" {
		return false, fmt.Errorf("content event is missing author or item")
	}
	if in.ignored(user) {
		return false, nil
	}
	if err := in.queue.Enqueue(ctx, entryKey(user, target), in.now().Add(Delay)); err != nil {
		return false, err
	}
	enqueued.Inc()
	return true, nil
}

// Processes due entries until the queue is drained or the time budget is used up, in which
// case a follow-up sweep is scheduled right away. Cron-triggered sweeps are skipped while
// another sweep ran recently.
func (in *Intake) Sweep(ctx context.Context, fromCron bool) error {
	due, err := in.queue.Due(ctx, in.now(), 0)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	guard := in.Keys.DebounceRecentlyRan()
	if fromCron {
		running, err := in.Store.Exists(ctx, guard)
		if err != nil {
			in.Logger.Error("failed to read sweep guard", "err", err)
		} else if running {
			return nil
		}
	}
	if err := in.Store.Set(ctx, guard, "true", keys.DebounceGuardTTL); err != nil {
		in.Logger.Error("failed to set sweep guard", "err", err)
	}

	s, err := in.Settings.Current(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	deadline := in.now().Add(in.Budget)
	for len(due) > 0 && in.now().Before(deadline) {
		entry := due[0]
		due = due[1:]
		if user, target, ok := parseEntryKey(entry.Key); ok {
			in.Process(ctx, s, user, target)
		} else {
			in.Logger.Warn("dropping malformed queue entry", "entry", entry.Key)
		}
		if err := in.queue.Remove(ctx, entry.Key); err != nil {
			in.Logger.Error("failed to remove queue entry", "entry", entry.Key, "err", err)
		}
		processed.Inc()
	}

	if len(due) > 0 {
		in.Logger.Info("debounce queue not fully processed", "remaining", len(due))
		if _, err := in.Scheduler.RunAt(ctx, JobName, in.now()); err != nil {
			return fmt.Errorf("scheduling follow-up sweep: %w", err)
		}
		return nil
	}
	if err := in.Store.Del(ctx, guard); err != nil {
		in.Logger.Error("failed to clear sweep guard", "err", err)
	}
	return nil
}

// Evaluates one author and, for an actionable verdict, enforces against the item that
// triggered the event (once per item).
func (in *Intake) Process(ctx context.Context, s *settings.Settings, user, target string) {
	logger := in.Logger.With("user", user, "target", target)

	v, err := in.Engine.Evaluate(ctx, s, user, engine.EvalOptions{})
	if err != nil {
		logger.Error("evaluation failed", "err", err)
		return
	}

	if !v.Enforceable {
		if v.PossiblyBlocking {
			in.handleBlocking(ctx, s, user, target, logger)
		}
		return
	}

	checkedKey := in.Keys.AlreadyChecked(target)
	checked, err := in.Store.Exists(ctx, checkedKey)
	if err != nil {
		logger.Error("failed to read already-checked marker", "err", err)
	} else if checked {
		logger.Info("duplicate event for item")
		return
	}
	if err := in.Store.Set(ctx, checkedKey, "true", keys.AlreadyCheckedTTL); err != nil {
		logger.Error("failed to set already-checked marker", "err", err)
	}

	if !actsOn(s.ContentTypeToActOn, platform.KindFromID(target)) {
		logger.Debug("item type is not acted on")
		return
	}

	in.Pipeline.Run(ctx, s, user, target, v)
}

func actsOn(ct settings.ContentType, kind platform.ItemKind) bool {
	switch ct {
	case settings.ContentPosts:
		return kind != platform.KindComment
	case settings.ContentComments:
		return kind != platform.KindPost
	default:
		return true
	}
}

// Files one advisory report per week about users who may be blocking the app account,
// plus an optional one-time mod note.
func (in *Intake) handleBlocking(ctx context.Context, s *settings.Settings, user, target string, logger *slog.Logger) {
	reportedKey := in.Keys.BlockReported(user)
	reported, err := in.Store.Exists(ctx, reportedKey)
	if err != nil {
		logger.Error("failed to read blocking report marker", "err", err)
	}
	if !reported {
		if err := in.Client.Report(ctx, target, blockingReportReason); err != nil {
			logger.Error("failed to report possibly blocking user", "err", err)
		} else {
			logger.Info("reported user possibly blocking the app account")
		}
	}
	if err := in.Store.Set(ctx, reportedKey, "true", keys.BlockReportedTTL); err != nil {
		logger.Error("failed to set blocking report marker", "err", err)
	}

	if !s.BlockCheckAddNote {
		return
	}
	noteKey := in.Keys.BlockNoteAdded(user)
	added, err := in.Store.Exists(ctx, noteKey)
	if err != nil {
		logger.Error("failed to read blocking note marker", "err", err)
		return
	}
	if added {
		return
	}
	err = in.Client.AddModNote(ctx, platform.ModNote{
		Community: in.Client.Community(),
		User:      user,
		Note:      blockingNoteText,
		Label:     platform.LabelSpamWarning,
		CreatedAt: in.now(),
	})
	if err != nil {
		logger.Error("failed to add blocking note", "err", err)
		return
	}
	if err := in.Store.Set(ctx, noteKey, "true", 0); err != nil {
		logger.Error("failed to set blocking note marker", "err", err)
	}
	in.Pipeline.Env.ScheduleLiveness(ctx, user)
}
