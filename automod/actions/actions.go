package actions

import (
	"context"
	"log/slog"
	"time"

	"github.com/hivewatch/hivewatch/automod/countstore"
	"github.com/hivewatch/hivewatch/automod/engine"
	"github.com/hivewatch/hivewatch/automod/keys"
	"github.com/hivewatch/hivewatch/automod/kvstore"
	"github.com/hivewatch/hivewatch/automod/platform"
	"github.com/hivewatch/hivewatch/automod/settings"
)

// Name used for the app in messages to users and moderators.
const DisplayName = "Hivewatch"

// Everything one pipeline run acts on. Shared read-only between all actions of the run.
type Request struct {
	User      string
	Community string
	// nil when the run was not triggered by a specific item
	Target   *platform.Item
	Verdict  *engine.Verdict
	Settings *settings.Settings
}

type Action interface {
	Name() string
	Enabled(r *Request) bool
	Execute(ctx context.Context, r *Request) error
}

type EnforcementRecorder interface {
	RecordEnforcement(ctx context.Context, user string, at time.Time) error
}

// Receives users who now have per-user state, so it is pruned once the account is deleted.
type LivenessScheduler interface {
	Schedule(ctx context.Context, user string) error
}

// Dependencies shared by all actions.
type Env struct {
	Logger   *slog.Logger
	Client   platform.Client
	Store    kvstore.Store
	Keys     *keys.Keys
	Counts   countstore.CountStore
	History  EnforcementRecorder
	Liveness LivenessScheduler
	Webhook  *WebhookNotifier
	Now      func() time.Time
}

func (env *Env) now() time.Time {
	if env.Now != nil {
		return env.Now()
	}
	return time.Now()
}

func (env *Env) ScheduleLiveness(ctx context.Context, user string) {
	if env.Liveness == nil {
		return
	}
	if err := env.Liveness.Schedule(ctx, user); err != nil {
		env.Logger.Error("failed to schedule liveness check", "user", user, "err", err)
	}
}

// The fixed action set, in order.
func DefaultActions(env *Env) []Action {
	return []Action{
		&Ban{env},
		&Report{env},
		&Remove{env},
		&Notify{env},
		&Reply{env},
		&Note{env},
		&Webhook{env},
	}
}
