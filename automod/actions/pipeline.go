package actions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hivewatch/hivewatch/automod/engine"
	"github.com/hivewatch/hivewatch/automod/platform"
	"github.com/hivewatch/hivewatch/automod/settings"
)

var tracer = otel.Tracer("automod")

type Outcome struct {
	Action string
	Err    error
}

// Runs the enabled actions for one verdict. Failures are isolated per action and never
// returned; they are reported in the outcomes and logged.
type Pipeline struct {
	Env     *Env
	Actions []Action
}

func NewPipeline(env *Env) *Pipeline {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	return &Pipeline{
		Env:     env,
		Actions: DefaultActions(env),
	}
}

// Applies the action set to a user. targetID may be empty, in which case the user's newest
// item in the community is used (if any). Returns one outcome per action that ran.
func (p *Pipeline) Run(ctx context.Context, s *settings.Settings, user, targetID string, v *engine.Verdict) []Outcome {
	if v == nil || !v.Enforceable {
		return nil
	}
	ctx, span := tracer.Start(ctx, "EnforcementPipeline")
	defer span.End()
	span.SetAttributes(attribute.String("user", user))

	logger := p.Env.Logger.With("user", user, "target", targetID)

	req := &Request{
		User:      user,
		Community: p.Env.Client.Community(),
		Target:    p.resolveTarget(ctx, user, targetID, logger),
		Verdict:   v,
		Settings:  s,
	}

	// when the ban policy applies to every action, users who may not be banned again are
	// left alone entirely
	gated := s.ApplyBanPolicyToOtherActions && !v.Bannable

	var enabled []Action
	for _, a := range p.Actions {
		if gated && a.Name() != ActionBan {
			continue
		}
		if a.Enabled(req) {
			enabled = append(enabled, a)
		}
	}
	if len(enabled) == 0 {
		logger.Info("no actions enabled for user")
		return nil
	}

	outcomes := make([]Outcome, len(enabled))
	var mu sync.Mutex
	wp := pool.New().WithErrors()
	for i, a := range enabled {
		i, a := i, a
		wp.Go(func() error {
			err := p.execute(ctx, a, req)
			mu.Lock()
			outcomes[i] = Outcome{Action: a.Name(), Err: err}
			mu.Unlock()
			return err
		})
	}
	// individual failures are already recorded in outcomes
	_ = wp.Wait()

	for _, o := range outcomes {
		if o.Err != nil {
			actionCount.WithLabelValues(o.Action, "error").Inc()
			logger.Error("enforcement action failed", "action", o.Action, "err", o.Err)
		} else {
			actionCount.WithLabelValues(o.Action, "ok").Inc()
		}
	}
	return outcomes
}

func (p *Pipeline) execute(ctx context.Context, a Action, req *Request) (err error) {
	// similar to an HTTP server, a panic in one action must not take down the others
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %s panicked: %v", a.Name(), r)
		}
	}()
	ctx, span := tracer.Start(ctx, "Action")
	defer span.End()
	span.SetAttributes(attribute.String("action", a.Name()))
	return a.Execute(ctx, req)
}

func (p *Pipeline) resolveTarget(ctx context.Context, user, targetID string, logger *slog.Logger) *platform.Item {
	if targetID != "" {
		it, err := p.Env.Client.GetItem(ctx, targetID)
		if err != nil {
			logger.Warn("failed to fetch target item", "err", err)
			return nil
		}
		return it
	}

	// no triggering item: fall back to the newest item by the user in this community
	items, err := p.Env.Client.GetUserHistory(ctx, user, platform.HistoryOptions{
		Posts:    true,
		Comments: true,
		Limit:    100,
		Sort:     "new",
	})
	if err != nil {
		logger.Warn("failed to fetch history for target lookup", "err", err)
		return nil
	}
	community := p.Env.Client.Community()
	for _, it := range items {
		if it.InCommunity(community) {
			return &it
		}
	}
	return nil
}
