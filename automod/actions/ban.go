package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/hivewatch/hivewatch/automod/platform"
)

const (
	ActionBan     = "ban"
	ActionReport  = "report"
	ActionRemove  = "remove"
	ActionNotify  = "notify"
	ActionReply   = "reply"
	ActionNote    = "note"
	ActionWebhook = "webhook"
)

// platform limits
const (
	MaxBanReasonLength  = 100
	MaxBanMessageLength = 1000
)

type Ban struct {
	*Env
}

func (a *Ban) Name() string { return ActionBan }

func (a *Ban) Enabled(r *Request) bool {
	return r.Settings.BanEnabled && r.Verdict.Bannable
}

func (a *Ban) Execute(ctx context.Context, r *Request) error {
	s := r.Settings
	banned, err := a.Client.IsBanned(ctx, r.Community, r.User)
	if err != nil {
		return fmt.Errorf("checking ban status: %w", err)
	}
	if banned {
		a.Logger.Info("user is already banned, skipping", "user", r.User)
		return nil
	}

	tv := varsFor(r)
	reason := fmt.Sprintf("Banned by %s. Matches in {{sublist}}", DisplayName)
	if strings.TrimSpace(s.BanNote) != "" {
		reason = fmt.Sprintf("%s: %s", DisplayName, s.BanNote)
	}
	req := platform.BanRequest{
		Community:    r.Community,
		User:         r.User,
		DurationDays: s.BanDurationDays,
		Reason:       truncate(render(reason, tv), MaxBanReasonLength),
		Message:      truncate(render(s.BanMessage, tv), MaxBanMessageLength),
		Note:         truncate(render(s.BanNote, tv), MaxBanReasonLength),
	}
	if r.Target != nil {
		req.Context = r.Target.ID
	}
	if err := a.Client.Ban(ctx, req); err != nil {
		return fmt.Errorf("banning user: %w", err)
	}

	if err := a.History.RecordEnforcement(ctx, r.User, a.now()); err != nil {
		a.Logger.Error("failed to record enforcement", "user", r.User, "err", err)
	}
	a.ScheduleLiveness(ctx, r.User)
	a.Logger.Info("banned user", "user", r.User, "community", r.Community, "days", s.BanDurationDays)
	return nil
}
