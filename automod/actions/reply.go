package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/hivewatch/hivewatch/automod/platform"
)

type Reply struct {
	*Env
}

func (a *Reply) Name() string { return ActionReply }

func (a *Reply) Enabled(r *Request) bool {
	return strings.TrimSpace(r.Settings.ReplyTemplate) != "" && r.Target != nil
}

func botFooter(community string) string {
	return fmt.Sprintf("*I am a bot, and this action was performed automatically. Please [contact the moderators of this community](/message/compose/?to=/r/%s) if you have any questions or concerns.*", community)
}

func (a *Reply) Execute(ctx context.Context, r *Request) error {
	s := r.Settings
	if s.MaxRepliesPerUser > 0 {
		made, err := a.Counts.ReplyCount(ctx, r.User)
		if err != nil {
			a.Logger.Error("failed to read reply counter", "user", r.User, "err", err)
		} else if made >= s.MaxRepliesPerUser {
			a.Logger.Info("reply limit reached for user", "user", r.User, "replies", made)
			return nil
		}
	}
	if _, err := a.Counts.IncrementReplies(ctx, r.User); err != nil {
		a.Logger.Error("failed to increment reply counter", "user", r.User, "err", err)
	}
	a.ScheduleLiveness(ctx, r.User)

	text := redact(render(s.ReplyTemplate, varsFor(r)), s.SitewideBannedDomains)
	text = strings.TrimSpace(text) + "\n\n" + botFooter(r.Community)

	reply, err := a.Client.Reply(ctx, r.Target.ID, text)
	if err != nil {
		return fmt.Errorf("replying to %s: %w", r.Target.ID, err)
	}
	sticky := s.StickyReply && r.Target.Kind == platform.KindPost
	if err := a.Client.Distinguish(ctx, reply.ID, sticky); err != nil {
		return fmt.Errorf("distinguishing reply: %w", err)
	}
	if s.LockReply {
		if err := a.Client.Lock(ctx, reply.ID); err != nil {
			return fmt.Errorf("locking reply: %w", err)
		}
	}
	a.Logger.Info("replied to user content", "user", r.User, "target", r.Target.ID)
	return nil
}
