package actions

import (
	"context"
	"fmt"
	"strings"
)

// Sends a summary to the moderator mailbox.
type Notify struct {
	*Env
}

func (a *Notify) Name() string { return ActionNotify }

func (a *Notify) Enabled(r *Request) bool {
	return r.Settings.NotifyEnabled && r.Target != nil
}

func notifyBody(r *Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User /u/%s has been identified by %s as potentially having undesirable history.\n\n", r.User, DisplayName)
	if len(r.Verdict.MatchedCommunities) > 0 {
		fmt.Fprintf(&sb, "* Problematic communities found: %s\n", strings.Join(r.Verdict.MatchedCommunities, ", "))
	}
	if len(r.Verdict.MatchedDomains) > 0 {
		fmt.Fprintf(&sb, "* Problematic domains found: %s\n", strings.Join(r.Verdict.MatchedDomains, ", "))
	}
	if len(r.Verdict.MatchedCommunities) > 0 || len(r.Verdict.MatchedDomains) > 0 {
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "User was caught after making [this %s](%s).\n", r.Target.Kind, r.Target.Permalink)
	return sb.String()
}

func (a *Notify) Execute(ctx context.Context, r *Request) error {
	approvals, ok := a.underApprovalThreshold(ctx, r.User, r.Settings.NotifyApprovalThreshold)
	if !ok {
		a.Logger.Info("user has too many approvals to notify", "user", r.User, "approvals", approvals)
		return nil
	}
	subject := fmt.Sprintf("%s notice for /u/%s", DisplayName, r.User)
	if err := a.Client.SendModeratorMessage(ctx, r.Community, subject, notifyBody(r)); err != nil {
		return fmt.Errorf("sending moderator message: %w", err)
	}
	a.Logger.Info("notified moderators", "user", r.User)
	return nil
}
