package actions

import (
	"context"
	"fmt"
	"strings"
)

// Best-effort alert to an external Discord or Slack channel. Delivery failures are logged
// and never reported as action failures.
type Webhook struct {
	*Env
}

func (a *Webhook) Name() string { return ActionWebhook }

func (a *Webhook) Enabled(r *Request) bool {
	return r.Settings.WebhookURL != "" && r.Target != nil && a.Env.Webhook != nil
}

func webhookMessage(r *Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "/u/%s has been flagged by %s on /r/%s.\n", r.User, DisplayName, r.Community)
	if len(r.Verdict.MatchedCommunities) > 0 {
		fmt.Fprintf(&sb, "* Problematic communities found: %s\n", strings.Join(r.Verdict.MatchedCommunities, ", "))
	}
	if len(r.Verdict.MatchedDomains) > 0 {
		fmt.Fprintf(&sb, "* Problematic domains found: %s\n", strings.Join(r.Verdict.MatchedDomains, ", "))
	}
	link := r.Target.Permalink
	// angle brackets stop discord from rendering a link preview
	if r.Settings.WebhookSuppressEmbeds && IsDiscordWebhook(r.Settings.WebhookURL) {
		link = "<" + link + ">"
	}
	fmt.Fprintf(&sb, "User was caught after making [this %s](%s).", r.Target.Kind, link)
	return sb.String()
}

func (a *Webhook) Execute(ctx context.Context, r *Request) error {
	if err := a.Env.Webhook.Send(ctx, r.Settings.WebhookURL, webhookMessage(r)); err != nil {
		webhookCount.WithLabelValues("error").Inc()
		a.Logger.Warn("webhook alert failed", "user", r.User, "err", err)
		return nil
	}
	webhookCount.WithLabelValues("ok").Inc()
	a.Logger.Info("webhook alert sent", "user", r.User)
	return nil
}
