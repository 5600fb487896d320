package actions

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hivewatch/hivewatch/automod/keys"
)

type Report struct {
	*Env
}

func (a *Report) Name() string { return ActionReport }

// Reporting removed content is pointless, so reports only happen when removal is off.
func (a *Report) Enabled(r *Request) bool {
	s := r.Settings
	return s.ReportEnabled && strings.TrimSpace(s.ReportTemplate) != "" && !s.RemoveEnabled && r.Target != nil
}

// Returns the user's approval count, and whether it is below the threshold. A zero threshold
// disables the check. Counter failures count as zero approvals.
func (env *Env) underApprovalThreshold(ctx context.Context, user string, threshold int) (int, bool) {
	if threshold <= 0 {
		return 0, true
	}
	approvals, err := env.Counts.ApprovalCount(ctx, user)
	if err != nil {
		env.Logger.Error("failed to read approval counter", "user", user, "err", err)
		return 0, true
	}
	return approvals, approvals < threshold
}

func (a *Report) Execute(ctx context.Context, r *Request) error {
	approvals, ok := a.underApprovalThreshold(ctx, r.User, r.Settings.ReportApprovalThreshold)
	if !ok {
		a.Logger.Info("user has too many approvals to report", "user", r.User, "approvals", approvals)
		return nil
	}

	tv := varsFor(r)
	tv.Approvals = approvals
	if err := a.Client.Report(ctx, r.Target.ID, render(r.Settings.ReportTemplate, tv)); err != nil {
		return fmt.Errorf("reporting %s: %w", r.Target.ID, err)
	}
	// approvals of this item feed the approval counter
	if err := a.Store.Set(ctx, a.Keys.ItemReported(r.Target.ID), strconv.FormatInt(a.now().UnixMilli(), 10), keys.ItemReportedTTL); err != nil {
		a.Logger.Error("failed to mark item as reported", "target", r.Target.ID, "err", err)
	}
	a.Logger.Info("reported user content", "user", r.User, "target", r.Target.ID)
	return nil
}
