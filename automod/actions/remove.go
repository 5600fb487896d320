package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/hivewatch/hivewatch/automod/platform"
	"github.com/hivewatch/hivewatch/automod/settings"
)

const purgeFetchLimit = 1000

type Remove struct {
	*Env
}

func (a *Remove) Name() string { return ActionRemove }

func (a *Remove) Enabled(r *Request) bool {
	return r.Settings.RemoveEnabled && r.Target != nil
}

func purgeTimeframe(p settings.PurgeWindow) platform.Timeframe {
	switch p {
	case settings.PurgeDay:
		return platform.TimeframeDay
	case settings.PurgeWeek:
		return platform.TimeframeWeek
	case settings.PurgeMonth:
		return platform.TimeframeMonth
	default:
		return platform.TimeframeAll
	}
}

func (a *Remove) Execute(ctx context.Context, r *Request) error {
	s := r.Settings
	if err := a.Client.Remove(ctx, r.Target.ID, s.RemoveAsSpam); err != nil {
		return fmt.Errorf("removing %s: %w", r.Target.ID, err)
	}
	removed := 1

	if s.Purge != settings.PurgeNone {
		items, err := a.Client.GetUserHistory(ctx, r.User, platform.HistoryOptions{
			Posts:     true,
			Comments:  true,
			Limit:     purgeFetchLimit,
			Sort:      "new",
			Timeframe: purgeTimeframe(s.Purge),
		})
		if err != nil {
			return fmt.Errorf("fetching history to purge: %w", err)
		}
		var errs []error
		for _, it := range items {
			if it.ID == r.Target.ID || !it.InCommunity(r.Community) {
				continue
			}
			if err := a.Client.Remove(ctx, it.ID, s.RemoveAsSpam); err != nil {
				errs = append(errs, fmt.Errorf("removing %s: %w", it.ID, err))
				continue
			}
			removed++
		}
		if len(errs) > 0 {
			return errors.Join(errs...)
		}
	}
	a.Logger.Info("removed user content", "user", r.User, "count", removed)
	return nil
}
