package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/hivewatch/hivewatch/automod/classifier"
	"github.com/hivewatch/hivewatch/automod/keys"
	"github.com/hivewatch/hivewatch/automod/platform"
)

const (
	// users with less history than this are never flagged
	BlockingMinHistory = 20
	// minimum number of foreign communities, all moderated by the app account
	BlockingMinCommunities = 3
	// accounts younger than this are never flagged
	BlockingMinAccountAgeMonths = 1
)

// Heuristic for users who have blocked the app account: a blocked account can only see the
// user's content in communities it moderates, so a long history confined to such communities
// is suspicious. Advisory only.
func (e *Engine) isPossiblyBlocking(ctx context.Context, user string, res *classifier.Result) bool {
	if res.Fetched < BlockingMinHistory {
		return false
	}

	items := lo.UniqBy(res.All, func(it platform.Item) string { return strings.ToLower(it.Community) })
	communities := lo.Map(items, func(it platform.Item, _ int) string { return it.Community })
	if len(communities) == 0 {
		return false
	}

	for _, c := range communities {
		if !e.appModerates(ctx, c) {
			return false
		}
	}

	if len(communities) < BlockingMinCommunities {
		return false
	}

	u, err := e.Client.GetUser(ctx, user)
	if err == nil && u.CreatedAt.After(e.now().AddDate(0, -BlockingMinAccountAgeMonths, 0)) {
		return false
	}
	return true
}

// Whether the app account moderates a community. Answers are cached in the store.
func (e *Engine) appModerates(ctx context.Context, community string) bool {
	key := e.Keys.AppModOf(community)
	raw, ok, err := e.Store.Get(ctx, key)
	if err != nil {
		e.Logger.Warn("failed to read moderator cache", "community", community, "err", err)
	}
	if ok {
		v, err := strconv.ParseBool(raw)
		if err == nil {
			return v
		}
	}

	isMod, err := e.Client.IsModerator(ctx, community, e.AppName)
	if err != nil {
		e.Logger.Warn("failed to check app moderator status", "community", community, "err", err)
		return false
	}
	if err := e.Store.Set(ctx, key, strconv.FormatBool(isMod), keys.AppModOfTTL); err != nil {
		e.Logger.Error("failed to cache moderator status", "community", community, "err", err)
	}
	return isMod
}
