package engine

import (
	"context"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/hivewatch/hivewatch/automod/matcher"
	"github.com/hivewatch/hivewatch/automod/settings"
)

// Runs the exemption checks for an over-threshold user, cheapest first, returning the first
// reason that applies (or an empty string). The moderator and approved-user checks run last.
func (e *Engine) exemptionReason(ctx context.Context, s *settings.Settings, user string, items []matcher.ClassifiedItem) string {
	logger := e.Logger.With("user", user)

	profileFetches.Inc()
	u, err := e.Client.GetUser(ctx, user)
	if err != nil {
		// deleted, suspended or shadowbanned accounts have nothing to act on
		if !isNotFound(err) {
			logger.Warn("profile lookup failed", "err", err)
		}
		return "profile-unavailable"
	}

	if u.IsAdmin {
		return "admin"
	}

	if len(s.FlairAllowlist) > 0 || len(s.FlairClassAllowlist) > 0 {
		flair, err := e.Client.GetUserFlair(ctx, e.Client.Community(), user)
		if err != nil {
			logger.Warn("flair lookup failed", "err", err)
		} else if flair != nil {
			if flair.Text != "" && slices.Contains(s.FlairAllowlist, strings.ToLower(flair.Text)) {
				return "flair"
			}
			if flair.CSSClass != "" && slices.Contains(s.FlairClassAllowlist, strings.ToLower(flair.CSSClass)) {
				return "flair-class"
			}
		}
	}

	if s.ExemptAccountOlderThanDays > 0 && u.CreatedAt.Before(e.now().AddDate(0, 0, -s.ExemptAccountOlderThanDays)) {
		return "account-age"
	}
	if s.ExemptLinkKarmaAbove > 0 && u.LinkKarma > s.ExemptLinkKarmaAbove {
		return "link-karma"
	}
	if s.ExemptCommentKarmaAbove > 0 && u.CommentKarma > s.ExemptCommentKarmaAbove {
		return "comment-karma"
	}
	if s.LowKarmaInMatchedExemption > 0 && matchedKarma(items) < s.LowKarmaInMatchedExemption {
		return "low-matched-karma"
	}

	if ok, reason := e.isPrivileged(ctx, s, user); ok {
		return reason
	}
	return ""
}

// Total score of the user's items in watched communities.
func matchedKarma(items []matcher.ClassifiedItem) int {
	total := 0
	for _, ci := range lo.Filter(items, func(ci matcher.ClassifiedItem, _ int) bool { return ci.MatchedByCommunity }) {
		total += ci.Score
	}
	return total
}
