package matcher

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/hivewatch/hivewatch/automod/platform"
)

// An item from a user's history, tagged with how it matched the watch lists. Items with
// neither tag set are never kept.
type ClassifiedItem struct {
	platform.Item
	MatchedByCommunity bool   `json:"matchedByCommunity"`
	MatchedByDomain    bool   `json:"matchedByDomain"`
	Domain             string `json:"domain,omitempty"`
}

func (ci ClassifiedItem) Matched() bool {
	return ci.MatchedByCommunity || ci.MatchedByDomain
}

func isOver(items []ClassifiedItem, threshold, minDistinct int) bool {
	if len(items) < threshold {
		return false
	}
	viaDomain := lo.CountBy(items, func(ci ClassifiedItem) bool { return ci.MatchedByDomain })
	if viaDomain >= threshold {
		return true
	}
	return len(DistinctCommunities(items)) >= minDistinct
}

// Checks the combined, posts-only and comments-only subsets independently against their
// thresholds. A subset is over when its domain-matched items alone reach the threshold, or
// when its size reaches the threshold and it spans at least minDistinct matched
// communities. Zero thresholds are disabled.
func IsOverThreshold(items []ClassifiedItem, combined, post, comment, minDistinct int) bool {
	if combined > 0 && isOver(items, combined, minDistinct) {
		return true
	}
	if post > 0 {
		posts := lo.Filter(items, func(ci ClassifiedItem, _ int) bool { return ci.Kind == platform.KindPost })
		if isOver(posts, post, minDistinct) {
			return true
		}
	}
	if comment > 0 {
		comments := lo.Filter(items, func(ci ClassifiedItem, _ int) bool { return ci.Kind == platform.KindComment })
		if isOver(comments, comment, minDistinct) {
			return true
		}
	}
	return false
}

// Distinct names of communities among community-matched items, in first-seen order.
func DistinctCommunities(items []ClassifiedItem) []string {
	matched := lo.Filter(items, func(ci ClassifiedItem, _ int) bool { return ci.MatchedByCommunity })
	uniq := lo.UniqBy(matched, func(ci ClassifiedItem) string { return strings.ToLower(ci.Community) })
	return lo.Map(uniq, func(ci ClassifiedItem, _ int) string { return ci.Community })
}

func MatchedDomains(items []ClassifiedItem) []string {
	matched := lo.Filter(items, func(ci ClassifiedItem, _ int) bool { return ci.MatchedByDomain })
	return lo.Uniq(lo.Map(matched, func(ci ClassifiedItem, _ int) string { return ci.Domain }))
}

// Items created strictly after t.
func ItemsAfter(items []ClassifiedItem, t time.Time) []ClassifiedItem {
	return lo.Filter(items, func(ci ClassifiedItem, _ int) bool { return ci.CreatedAt.After(t) })
}

func WithinDays(items []ClassifiedItem, days int, now time.Time) []ClassifiedItem {
	return ItemsAfter(items, now.AddDate(0, 0, -days))
}
