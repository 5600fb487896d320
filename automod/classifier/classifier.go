package classifier

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/hivewatch/hivewatch/automod/matcher"
	"github.com/hivewatch/hivewatch/automod/platform"
)

const (
	HistoryLimit = 100
	HistorySort  = "new"
)

type Request struct {
	Posts       bool
	Comments    bool
	Communities []string
	Domains     []matcher.DomainRule
	// also match the domains of the user's profile social links
	CheckSocialLinks bool
}

type Result struct {
	// number of items fetched, including the evaluating community
	Fetched int
	// everything fetched, excluding the evaluating community
	All     []platform.Item
	Matched []matcher.ClassifiedItem
	// matched domains from the user's profile social links, and the links themselves
	SocialDomains []string
	SocialURLs    []string
}

// Matched items created within the last days, relative to now.
func (r *Result) Recent(days int, now time.Time) []matcher.ClassifiedItem {
	return matcher.WithinDays(r.Matched, days, now)
}

type Classifier struct {
	Client platform.Client
	Logger *slog.Logger
}

func NewClassifier(client platform.Client, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		Client: client,
		Logger: logger.With("component", "classifier"),
	}
}

// Fetches a user's recent history and tags every item against the watch lists. Lookup
// failures are treated as "no evidence": they are logged, and an empty result is returned.
func (c *Classifier) Classify(ctx context.Context, user string, req Request) *Result {
	logger := c.Logger.With("user", user)
	res := &Result{}
	if !req.Posts && !req.Comments {
		return res
	}

	var history []platform.Item
	var historyErr error
	var social []platform.SocialLink

	var eg errgroup.Group
	eg.Go(func() error {
		history, historyErr = c.Client.GetUserHistory(ctx, user, platform.HistoryOptions{
			Posts:    req.Posts,
			Comments: req.Comments,
			Limit:    HistoryLimit,
			Sort:     HistorySort,
		})
		return nil
	})
	if req.CheckSocialLinks && len(req.Domains) > 0 {
		eg.Go(func() error {
			links, err := c.Client.GetSocialLinks(ctx, user)
			if err != nil {
				logger.Warn("failed to fetch social links", "err", err)
				return nil
			}
			social = links
			return nil
		})
	}
	_ = eg.Wait()

	if historyErr != nil {
		logger.Warn("failed to fetch user history, treating as empty", "err", historyErr)
		return res
	}

	res.Fetched = len(history)
	community := c.Client.Community()
	watched := make(map[string]bool, len(req.Communities))
	for _, name := range req.Communities {
		watched[strings.ToLower(name)] = true
	}

	for _, it := range history {
		if it.InCommunity(community) {
			continue
		}
		res.All = append(res.All, it)
		ci := matcher.ClassifiedItem{
			Item:               it,
			MatchedByCommunity: watched[strings.ToLower(it.Community)],
		}
		// items without an outbound link (like comments) never match on domain
		if host := matcher.DomainFromURL(it.URL); host != "" && matcher.IsDomainInList(host, req.Domains) {
			ci.MatchedByDomain = true
			ci.Domain = host
		}
		if ci.Matched() {
			res.Matched = append(res.Matched, ci)
		}
	}

	for _, link := range social {
		host := matcher.DomainFromURL(link.OutboundURL)
		if host != "" && matcher.IsDomainInList(host, req.Domains) {
			res.SocialDomains = append(res.SocialDomains, host)
			res.SocialURLs = append(res.SocialURLs, link.OutboundURL)
		}
	}
	res.SocialDomains = lo.Uniq(res.SocialDomains)
	res.SocialURLs = lo.Uniq(res.SocialURLs)

	if len(res.Matched) > 0 || len(res.SocialDomains) > 0 {
		logger.Debug("classified user history",
			"fetched", len(history),
			"matched", len(res.Matched),
			"socialDomains", len(res.SocialDomains))
	}
	return res
}
