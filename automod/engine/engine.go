package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/hivewatch/hivewatch/automod/cachestore"
	"github.com/hivewatch/hivewatch/automod/classifier"
	"github.com/hivewatch/hivewatch/automod/keys"
	"github.com/hivewatch/hivewatch/automod/kvstore"
	"github.com/hivewatch/hivewatch/automod/matcher"
	"github.com/hivewatch/hivewatch/automod/platform"
	"github.com/hivewatch/hivewatch/automod/settings"
)

var tracer = otel.Tracer("automod")

// cache namespace for verdicts
const verdictCacheName = "verdict"

// Receives users who passed evaluation, for a one-time delayed re-check.
type SecondCheckScheduler interface {
	Schedule(ctx context.Context, user string, interval time.Duration) error
}

// Decides whether a user should be enforced against, combining history classification,
// thresholds, enforcement history, and exemptions.
//
// Client, Classifier, Store, Cache and Keys must all be set; NewEngine does this.
type Engine struct {
	Logger     *slog.Logger
	Client     platform.Client
	Classifier *classifier.Classifier
	Store      kvstore.Store
	Cache      cachestore.CacheStore
	Keys       *keys.Keys
	// the app's own account name
	AppName string
	// optional; clean verdicts are queued for a second check when set
	SecondChecks SecondCheckScheduler
	Now          func() time.Time
}

func NewEngine(client platform.Client, store kvstore.Store, cache cachestore.CacheStore, k *keys.Keys, appName string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Logger:     logger.With("component", "engine"),
		Client:     client,
		Classifier: classifier.NewClassifier(client, logger),
		Store:      store,
		Cache:      cache,
		Keys:       k,
		AppName:    appName,
		Now:        time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Evaluates a user against one settings snapshot. Lookup failures never surface as errors;
// they result in a clean verdict.
func (e *Engine) Evaluate(ctx context.Context, s *settings.Settings, user string, opts EvalOptions) (*Verdict, error) {
	ctx, span := tracer.Start(ctx, "Evaluate")
	defer span.End()
	span.SetAttributes(attribute.String("user", user))

	logger := e.Logger.With("user", user)

	if !s.ThresholdsConfigured() {
		logger.Debug("no thresholds configured")
		verdictCount.WithLabelValues("unconfigured").Inc()
		return cleanVerdict(), nil
	}
	if s.IsAllowlisted(user) {
		logger.Debug("user is allowlisted")
		verdictCount.WithLabelValues("allowlisted").Inc()
		return cleanVerdict(), nil
	}
	exempt, err := e.Store.Exists(ctx, e.Keys.Exempt(user))
	if err != nil {
		logger.Error("failed to read manual exemption", "err", err)
	} else if exempt {
		logger.Debug("user is manually exempt")
		verdictCount.WithLabelValues("exempt").Inc()
		return cleanVerdict(), nil
	}
	if len(s.Communities) == 0 && len(s.Domains) == 0 {
		logger.Debug("no communities or domains configured")
		verdictCount.WithLabelValues("unconfigured").Inc()
		return cleanVerdict(), nil
	}

	if !opts.BypassCache {
		cached, err := e.cachedVerdict(ctx, user)
		if err != nil {
			logger.Warn("verdict cache read failed", "err", err)
		} else if cached != nil {
			verdictCacheHits.Inc()
			return cached, nil
		}
	}

	start := time.Now()
	v := e.evaluate(ctx, s, user, logger)
	evaluationDuration.Observe(time.Since(start).Seconds())

	switch {
	case v.Enforceable:
		verdictCount.WithLabelValues("enforceable").Inc()
	case v.PossiblyBlocking:
		verdictCount.WithLabelValues("blocking").Inc()
	default:
		verdictCount.WithLabelValues("clean").Inc()
	}
	span.SetAttributes(attribute.Bool("enforceable", v.Enforceable))

	if opts.ReadOnly {
		return v, nil
	}
	if !v.Enforceable && s.SecondCheckIntervalHours > 0 && e.SecondChecks != nil {
		interval := time.Duration(s.SecondCheckIntervalHours) * time.Hour
		if err := e.SecondChecks.Schedule(ctx, user, interval); err != nil {
			logger.Error("failed to schedule second check", "err", err)
		}
	}

	e.storeVerdict(ctx, user, v)
	return v, nil
}

func (e *Engine) evaluate(ctx context.Context, s *settings.Settings, user string, logger *slog.Logger) *Verdict {
	posts, comments := s.HistoryKinds()
	domains := matcher.ParseDomainRules(s.Domains)
	res := e.Classifier.Classify(ctx, user, classifier.Request{
		Posts:            posts,
		Comments:         comments,
		Communities:      s.Communities,
		Domains:          domains,
		CheckSocialLinks: s.CheckSocialLinks,
	})

	items := res.Recent(s.DaysToMonitor, e.now())
	hasSocial := len(res.SocialDomains) > 0
	over := hasSocial || matcher.IsOverThreshold(items, s.CombinedThreshold, s.PostThreshold, s.CommentThreshold, s.MinDistinctCommunities)
	if !over {
		return e.cleanOutcome(ctx, s, user, res, logger)
	}

	bannable := true
	prev, err := e.PreviousEnforcement(ctx, user)
	if err != nil {
		logger.Error("failed to read enforcement history", "err", err)
	}
	if !prev.IsZero() {
		switch s.ReBanPolicy {
		case settings.ReBanAlways:
			bannable = true
		case settings.ReBanNewOnly:
			// only evidence since the last enforcement counts; social links are ignored here
			items = matcher.ItemsAfter(items, prev)
			bannable = matcher.IsOverThreshold(items, s.CombinedThreshold, s.PostThreshold, s.CommentThreshold, s.MinDistinctCommunities)
		default:
			bannable = false
		}
		logger.Info("user previously enforced against", "at", prev, "policy", s.ReBanPolicy, "bannable", bannable)
	}

	logger.Info("user is over threshold",
		"posts", lo.CountBy(items, func(ci matcher.ClassifiedItem) bool { return ci.Kind == platform.KindPost }),
		"comments", lo.CountBy(items, func(ci matcher.ClassifiedItem) bool { return ci.Kind == platform.KindComment }),
		"socialDomains", len(res.SocialDomains))

	if reason := e.exemptionReason(ctx, s, user, items); reason != "" {
		logger.Info("user is exempt", "reason", reason)
		exemptionCount.WithLabelValues(reason).Inc()
		return e.cleanOutcome(ctx, s, user, res, logger)
	}

	v := &Verdict{
		MatchedCommunities: matcher.DistinctCommunities(items),
		MatchedDomains:     lo.Uniq(append(append([]string{}, res.SocialDomains...), matcher.MatchedDomains(items)...)),
		SocialURLs:         res.SocialURLs,
		Enforceable:        true,
		Bannable:           bannable,
	}
	if len(items) > 0 {
		v.LatestPermalink = items[0].Permalink
	}
	return v
}

func (e *Engine) cleanOutcome(ctx context.Context, s *settings.Settings, user string, res *classifier.Result, logger *slog.Logger) *Verdict {
	v := cleanVerdict()
	if s.BlockCheckEnabled && e.isPossiblyBlocking(ctx, user, res) {
		logger.Info("user may be blocking the app account")
		v.PossiblyBlocking = true
	}
	return v
}

func (e *Engine) cachedVerdict(ctx context.Context, user string) (*Verdict, error) {
	raw, err := e.Cache.Get(ctx, verdictCacheName, keys.NormUser(user))
	if err != nil || raw == "" {
		return nil, err
	}
	var v Verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("parsing cached verdict: %w", err)
	}
	return &v, nil
}

// Verdicts with matches are kept briefly so appeals and approvals take effect quickly.
func VerdictTTL(v *Verdict) time.Duration {
	if v.HasMatches() {
		return keys.VerdictTTLShort
	}
	return keys.VerdictTTLLong
}

func (e *Engine) storeVerdict(ctx context.Context, user string, v *Verdict) {
	b, err := json.Marshal(v)
	if err != nil {
		e.Logger.Error("failed to serialize verdict", "user", user, "err", err)
		return
	}
	if err := e.Cache.Set(ctx, verdictCacheName, keys.NormUser(user), string(b), VerdictTTL(v)); err != nil {
		e.Logger.Error("failed to cache verdict", "user", user, "err", err)
	}
}

func (e *Engine) PurgeVerdict(ctx context.Context, user string) error {
	return e.Cache.Purge(ctx, verdictCacheName, keys.NormUser(user))
}

// Checks the moderator and approved-user status concurrently. Lookup failures count as
// exempt, so that enforcement never proceeds on missing information.
func (e *Engine) isPrivileged(ctx context.Context, s *settings.Settings, user string) (bool, string) {
	community := e.Client.Community()
	var isMod, isApproved bool
	var eg errgroup.Group
	eg.Go(func() error {
		v, err := e.Client.IsModerator(ctx, community, user)
		isMod = v
		return err
	})
	if s.ExemptApprovedUsers {
		eg.Go(func() error {
			v, err := e.Client.IsApprovedUser(ctx, community, user)
			isApproved = v
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		e.Logger.Warn("moderator or approved-user lookup failed", "user", user, "err", err)
		return true, "lookup-failed"
	}
	if isMod {
		return true, "moderator"
	}
	if isApproved {
		return true, "approved"
	}
	return false, ""
}

func isNotFound(err error) bool {
	return errors.Is(err, platform.ErrNotFound)
}
