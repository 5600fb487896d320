// Risk evaluation and enforcement engine for community moderation.
//
// This package (`github.com/hivewatch/hivewatch/automod`) evaluates users who participate in a community against their recent history elsewhere on the platform. Users with enough posts or comments in watched communities, or linking to watched domains, are enforced against with a configurable set of actions: ban, remove, reply, report, moderator notification, mod note, and webhook alert. Verdicts are cached, prior enforcement drives a re-ban policy, and a range of exemptions (moderators, approved users, flair, karma, account age, manual) keep regular users out of scope.
//
// Content events pass through a short debounce queue before evaluation. Users who pass are re-checked once later, and a periodic liveness sweep removes stored state for accounts that have been deleted.
//
// See `cmd/hivewatch` for a daemon built on this package.
package automod
