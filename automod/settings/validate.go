package settings

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var webhookURLRegex = regexp.MustCompile(`^https://(discord(app)?\.com/api/webhooks/|hooks\.slack\.com/services/)`)

// Domains that belong to the platform itself; matching on them would flag every user.
var PlatformDomains = []string{"reddit.com", "redd.it"}

// Oversize ban message or note. These are reported to moderators once, and the ban action
// truncates the text before sending.
var ErrOversizeSettings = errors.New("ban message or note exceeds platform limits")

func (s *Settings) Validate() error {
	var errs []error
	if len(s.BanMessage) > MaxBanMessageLength {
		errs = append(errs, fmt.Errorf("%w: ban message is %d characters, limit is %d", ErrOversizeSettings, len(s.BanMessage), MaxBanMessageLength))
	}
	if len(s.BanNote) > MaxBanNoteLength {
		errs = append(errs, fmt.Errorf("%w: ban note is %d characters, limit is %d", ErrOversizeSettings, len(s.BanNote), MaxBanNoteLength))
	}
	if s.BanDurationDays < 0 || s.BanDurationDays > MaxBanDurationDays {
		errs = append(errs, fmt.Errorf("ban duration must be between 0 and %d days", MaxBanDurationDays))
	}
	if s.DaysToMonitor < 1 {
		errs = append(errs, fmt.Errorf("days to monitor must be at least 1"))
	}
	if s.CombinedThreshold < 0 || s.PostThreshold < 0 || s.CommentThreshold < 0 {
		errs = append(errs, fmt.Errorf("thresholds must not be negative"))
	}
	if s.WebhookURL != "" && !webhookURLRegex.MatchString(s.WebhookURL) {
		errs = append(errs, fmt.Errorf("webhook URL must be a Discord or Slack webhook: %s", s.WebhookURL))
	}
	for _, d := range s.Domains {
		host := strings.TrimPrefix(strings.TrimPrefix(d, "*."), "www.")
		for _, pd := range PlatformDomains {
			if host == pd {
				errs = append(errs, fmt.Errorf("domain list must not include %s", pd))
			}
		}
	}
	switch s.ContentTypeToActOn {
	case ContentAll, ContentPosts, ContentComments:
	default:
		errs = append(errs, fmt.Errorf("unknown content type to act on: %s", s.ContentTypeToActOn))
	}
	switch s.ReBanPolicy {
	case ReBanNever, ReBanAlways, ReBanNewOnly:
	default:
		errs = append(errs, fmt.Errorf("unknown re-ban policy: %s", s.ReBanPolicy))
	}
	switch s.Purge {
	case PurgeNone, PurgeDay, PurgeWeek, PurgeMonth, PurgeAllTime:
	default:
		errs = append(errs, fmt.Errorf("unknown purge window: %s", s.Purge))
	}
	switch s.NoteBackend {
	case NoteNative, NoteToolbox, NoteBoth:
	default:
		errs = append(errs, fmt.Errorf("unknown note backend: %s", s.NoteBackend))
	}
	return errors.Join(errs...)
}
