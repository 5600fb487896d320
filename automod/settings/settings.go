package settings

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/v2"
)

type ContentType string

const (
	ContentAll      ContentType = "all"
	ContentPosts    ContentType = "posts"
	ContentComments ContentType = "comments"
)

type ReBanPolicy string

const (
	ReBanNever   ReBanPolicy = "never"
	ReBanAlways  ReBanPolicy = "always"
	ReBanNewOnly ReBanPolicy = "newonly"
)

type PurgeWindow string

const (
	PurgeNone    PurgeWindow = "none"
	PurgeDay     PurgeWindow = "day"
	PurgeWeek    PurgeWindow = "week"
	PurgeMonth   PurgeWindow = "month"
	PurgeAllTime PurgeWindow = "allTime"
)

type NoteBackend string

const (
	NoteNative  NoteBackend = "native"
	NoteToolbox NoteBackend = "toolbox"
	NoteBoth    NoteBackend = "both"
)

const (
	MaxBanMessageLength = 900
	MaxBanNoteLength    = 80
	MaxBanDurationDays  = 999
)

// Snapshot of the moderator-facing settings. A snapshot is never modified after it is
// built; every evaluation reads one snapshot and passes it down by pointer.
type Settings struct {
	// detection
	Communities            []string    `koanf:"communities"`
	MinDistinctCommunities int         `koanf:"min_distinct_communities"`
	Domains                []string    `koanf:"domains"`
	ContentTypeToActOn     ContentType `koanf:"content_type_to_act_on"`
	CombinedThreshold      int         `koanf:"combined_threshold"`
	PostThreshold          int         `koanf:"post_threshold"`
	CommentThreshold       int         `koanf:"comment_threshold"`
	DaysToMonitor          int         `koanf:"days_to_monitor"`
	CheckSocialLinks       bool        `koanf:"check_social_links"`

	// exemptions
	LowKarmaInMatchedExemption int      `koanf:"low_karma_in_matched_exemption"`
	ExemptApprovedUsers        bool     `koanf:"exempt_approved_users"`
	UserAllowlist              []string `koanf:"user_allowlist"`
	FlairAllowlist             []string `koanf:"flair_allowlist"`
	FlairClassAllowlist        []string `koanf:"flair_class_allowlist"`
	ExemptAccountOlderThanDays int      `koanf:"exempt_account_older_than_days"`
	ExemptLinkKarmaAbove       int      `koanf:"exempt_link_karma_above"`
	ExemptCommentKarmaAbove    int      `koanf:"exempt_comment_karma_above"`

	// ban
	BanEnabled                   bool        `koanf:"ban_enabled"`
	ReBanPolicy                  ReBanPolicy `koanf:"reban_policy"`
	ApplyBanPolicyToOtherActions bool        `koanf:"apply_ban_policy_to_other_actions"`
	BanMessage                   string      `koanf:"ban_message"`
	BanNote                      string      `koanf:"ban_note"`
	BanDurationDays              int         `koanf:"ban_duration_days"`
	ClearHistoryOnUnban          bool        `koanf:"clear_history_on_unban"`

	// remove
	RemoveEnabled bool        `koanf:"remove_enabled"`
	RemoveAsSpam  bool        `koanf:"remove_as_spam"`
	Purge         PurgeWindow `koanf:"purge"`

	// reply
	ReplyTemplate     string `koanf:"reply_template"`
	MaxRepliesPerUser int    `koanf:"max_replies_per_user"`
	LockReply         bool   `koanf:"lock_reply"`
	StickyReply       bool   `koanf:"sticky_reply"`

	// report
	ReportEnabled           bool   `koanf:"report_enabled"`
	ReportTemplate          string `koanf:"report_template"`
	ReportApprovalThreshold int    `koanf:"report_approval_threshold"`

	// moderator mailbox
	NotifyEnabled           bool `koanf:"notify_enabled"`
	NotifyApprovalThreshold int  `koanf:"notify_approval_threshold"`

	// moderator notes
	NoteEnabled  bool        `koanf:"note_enabled"`
	NoteBackend  NoteBackend `koanf:"note_backend"`
	NoteTemplate string      `koanf:"note_template"`

	WebhookURL            string `koanf:"webhook_url"`
	WebhookSuppressEmbeds bool   `koanf:"webhook_suppress_embeds"`

	BlockCheckEnabled bool `koanf:"block_check_enabled"`
	BlockCheckAddNote bool `koanf:"block_check_add_note"`

	SecondCheckIntervalHours int `koanf:"second_check_interval_hours"`
	LivenessIntervalDays     int `koanf:"liveness_interval_days"`

	SitewideBannedDomains []string `koanf:"sitewide_banned_domains"`
}

func Defaults() *Settings {
	return &Settings{
		MinDistinctCommunities:  1,
		ContentTypeToActOn:      ContentAll,
		CombinedThreshold:       6,
		DaysToMonitor:           28,
		BanEnabled:              true,
		ReBanPolicy:             ReBanNever,
		ClearHistoryOnUnban:     true,
		RemoveEnabled:           true,
		Purge:                   PurgeNone,
		LockReply:               true,
		ReportTemplate:          "Content found in: {{sublist}}",
		ReportApprovalThreshold: 3,
		NotifyApprovalThreshold: 3,
		NoteBackend:             NoteNative,
		NoteTemplate:            "User has history in: {{sublist}}",
		LivenessIntervalDays:    28,
		SitewideBannedDomains:   defaultSitewideBannedDomains(),
	}
}

func defaultSitewideBannedDomains() []string {
	return []string{"beacons.ai"}
}

// in-memory koanf provider, so maps and files share the same decoding rules
type mapProvider map[string]any

func (p mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("mapProvider does not support ReadBytes")
}

func (p mapProvider) Read() (map[string]any, error) {
	return p, nil
}

// Builds a snapshot from a flat map of named settings. Missing settings take their default
// values. List settings accept either lists or comma-separated strings.
func FromMap(m map[string]any) (*Settings, error) {
	k := koanf.New(".")
	if err := k.Load(mapProvider(m), nil); err != nil {
		return nil, err
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Settings, error) {
	s := Defaults()
	// decoding merges into existing slices, so list defaults are applied afterwards
	s.SitewideBannedDomains = nil
	if err := k.Unmarshal("", s); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	if !k.Exists("sitewide_banned_domains") {
		s.SitewideBannedDomains = defaultSitewideBannedDomains()
	}
	s.normalize()
	return s, nil
}

func cleanList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (s *Settings) normalize() {
	s.Communities = cleanList(s.Communities)
	s.Domains = cleanList(s.Domains)
	s.UserAllowlist = cleanList(s.UserAllowlist)
	s.FlairAllowlist = cleanList(s.FlairAllowlist)
	s.FlairClassAllowlist = cleanList(s.FlairClassAllowlist)
	s.SitewideBannedDomains = cleanList(s.SitewideBannedDomains)
	s.WebhookURL = strings.TrimSpace(s.WebhookURL)
	if s.ContentTypeToActOn == "" {
		s.ContentTypeToActOn = ContentAll
	}
	if s.ReBanPolicy == "" {
		s.ReBanPolicy = ReBanNever
	}
	if s.Purge == "" {
		s.Purge = PurgeNone
	}
	if s.NoteBackend == "" {
		s.NoteBackend = NoteNative
	}
	if s.LivenessIntervalDays <= 0 {
		s.LivenessIntervalDays = 28
	}
	if s.MinDistinctCommunities <= 0 {
		s.MinDistinctCommunities = 1
	}
}

// True if at least one of the item thresholds is active. Without any, no evaluation is done.
func (s *Settings) ThresholdsConfigured() bool {
	return s.CombinedThreshold > 0 || s.PostThreshold > 0 || s.CommentThreshold > 0
}

// Which item kinds need to be fetched to evaluate the active thresholds: both when the
// combined threshold is set or both per-kind thresholds are set, otherwise only the kind with
// an active threshold.
func (s *Settings) HistoryKinds() (posts, comments bool) {
	if s.CombinedThreshold > 0 || (s.PostThreshold > 0 && s.CommentThreshold > 0) {
		return true, true
	}
	return s.PostThreshold > 0, s.CommentThreshold > 0
}

func (s *Settings) IsAllowlisted(user string) bool {
	u := strings.ToLower(user)
	for _, a := range s.UserAllowlist {
		if a == u {
			return true
		}
	}
	return false
}
