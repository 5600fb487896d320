package platform

import (
	"strings"
	"time"
)

type ItemKind int

const (
	KindUnknown ItemKind = iota
	KindPost
	KindComment
)

func (k ItemKind) String() string {
	switch k {
	case KindPost:
		return "post"
	case KindComment:
		return "comment"
	default:
		return "unknown"
	}
}

// Thing-ID prefixes used by the platform.
const (
	PostIDPrefix    = "t3_"
	CommentIDPrefix = "t1_"
)

// Determines the item kind from the thing-ID prefix.
func KindFromID(id string) ItemKind {
	switch {
	case strings.HasPrefix(id, PostIDPrefix):
		return KindPost
	case strings.HasPrefix(id, CommentIDPrefix):
		return KindComment
	default:
		return KindUnknown
	}
}

// A post or comment. Kind is the discriminant; fields which only apply to posts (like URL
// and Title) are empty on comments.
type Item struct {
	ID        string    `json:"id"`
	Kind      ItemKind  `json:"kind"`
	Author    string    `json:"author"`
	Community string    `json:"community"`
	Title     string    `json:"title,omitempty"`
	Body      string    `json:"body,omitempty"`
	URL       string    `json:"url,omitempty"`
	Permalink string    `json:"permalink"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

func (i *Item) InCommunity(name string) bool {
	return strings.EqualFold(i.Community, name)
}

type User struct {
	Name         string    `json:"name"`
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	LinkKarma    int       `json:"linkKarma"`
	CommentKarma int       `json:"commentKarma"`
	IsAdmin      bool      `json:"isAdmin"`
}

type Flair struct {
	Text     string `json:"text"`
	CSSClass string `json:"cssClass"`
}

type SocialLink struct {
	Title       string `json:"title"`
	OutboundURL string `json:"outboundUrl"`
}

type Timeframe string

const (
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
	TimeframeAll   Timeframe = "all"
)

type HistoryOptions struct {
	Posts     bool
	Comments  bool
	Limit     int
	Sort      string
	Timeframe Timeframe
}

type BanRequest struct {
	Community string
	User      string
	// zero means permanent
	DurationDays int
	Reason       string
	Message      string
	Note         string
	// item the ban relates to, if any
	Context string
}

const (
	LabelBotBan       = "BOT_BAN"
	LabelAbuseWarning = "ABUSE_WARNING"
	LabelSpamWarning  = "SPAM_WARNING"
)

type ModNote struct {
	Community string    `json:"community"`
	User      string    `json:"user"`
	Note      string    `json:"note"`
	Label     string    `json:"label,omitempty"`
	ItemID    string    `json:"itemId,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Moderation-log action types the engine reacts to.
const (
	ModActionBan            = "banuser"
	ModActionUnban          = "unbanuser"
	ModActionApproveComment = "approvecomment"
	ModActionApprovePost    = "approvelink"
)

type ModAction struct {
	Type         string    `json:"type"`
	Moderator    string    `json:"moderator"`
	TargetUser   string    `json:"targetUser"`
	TargetItemID string    `json:"targetItemId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
