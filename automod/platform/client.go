package platform

import (
	"context"
	"errors"
)

// Returned when an account or item does not exist, or is not visible to the app (deleted,
// suspended, or shadowbanned).
var ErrNotFound = errors.New("not found")

// Client is the content platform, as seen from one community the app moderates.
type Client interface {
	// The app's own account. Also used as a cheap health probe.
	AppAccount(ctx context.Context) (*User, error)
	// Name of the community this client moderates.
	Community() string

	GetUser(ctx context.Context, name string) (*User, error)
	// Returns nil (and no error) if the user has no flair in the community.
	GetUserFlair(ctx context.Context, community, user string) (*Flair, error)
	GetSocialLinks(ctx context.Context, user string) ([]SocialLink, error)
	// Recent items by the user, newest first unless the options say otherwise.
	GetUserHistory(ctx context.Context, user string, opts HistoryOptions) ([]Item, error)
	GetItem(ctx context.Context, id string) (*Item, error)

	IsModerator(ctx context.Context, community, user string) (bool, error)
	IsApprovedUser(ctx context.Context, community, user string) (bool, error)
	IsBanned(ctx context.Context, community, user string) (bool, error)

	Ban(ctx context.Context, req BanRequest) error
	Remove(ctx context.Context, id string, spam bool) error
	Report(ctx context.Context, id, reason string) error
	// Replies to a post or comment, returning the created comment.
	Reply(ctx context.Context, parentID, body string) (*Item, error)
	Distinguish(ctx context.Context, id string, sticky bool) error
	Lock(ctx context.Context, id string) error
	SendModeratorMessage(ctx context.Context, community, subject, body string) error

	AddModNote(ctx context.Context, note ModNote) error
	AddToolboxNote(ctx context.Context, note ModNote) error
	ListModNotes(ctx context.Context, community, user string, limit int) ([]ModNote, error)
	// Moderation log entries of the given type, optionally filtered to one moderator.
	ListModActions(ctx context.Context, community, actionType, moderator string, limit int) ([]ModAction, error)
}
