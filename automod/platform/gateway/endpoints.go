package gateway

import (
	"context"
	"net/http"

	"github.com/hivewatch/hivewatch/automod/platform"
)

type historyParams struct {
	Posts     bool   `url:"posts"`
	Comments  bool   `url:"comments"`
	Limit     int    `url:"limit,omitempty"`
	Sort      string `url:"sort,omitempty"`
	Timeframe string `url:"t,omitempty"`
}

type modNoteParams struct {
	User  string `url:"user"`
	Limit int    `url:"limit,omitempty"`
}

type modLogParams struct {
	Type      string `url:"type,omitempty"`
	Moderator string `url:"mod,omitempty"`
	Limit     int    `url:"limit,omitempty"`
}

type flagResponse struct {
	Value bool `json:"value"`
}

type banBody struct {
	User         string `json:"user"`
	DurationDays int    `json:"durationDays,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message,omitempty"`
	Note         string `json:"note,omitempty"`
	Context      string `json:"context,omitempty"`
}

type removeBody struct {
	Spam bool `json:"spam"`
}

type reportBody struct {
	Reason string `json:"reason"`
}

type replyBody struct {
	Body string `json:"body"`
}

type distinguishBody struct {
	Sticky bool `json:"sticky"`
}

type modmailBody struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (c *Client) Community() string {
	return c.community
}

func (c *Client) AppAccount(ctx context.Context) (*platform.User, error) {
	var out platform.User
	if err := c.do(ctx, http.MethodGet, "/api/v1/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUser(ctx context.Context, name string) (*platform.User, error) {
	var out platform.User
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/"+segment(name), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUserFlair(ctx context.Context, community, user string) (*platform.Flair, error) {
	var out platform.Flair
	err := c.do(ctx, http.MethodGet, "/api/v1/communities/"+segment(community)+"/flair/"+segment(user), nil, nil, &out)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSocialLinks(ctx context.Context, user string) ([]platform.SocialLink, error) {
	var out []platform.SocialLink
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/"+segment(user)+"/social-links", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUserHistory(ctx context.Context, user string, opts platform.HistoryOptions) ([]platform.Item, error) {
	params := historyParams{
		Posts:     opts.Posts,
		Comments:  opts.Comments,
		Limit:     opts.Limit,
		Sort:      opts.Sort,
		Timeframe: string(opts.Timeframe),
	}
	var out []platform.Item
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/"+segment(user)+"/history", params, nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Kind == platform.KindUnknown {
			out[i].Kind = platform.KindFromID(out[i].ID)
		}
	}
	return out, nil
}

func (c *Client) GetItem(ctx context.Context, id string) (*platform.Item, error) {
	var out platform.Item
	if err := c.do(ctx, http.MethodGet, "/api/v1/items/"+segment(id), nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Kind == platform.KindUnknown {
		out.Kind = platform.KindFromID(out.ID)
	}
	return &out, nil
}

func (c *Client) userFlag(ctx context.Context, community, list, user string) (bool, error) {
	var out flagResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/communities/"+segment(community)+"/"+list+"/"+segment(user), nil, nil, &out); err != nil {
		return false, err
	}
	return out.Value, nil
}

func (c *Client) IsModerator(ctx context.Context, community, user string) (bool, error) {
	return c.userFlag(ctx, community, "moderators", user)
}

func (c *Client) IsApprovedUser(ctx context.Context, community, user string) (bool, error) {
	return c.userFlag(ctx, community, "approved", user)
}

func (c *Client) IsBanned(ctx context.Context, community, user string) (bool, error) {
	return c.userFlag(ctx, community, "banned", user)
}

func (c *Client) Ban(ctx context.Context, req platform.BanRequest) error {
	body := banBody{
		User:         req.User,
		DurationDays: req.DurationDays,
		Reason:       req.Reason,
		Message:      req.Message,
		Note:         req.Note,
		Context:      req.Context,
	}
	return c.do(ctx, http.MethodPost, "/api/v1/communities/"+segment(req.Community)+"/bans", nil, body, nil)
}

func (c *Client) Remove(ctx context.Context, id string, spam bool) error {
	return c.do(ctx, http.MethodPost, "/api/v1/items/"+segment(id)+"/remove", nil, removeBody{Spam: spam}, nil)
}

func (c *Client) Report(ctx context.Context, id, reason string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/items/"+segment(id)+"/report", nil, reportBody{Reason: reason}, nil)
}

func (c *Client) Reply(ctx context.Context, parentID, body string) (*platform.Item, error) {
	var out platform.Item
	if err := c.do(ctx, http.MethodPost, "/api/v1/items/"+segment(parentID)+"/replies", nil, replyBody{Body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Distinguish(ctx context.Context, id string, sticky bool) error {
	return c.do(ctx, http.MethodPost, "/api/v1/items/"+segment(id)+"/distinguish", nil, distinguishBody{Sticky: sticky}, nil)
}

func (c *Client) Lock(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/items/"+segment(id)+"/lock", nil, nil, nil)
}

func (c *Client) SendModeratorMessage(ctx context.Context, community, subject, body string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/communities/"+segment(community)+"/modmail", nil, modmailBody{Subject: subject, Body: body}, nil)
}

func (c *Client) AddModNote(ctx context.Context, note platform.ModNote) error {
	return c.do(ctx, http.MethodPost, "/api/v1/communities/"+segment(note.Community)+"/notes", nil, note, nil)
}

func (c *Client) AddToolboxNote(ctx context.Context, note platform.ModNote) error {
	return c.do(ctx, http.MethodPost, "/api/v1/communities/"+segment(note.Community)+"/toolbox-notes", nil, note, nil)
}

func (c *Client) ListModNotes(ctx context.Context, community, user string, limit int) ([]platform.ModNote, error) {
	var out []platform.ModNote
	err := c.do(ctx, http.MethodGet, "/api/v1/communities/"+segment(community)+"/notes", modNoteParams{User: user, Limit: limit}, nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListModActions(ctx context.Context, community, actionType, moderator string, limit int) ([]platform.ModAction, error) {
	var out []platform.ModAction
	params := modLogParams{Type: actionType, Moderator: moderator, Limit: limit}
	if err := c.do(ctx, http.MethodGet, "/api/v1/communities/"+segment(community)+"/modlog", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
