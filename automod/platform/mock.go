package platform

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type RemoveCall struct {
	ID   string
	Spam bool
}

type ReportCall struct {
	ID     string
	Reason string
}

type ReplyCall struct {
	ParentID string
	Body     string
	ReplyID  string
}

type DistinguishCall struct {
	ID     string
	Sticky bool
}

type ModeratorMessage struct {
	Community string
	Subject   string
	Body      string
}

// A fake content platform, for use in tests. Read methods serve the exported maps (user
// names are matched case-insensitively); mutating methods are recorded.
type MockClient struct {
	mu *sync.RWMutex

	AppName       string
	CommunityName string
	// returned by AppAccount when set
	AppAccountErr error

	Users       map[string]User
	Flairs      map[string]Flair
	SocialLinks map[string][]SocialLink
	History     map[string][]Item
	Items       map[string]Item
	// community -> user -> true
	Moderators map[string]map[string]bool
	Approved   map[string]map[string]bool
	Banned     map[string]map[string]bool
	ModActions []ModAction
	// users whose history, or mod-note listing, fails with a non-NotFound error
	FailHistory  map[string]bool
	FailModNotes map[string]bool

	Bans              []BanRequest
	Removals          []RemoveCall
	Reports           []ReportCall
	Replies           []ReplyCall
	Distinguished     []DistinguishCall
	Locked            []string
	ModeratorMessages []ModeratorMessage
	Notes             []ModNote
	ToolboxNotes      []ModNote

	nextReply int
}

var _ Client = (*MockClient)(nil)

func NewMockClient(appName, community string) *MockClient {
	c := &MockClient{
		mu:            &sync.RWMutex{},
		AppName:       appName,
		CommunityName: community,
		Users:         make(map[string]User),
		Flairs:        make(map[string]Flair),
		SocialLinks:   make(map[string][]SocialLink),
		History:       make(map[string][]Item),
		Items:         make(map[string]Item),
		Moderators:    make(map[string]map[string]bool),
		Approved:      make(map[string]map[string]bool),
		Banned:        make(map[string]map[string]bool),
		FailHistory:   make(map[string]bool),
		FailModNotes:  make(map[string]bool),
	}
	c.Users[strings.ToLower(appName)] = User{Name: appName, CreatedAt: time.Now().AddDate(-1, 0, 0)}
	return c
}

func lower(s string) string {
	return strings.ToLower(s)
}

func setFlag(m map[string]map[string]bool, community, user string, val bool) {
	c := lower(community)
	if m[c] == nil {
		m[c] = make(map[string]bool)
	}
	m[c][lower(user)] = val
}

// Registers a user, plus their items (which are also made available to GetItem).
func (c *MockClient) AddUser(u User, items ...Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Users[lower(u.Name)] = u
	for _, it := range items {
		if it.Author == "" {
			it.Author = u.Name
		}
		if it.Kind == KindUnknown {
			it.Kind = KindFromID(it.ID)
		}
		c.History[lower(u.Name)] = append(c.History[lower(u.Name)], it)
		c.Items[it.ID] = it
	}
}

func (c *MockClient) DeleteUser(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Users, lower(name))
}

func (c *MockClient) SetModerator(community, user string, val bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	setFlag(c.Moderators, community, user, val)
}

func (c *MockClient) SetApproved(community, user string, val bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	setFlag(c.Approved, community, user, val)
}

func (c *MockClient) SetBanned(community, user string, val bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	setFlag(c.Banned, community, user, val)
}

func (c *MockClient) AppAccount(ctx context.Context) (*User, error) {
	if c.AppAccountErr != nil {
		return nil, c.AppAccountErr
	}
	return c.GetUser(ctx, c.AppName)
}

func (c *MockClient) Community() string {
	return c.CommunityName
}

func (c *MockClient) GetUser(ctx context.Context, name string) (*User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.Users[lower(name)]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", name, ErrNotFound)
	}
	return &u, nil
}

func (c *MockClient) GetUserFlair(ctx context.Context, community, user string) (*Flair, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.Flairs[lower(user)]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (c *MockClient) GetSocialLinks(ctx context.Context, user string) ([]SocialLink, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.Users[lower(user)]; !ok {
		return nil, fmt.Errorf("user %s: %w", user, ErrNotFound)
	}
	return c.SocialLinks[lower(user)], nil
}

func (c *MockClient) GetUserHistory(ctx context.Context, user string, opts HistoryOptions) ([]Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.FailHistory[lower(user)] {
		return nil, fmt.Errorf("history unavailable for %s", user)
	}
	if _, ok := c.Users[lower(user)]; !ok {
		return nil, fmt.Errorf("user %s: %w", user, ErrNotFound)
	}
	out := []Item{}
	for _, it := range c.History[lower(user)] {
		if it.Kind == KindPost && !opts.Posts {
			continue
		}
		if it.Kind == KindComment && !opts.Comments {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (c *MockClient) GetItem(ctx context.Context, id string) (*Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.Items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return &it, nil
}

func (c *MockClient) IsModerator(ctx context.Context, community, user string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Moderators[lower(community)][lower(user)], nil
}

func (c *MockClient) IsApprovedUser(ctx context.Context, community, user string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Approved[lower(community)][lower(user)], nil
}

func (c *MockClient) IsBanned(ctx context.Context, community, user string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Banned[lower(community)][lower(user)], nil
}

func (c *MockClient) Ban(ctx context.Context, req BanRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Bans = append(c.Bans, req)
	setFlag(c.Banned, req.Community, req.User, true)
	return nil
}

func (c *MockClient) Remove(ctx context.Context, id string, spam bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Removals = append(c.Removals, RemoveCall{ID: id, Spam: spam})
	return nil
}

func (c *MockClient) Report(ctx context.Context, id, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Reports = append(c.Reports, ReportCall{ID: id, Reason: reason})
	return nil
}

func (c *MockClient) Reply(ctx context.Context, parentID, body string) (*Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextReply++
	reply := Item{
		ID:        fmt.Sprintf("%sreply%d", CommentIDPrefix, c.nextReply),
		Kind:      KindComment,
		Author:    c.AppName,
		Community: c.CommunityName,
		Body:      body,
		CreatedAt: time.Now(),
	}
	c.Replies = append(c.Replies, ReplyCall{ParentID: parentID, Body: body, ReplyID: reply.ID})
	c.Items[reply.ID] = reply
	return &reply, nil
}

func (c *MockClient) Distinguish(ctx context.Context, id string, sticky bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Distinguished = append(c.Distinguished, DistinguishCall{ID: id, Sticky: sticky})
	return nil
}

func (c *MockClient) Lock(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Locked = append(c.Locked, id)
	return nil
}

func (c *MockClient) SendModeratorMessage(ctx context.Context, community, subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ModeratorMessages = append(c.ModeratorMessages, ModeratorMessage{Community: community, Subject: subject, Body: body})
	return nil
}

func (c *MockClient) AddModNote(ctx context.Context, note ModNote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notes = append(c.Notes, note)
	return nil
}

func (c *MockClient) AddToolboxNote(ctx context.Context, note ModNote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ToolboxNotes = append(c.ToolboxNotes, note)
	return nil
}

func (c *MockClient) ListModNotes(ctx context.Context, community, user string, limit int) ([]ModNote, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.FailModNotes[lower(user)] {
		return nil, fmt.Errorf("mod notes unavailable for %s", user)
	}
	out := []ModNote{}
	for _, n := range c.Notes {
		if strings.EqualFold(n.User, user) {
			out = append(out, n)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *MockClient) ListModActions(ctx context.Context, community, actionType, moderator string, limit int) ([]ModAction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := []ModAction{}
	for _, a := range c.ModActions {
		if actionType != "" && a.Type != actionType {
			continue
		}
		if moderator != "" && !strings.EqualFold(a.Moderator, moderator) {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Snapshot helpers, for assertions in tests running concurrent code.

func (c *MockClient) BanCalls() []BanRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]BanRequest{}, c.Bans...)
}

func (c *MockClient) ReportCalls() []ReportCall {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ReportCall{}, c.Reports...)
}

func (c *MockClient) ReplyCalls() []ReplyCall {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ReplyCall{}, c.Replies...)
}

func (c *MockClient) RemoveCalls() []RemoveCall {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]RemoveCall{}, c.Removals...)
}
