package actions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedPost struct {
	Path string
	Body map[string]string
}

func webhookServer(t *testing.T, status int) (*httptest.Server, func() []capturedPost) {
	var mu sync.Mutex
	var posts []capturedPost
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		posts = append(posts, capturedPost{Path: r.URL.Path, Body: body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedPost {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedPost{}, posts...)
	}
}

func TestWebhookNotifierSend(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	srv, posts := webhookServer(t, http.StatusNoContent)
	n := NewWebhookNotifier()

	require.NoError(n.Send(ctx, srv.URL+"/services/T0/B0/x", "slack msg"))
	require.NoError(n.Send(ctx, srv.URL+"/discord.com/api/webhooks/1/x", "discord msg"))

	got := posts()
	require.Len(got, 2)
	assert.Equal("slack msg", got[0].Body["text"])
	assert.Equal("discord msg", got[1].Body["content"])
}

func TestWebhookNotifierStatus(t *testing.T) {
	srv, _ := webhookServer(t, http.StatusBadRequest)
	err := NewWebhookNotifier().Send(context.Background(), srv.URL, "msg")
	assert.ErrorContains(t, err, "status=400")
}

func TestIsDiscordWebhook(t *testing.T) {
	assert := assert.New(t)
	assert.True(IsDiscordWebhook("https://discord.com/api/webhooks/1/abc"))
	assert.True(IsDiscordWebhook("https://discordapp.com/api/webhooks/1/abc"))
	assert.False(IsDiscordWebhook("https://hooks.slack.com/services/T0/B0/x"))
}

func TestWebhookAction(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newPipelineFixture(t)
	srv, posts := webhookServer(t, http.StatusOK)

	s := baseSettings()
	s.WebhookURL = srv.URL + "/discord.com/api/webhooks/1/x"
	s.WebhookSuppressEmbeds = true

	outcomes := f.pipeline.Run(ctx, s, "spammer", f.target.ID, enforceable())
	require.Equal([]string{ActionWebhook}, outcomeNames(outcomes))
	assert.NoError(outcomes[0].Err)

	got := posts()
	require.Len(got, 1)
	assert.Equal("/u/spammer has been flagged by Hivewatch on /r/home.\n"+
		"* Problematic communities found: freekarma4u, karmafarm\n"+
		"User was caught after making [this post](</r/home/comments/trigger>).", got[0].Body["content"])
}

func TestWebhookActionFailureIsNotAnError(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	srv, _ := webhookServer(t, http.StatusInternalServerError)

	s := baseSettings()
	s.WebhookURL = srv.URL + "/services/x"
	outcomes := f.pipeline.Run(ctx, s, "spammer", f.target.ID, enforceable())
	require.Len(t, outcomes, 1)
	assert.NoError(t, outcomes[0].Err)
}
