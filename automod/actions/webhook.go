package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
)

type SlackWebhookBody struct {
	Text string `json:"text"`
}

type DiscordWebhookBody struct {
	Content string `json:"content"`
}

// Posts alerts to Discord or Slack "incoming webhook" URLs. There are no retries: alerts
// are best-effort.
type WebhookNotifier struct {
	Client *http.Client
}

func NewWebhookNotifier() *WebhookNotifier {
	return &WebhookNotifier{Client: cleanhttp.DefaultPooledClient()}
}

func IsDiscordWebhook(url string) bool {
	return strings.Contains(url, "discord.com") || strings.Contains(url, "discordapp.com")
}

func (n *WebhookNotifier) Send(ctx context.Context, url, msg string) error {
	var payload any
	if IsDiscordWebhook(url) {
		payload = DiscordWebhookBody{Content: msg}
	} else {
		payload = SlackWebhookBody{Text: msg}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	// discord answers 204, slack answers 200 "ok"
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}
