// HTTP/JSON client for a platform gateway: a thin service in front of the content platform
// which exposes the calls the engine needs as plain REST endpoints.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/carlmjohnson/versioninfo"
	"github.com/google/go-querystring/query"
	"golang.org/x/time/rate"

	"github.com/hivewatch/hivewatch/automod/platform"
	"github.com/hivewatch/hivewatch/util"
)

type Config struct {
	Host      string
	Token     string
	Community string
	// requests per second; zero disables rate limiting
	RateLimit float64
	// optional; defaults to util.RobustHTTPClient
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	Client    *http.Client
	Host      string
	Token     string
	UserAgent string
	Limiter   *rate.Limiter

	community string
}

var _ platform.Client = (*Client)(nil)

func NewClient(config Config) *Client {
	hc := config.HTTPClient
	if hc == nil {
		hc = util.RobustHTTPClient(config.Logger)
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if config.RateLimit > 0 {
		lim = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}
	return &Client{
		Client:    hc,
		Host:      strings.TrimSuffix(config.Host, "/"),
		Token:     config.Token,
		UserAgent: "hivewatch/" + versioninfo.Short(),
		Limiter:   lim,
		community: config.Community,
	}
}

type Error struct {
	StatusCode int
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway error %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway error %d: %s", e.StatusCode, e.Message)
}

// 404 responses also match platform.ErrNotFound
func (e *Error) Is(target error) bool {
	return target == platform.ErrNotFound && e.StatusCode == http.StatusNotFound
}

func segment(s string) string {
	return url.PathEscape(s)
}

// Sends a request and decodes a JSON response into out (when non-nil). params is encoded
// with go-querystring struct tags.
func (c *Client) do(ctx context.Context, method, path string, params any, body any, out any) error {
	if err := c.Limiter.Wait(ctx); err != nil {
		return err
	}

	uri := c.Host + path
	if params != nil {
		vals, err := query.Values(params)
		if err != nil {
			return fmt.Errorf("encoding query: %w", err)
		}
		if len(vals) > 0 {
			uri += "?" + vals.Encode()
		}
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ge := &Error{}
		_ = json.NewDecoder(resp.Body).Decode(ge)
		ge.StatusCode = resp.StatusCode
		return ge
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, platform.ErrNotFound)
}
