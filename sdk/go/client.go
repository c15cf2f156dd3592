package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"rankview/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the rankview HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// Health probes /healthz.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, &hs)
	return hs, err
}

// Leaderboard returns the current leaderboard snapshot.
func (c *Client) Leaderboard(ctx context.Context) (Leaderboard, error) {
	var lb Leaderboard
	err := c.do(ctx, http.MethodGet, "/leaderboard", nil, nil, &lb)
	return lb, err
}

// Refresh starts a refresh without waiting for it.
func (c *Client) Refresh(ctx context.Context) (Task, error) {
	var t Task
	err := c.do(ctx, http.MethodPost, "/leaderboard/refresh", nil, nil, &t)
	return t, err
}

// RefreshWait refreshes and returns the settled snapshot.
func (c *Client) RefreshWait(ctx context.Context) (Leaderboard, error) {
	var lb Leaderboard
	err := c.do(ctx, http.MethodPost, "/leaderboard/refresh", waitQuery(), nil, &lb)
	return lb, err
}

// ChangeTimeFrame switches the leaderboard timeframe and returns the settled snapshot.
func (c *Client) ChangeTimeFrame(ctx context.Context, tf core.TimeFrame) (Leaderboard, error) {
	var lb Leaderboard
	err := c.do(ctx, http.MethodPut, "/leaderboard/timeframe/"+url.PathEscape(string(tf)), waitQuery(), nil, &lb)
	return lb, err
}

// AcknowledgeLeaderboardError clears the leaderboard error slot.
func (c *Client) AcknowledgeLeaderboardError(ctx context.Context) (Leaderboard, error) {
	var lb Leaderboard
	err := c.do(ctx, http.MethodDelete, "/leaderboard/error", nil, nil, &lb)
	return lb, err
}

// RecordScore adds delta to a user's score and returns the refreshed leaderboard.
func (c *Client) RecordScore(ctx context.Context, userID, name string, delta int64) (Leaderboard, error) {
	if strings.TrimSpace(userID) == "" {
		return Leaderboard{}, ErrEmptyUserID
	}
	body := map[string]any{"user_id": userID, "name": name, "delta": delta}
	var lb Leaderboard
	err := c.do(ctx, http.MethodPost, "/scores", waitQuery(), body, &lb)
	return lb, err
}

// Profile returns the current profile snapshot.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodGet, "/profile", nil, nil, &p)
	return p, err
}

// UpdateProfile edits the signed-in user's profile. A nil bio clears it.
func (c *Client) UpdateProfile(ctx context.Context, fullName string, bio *string) (Profile, error) {
	body := map[string]any{"full_name": fullName, "bio": bio}
	var p Profile
	err := c.do(ctx, http.MethodPatch, "/profile", waitQuery(), body, &p)
	return p, err
}

// AcknowledgeProfileError clears the profile error slot.
func (c *Client) AcknowledgeProfileError(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodDelete, "/profile/error", nil, nil, &p)
	return p, err
}

// Login opens a session for userID.
func (c *Client) Login(ctx context.Context, userID string) (Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return Profile{}, ErrEmptyUserID
	}
	var p Profile
	err := c.do(ctx, http.MethodPost, "/session/login", waitQuery(), map[string]any{"user_id": userID}, &p)
	return p, err
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodPost, "/session/logout", waitQuery(), nil, &p)
	return p, err
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values,
// optionally limited to the given types. The returned channel closes when ctx
// is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, types ...core.EventType) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		target += "?types=" + url.QueryEscape(strings.Join(names, ","))
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	go func() {
		defer close(out)
		defer close(stop)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, target any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func waitQuery() url.Values { return url.Values{"wait": []string{"true"}} }

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
