// Package transport carries signaling between a call participant and the server.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/dkeye/Chorus/internal/core"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrStatus = errors.New("unexpected response status")

// Client talks to the /api/calls endpoints. It keeps a cookie jar so the
// server can bind its session to the joined user.
type Client struct {
	base *url.URL
	http *http.Client
}

func NewClient(serverURL string, timeout time.Duration) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout, Jar: jar},
	}, nil
}

func (c *Client) Join(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	return c.action(ctx, "join", room, user, nil)
}

func (c *Client) Leave(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	return c.action(ctx, "leave", room, user, nil)
}

func (c *Client) Poll(ctx context.Context, room domain.RoomID, user domain.UserID) ([]core.SignalMessage, error) {
	var resp struct {
		Messages []core.SignalMessage `json:"messages"`
	}
	if err := c.action(ctx, "poll", room, user, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) Send(ctx context.Context, msg core.SignalMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/calls", nil), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) Members(ctx context.Context, room domain.RoomID) ([]domain.UserID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/calls/"+url.PathEscape(string(room))+"/members", nil), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Members []domain.UserID `json:"members"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Members, nil
}

// StreamURL is the websocket address of the push channel for (room, user).
func (c *Client) StreamURL(room domain.RoomID, user domain.UserID) string {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/api/calls/stream"
	u.RawQuery = url.Values{"roomId": {string(room)}, "userId": {string(user)}}.Encode()
	return u.String()
}

// Jar exposes the session cookies for the websocket dialer.
func (c *Client) Jar() http.CookieJar { return c.http.Jar }

func (c *Client) action(ctx context.Context, action string, room domain.RoomID, user domain.UserID, out any) error {
	q := url.Values{"action": {action}, "roomId": {string(room)}, "userId": {string(user)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/calls", q), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path += path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var body struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &body)
		log.Debug().Str("module", "transport").Str("url", req.URL.Path).Int("status", resp.StatusCode).Str("error", body.Error).Msg("request failed")
		return fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, body.Error)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
