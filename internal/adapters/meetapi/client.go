// Package meetapi is a client for the meeting HTTP API.
package meetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// Client shares its cookie jar with the signaling dial, so the server sees
// one client token for both.
type Client struct {
	base string
	http *http.Client
}

func New(base string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Jar: jar, Timeout: 10 * time.Second},
	}, nil
}

func (c *Client) Jar() http.CookieJar { return c.http.Jar }

// SignalURL is the WebSocket endpoint on the same host.
func (c *Client) SignalURL() (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws/signal"
	return u.String(), nil
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Unwrap maps the status back to the registry sentinel where one applies.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrRoomNotFound
	case http.StatusGone:
		return domain.ErrRoomEnded
	case http.StatusForbidden:
		return domain.ErrNotHost
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type Created struct {
	Code        domain.MeetingCode `json:"code"`
	DisplayCode string             `json:"displayCode"`
	MeetingID   domain.RoomID      `json:"meetingId"`
}

// Create makes a meeting hosted by this client's token.
func (c *Client) Create(ctx context.Context, displayName string) (Created, error) {
	var out Created
	err := c.do(ctx, http.MethodPost, "/api/meetings", map[string]string{"displayName": displayName}, &out)
	return out, err
}

func (c *Client) Meeting(ctx context.Context, code string) (core.RoomInfo, error) {
	var out core.RoomInfo
	err := c.do(ctx, http.MethodGet, "/api/meetings/"+url.PathEscape(code), nil, &out)
	return out, err
}

func (c *Client) Members(ctx context.Context, code string) ([]core.MemberDTO, error) {
	var out struct {
		Members []core.MemberDTO `json:"members"`
	}
	err := c.do(ctx, http.MethodGet, "/api/meetings/"+url.PathEscape(code)+"/members", nil, &out)
	return out.Members, err
}

// Admit checks that the meeting accepts joins.
func (c *Client) Admit(ctx context.Context, code string) (core.RoomInfo, error) {
	var out core.RoomInfo
	err := c.do(ctx, http.MethodPost, "/api/meetings/"+url.PathEscape(code)+"/join", nil, &out)
	return out, err
}

func (c *Client) End(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodPost, "/api/meetings/"+url.PathEscape(code)+"/end", nil, nil)
}

func (c *Client) Stats(ctx context.Context) (core.Stats, error) {
	var out core.Stats
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, &out)
	return out, err
}
