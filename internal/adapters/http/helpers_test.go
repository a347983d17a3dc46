package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Mode:             "test",
		Secret:           "test-secret",
		ReadLimit:        1 << 16,
		PingPeriod:       time.Minute,
		SendBuffer:       64,
		JoinRateLimit:    100,
		JoinRateInterval: time.Second,
	}
	o := orch.New(app.NewMemoryStore(), app.SimplePolicy{})
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(SetupRouter(ctx, cfg, o))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, o
}

// client is one browser-like participant: an http client with its own
// cookie jar, so it keeps a stable client token.
type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, srv *httptest.Server) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &client{t: t, base: srv.URL, http: &http.Client{Jar: jar, Timeout: 5 * time.Second}}
}

func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		c.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type wsPeer struct {
	t    *testing.T
	conn *websocket.Conn
	id   domain.MemberID
}

func (c *client) dial() *wsPeer {
	c.t.Helper()
	url := "ws" + strings.TrimPrefix(c.base, "http") + "/api/ws/signal"
	d := websocket.Dialer{Jar: c.http.Jar, HandshakeTimeout: 5 * time.Second}
	ws, _, err := d.Dial(url, nil)
	if err != nil {
		c.t.Fatalf("dial: %v", err)
	}
	p := &wsPeer{t: c.t, conn: ws}
	var w protocol.Welcome
	p.expect(protocol.EventWelcome, &w)
	p.id = w.ID
	c.t.Cleanup(func() { _ = ws.Close() })
	return p
}

func (p *wsPeer) send(ev protocol.Event, v any) {
	p.t.Helper()
	b, err := protocol.Encode(ev, v)
	if err != nil {
		p.t.Fatal(err)
	}
	if err := p.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		p.t.Fatal(err)
	}
}

func (p *wsPeer) read() protocol.Frame {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		p.t.Fatalf("read: %v", err)
	}
	f, err := protocol.Decode(data)
	if err != nil {
		p.t.Fatal(err)
	}
	return f
}

// expect reads the next frame, checks its event and decodes its data.
func (p *wsPeer) expect(ev protocol.Event, out any) {
	p.t.Helper()
	f := p.read()
	if f.Event != ev {
		p.t.Fatalf("got %s (%s), want %s", f.Event, f.Data, ev)
	}
	if out != nil {
		if err := f.DecodeData(out); err != nil {
			p.t.Fatal(err)
		}
	}
}

func (p *wsPeer) join(code string, name string, host bool) {
	p.t.Helper()
	p.send(protocol.EventJoinMeeting, protocol.JoinMeeting{Code: code, Name: name, IsHost: host})
}
