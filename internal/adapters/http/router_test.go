package http

import (
	"net/http"
	"testing"

	"github.com/dkeye/Meet/internal/core"
)

func TestMeetingLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	host, guest := newClient(t, srv), newClient(t, srv)

	var created struct {
		Code        string `json:"code"`
		DisplayCode string `json:"displayCode"`
		MeetingID   string `json:"meetingId"`
	}
	if st := host.do(http.MethodPost, "/api/meetings", map[string]string{"displayName": "Ada"}, &created); st != http.StatusCreated {
		t.Fatalf("create status = %d", st)
	}
	if len(created.Code) != 9 || created.MeetingID == "" {
		t.Fatalf("create response = %+v", created)
	}

	var info core.RoomInfo
	if st := guest.do(http.MethodGet, "/api/meetings/"+created.DisplayCode, nil, &info); st != http.StatusOK {
		t.Fatalf("get status = %d", st)
	}
	if info.HostName != "Ada" || !info.Active || info.Settings.MaxParticipants != 50 {
		t.Errorf("info = %+v", info)
	}
	if st := guest.do(http.MethodPost, "/api/meetings/"+created.Code+"/join", nil, nil); st != http.StatusOK {
		t.Errorf("join status = %d", st)
	}
	if st := guest.do(http.MethodPost, "/api/meetings/"+created.Code+"/end", nil, nil); st != http.StatusForbidden {
		t.Errorf("guest end status = %d, want 403", st)
	}
	if st := host.do(http.MethodPost, "/api/meetings/"+created.Code+"/end", nil, nil); st != http.StatusOK {
		t.Errorf("host end status = %d", st)
	}
	if st := guest.do(http.MethodPost, "/api/meetings/"+created.Code+"/join", nil, nil); st != http.StatusGone {
		t.Errorf("join ended meeting status = %d, want 410", st)
	}
}

func TestMeetingErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newClient(t, srv)

	testCases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown code", http.MethodGet, "/api/meetings/AAA-BBB-CCC", nil, http.StatusNotFound},
		{"malformed code", http.MethodGet, "/api/meetings/nope", nil, http.StatusBadRequest},
		{"join unknown", http.MethodPost, "/api/meetings/AAABBBCCC/join", nil, http.StatusNotFound},
		{"create without name", http.MethodPost, "/api/meetings", map[string]string{}, http.StatusBadRequest},
		{"leave without member", http.MethodPost, "/api/meetings/AAABBBCCC/leave", map[string]string{}, http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if st := c.do(tc.method, tc.path, tc.body, nil); st != tc.want {
				t.Errorf("status = %d, want %d", st, tc.want)
			}
		})
	}

	var created struct{ Code string }
	c.do(http.MethodPost, "/api/meetings", map[string]string{"displayName": "Ada"}, &created)
	if st := c.do(http.MethodPost, "/api/meetings/"+created.Code+"/leave", map[string]string{"memberId": "ghost"}, nil); st != http.StatusConflict {
		t.Errorf("leave non-member status = %d, want 409", st)
	}
}

func TestHealthAndStats(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newClient(t, srv)

	var health struct{ Status string }
	if st := c.do(http.MethodGet, "/api/health", nil, &health); st != http.StatusOK || health.Status != "OK" {
		t.Errorf("health = %d %+v", st, health)
	}
	c.do(http.MethodPost, "/api/meetings", map[string]string{"displayName": "Ada"}, nil)
	c.dial()

	var stats core.Stats
	if st := c.do(http.MethodGet, "/api/stats", nil, &stats); st != http.StatusOK {
		t.Fatalf("stats status = %d", st)
	}
	if stats.Rooms != 1 || stats.ActiveRooms != 1 || stats.SignalSessions != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
