package orch

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

type memConn struct {
	id domain.MemberID

	mu     sync.Mutex
	frames []protocol.Frame
}

func (c *memConn) ID() domain.MemberID { return c.id }

func (c *memConn) TrySend(f core.Frame) error {
	fr, err := protocol.Decode(f)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.frames = append(c.frames, fr)
	c.mu.Unlock()
	return nil
}

func (c *memConn) Close() {}

// take returns and clears the frames received so far.
func (c *memConn) take() []protocol.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.frames
	c.frames = nil
	return out
}

func events(frames []protocol.Frame) []protocol.Event {
	out := make([]protocol.Event, len(frames))
	for i, f := range frames {
		out[i] = f.Event
	}
	return out
}

func connect(o *Orchestrator, id string) *memConn {
	c := &memConn{id: domain.MemberID(id)}
	o.Connect(c)
	c.take()
	return c
}

func TestJoinScenario(t *testing.T) {
	o := New(app.NewMemoryStore(), app.SimplePolicy{})
	h, m1, m2 := connect(o, "h"), connect(o, "m1"), connect(o, "m2")

	join := func(c *memConn, host bool) {
		t.Helper()
		if _, err := o.JoinMeeting(c.id, domain.UserID("u-"+c.id), protocol.JoinMeeting{Code: "abc-123-xyz", Name: string(c.id), IsHost: host}); err != nil {
			t.Fatalf("join %s: %v", c.id, err)
		}
	}
	join(h, true)
	join(m1, false)
	join(m2, false)

	var roster []protocol.Participant
	got := m2.take()
	if len(got) != 1 || got[0].Event != protocol.EventExistingParticipants {
		t.Fatalf("m2 frames = %v", events(got))
	}
	if err := got[0].DecodeData(&roster); err != nil {
		t.Fatal(err)
	}
	if len(roster) != 2 || roster[0].ID != "h" || !roster[0].IsHost || roster[1].ID != "m1" {
		t.Errorf("roster = %+v", roster)
	}

	hf := h.take()
	if want := []protocol.Event{protocol.EventExistingParticipants, protocol.EventUserJoined, protocol.EventUserJoined}; !equalEvents(events(hf), want) {
		t.Errorf("h events = %v, want %v", events(hf), want)
	}
	m1f := m1.take()
	if want := []protocol.Event{protocol.EventExistingParticipants, protocol.EventUserJoined}; !equalEvents(events(m1f), want) {
		t.Errorf("m1 events = %v, want %v", events(m1f), want)
	}

	o.Disconnect(m1.id)
	for _, c := range []*memConn{h, m2} {
		fs := c.take()
		if len(fs) != 1 || fs[0].Event != protocol.EventUserLeft {
			t.Fatalf("%s frames after disconnect = %v", c.id, events(fs))
		}
		var left protocol.UserLeft
		_ = fs[0].DecodeData(&left)
		if left.ID != "m1" {
			t.Errorf("user-left id = %s", left.ID)
		}
	}
	o.Disconnect(m1.id)
	if len(h.take()) != 0 {
		t.Error("second disconnect produced frames")
	}
	if st := o.Stats(); st.ActiveMembers != 2 || st.SignalSessions != 2 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestSignalValidation(t *testing.T) {
	o := New(app.NewMemoryStore(), nil)
	a, b := connect(o, "a"), connect(o, "b")

	if err := o.Signal(a.id, protocol.Envelope{To: b.id, Signal: protocol.Signal{Type: "renegotiate"}}); err == nil {
		t.Fatal("unknown signal kind accepted")
	}
	if err := o.Signal(a.id, protocol.Envelope{To: b.id, Signal: protocol.OfferSignal("v=0")}); err != nil {
		t.Fatal(err)
	}
	fs := b.take()
	if len(fs) != 1 {
		t.Fatalf("b frames = %v", events(fs))
	}
	var env protocol.Envelope
	if err := json.Unmarshal(fs[0].Data, &env); err != nil {
		t.Fatal(err)
	}
	if env.From != a.id {
		t.Errorf("from = %s", env.From)
	}
}

func TestScreenShareStatus(t *testing.T) {
	o := New(app.NewMemoryStore(), nil, app.WithSettings(domain.RoomSettings{MaxParticipants: 5, AllowScreenShare: false}))
	h, g := connect(o, "h"), connect(o, "g")
	if _, err := o.JoinMeeting(h.id, "uh", protocol.JoinMeeting{Code: "ABC123XYZ", Name: "H", IsHost: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := o.JoinMeeting(g.id, "ug", protocol.JoinMeeting{Code: "ABC123XYZ", Name: "G"}); err != nil {
		t.Fatal(err)
	}
	h.take()
	g.take()

	if err := o.ScreenShare(h.id, true); !errors.Is(err, domain.ErrScreenShareOff) {
		t.Fatalf("share with sharing disabled: err = %v", err)
	}
	if err := o.ScreenShare(h.id, false); err != nil {
		t.Fatal(err)
	}
	fs := g.take()
	if len(fs) != 1 || fs[0].Event != protocol.EventScreenShareStatus {
		t.Fatalf("g frames = %v", events(fs))
	}
	if len(h.take()) != 0 {
		t.Error("sharer received its own status")
	}
}

func TestEndMeetingNotifiesMembers(t *testing.T) {
	o := New(app.NewMemoryStore(), nil)
	h, g := connect(o, "h"), connect(o, "g")
	_, _ = o.JoinMeeting(h.id, "uh", protocol.JoinMeeting{Code: "ABC123XYZ", Name: "H", IsHost: true})
	_, _ = o.JoinMeeting(g.id, "ug", protocol.JoinMeeting{Code: "ABC123XYZ", Name: "G"})
	h.take()
	g.take()

	if err := o.EndMeeting("ABC-123-XYZ", "ug"); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("guest end: err = %v", err)
	}
	if err := o.EndMeeting("ABC-123-XYZ", "uh"); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*memConn{h, g} {
		fs := c.take()
		if len(fs) != 1 || fs[0].Event != protocol.EventMeetingEnded {
			t.Errorf("%s frames = %v", c.id, events(fs))
		}
	}
	if _, err := o.JoinMeeting(g.id, "ug", protocol.JoinMeeting{Code: "ABC123XYZ", Name: "G"}); !errors.Is(err, domain.ErrRoomEnded) {
		t.Errorf("join after end: err = %v", err)
	}
}

func equalEvents(a, b []protocol.Event) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
