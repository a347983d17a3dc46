package app

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

type staticDirectory map[domain.MeetingCode][]domain.MemberID

func (d staticDirectory) ActiveMemberIDs(code domain.MeetingCode) []domain.MemberID {
	return d[code]
}

func decodeEnvelope(t *testing.T, b []byte) protocol.Envelope {
	t.Helper()
	f, err := protocol.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if f.Event != protocol.EventWebRTCSignal {
		t.Fatalf("event = %s, want webrtc-signal", f.Event)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(f.Data, &env); err != nil {
		t.Fatal(err)
	}
	return env
}

func TestRouteStampsSender(t *testing.T) {
	relay := NewRelay(nil)
	a, b := newFakeConn("a"), newFakeConn("b")
	relay.Register(a)
	relay.Register(b)

	relay.Route("a", protocol.Envelope{To: "b", From: "forged", Signal: protocol.OfferSignal("v=0")})

	frames := b.Frames()
	if len(frames) != 1 {
		t.Fatalf("b received %d frames, want 1", len(frames))
	}
	env := decodeEnvelope(t, frames[0])
	if env.From != "a" {
		t.Errorf("from = %q, want a", env.From)
	}
	if env.Signal.Type != protocol.SignalOffer || env.Signal.SDP != "v=0" {
		t.Errorf("signal = %+v", env.Signal)
	}
	if len(a.Frames()) != 0 {
		t.Errorf("sender received frames")
	}
}

func TestRouteUnknownTargetIsDropped(t *testing.T) {
	relay := NewRelay(nil)
	a := newFakeConn("a")
	relay.Register(a)

	relay.Route("a", protocol.Envelope{To: "ghost", Signal: protocol.AnswerSignal("v=0")})
	if len(a.Frames()) != 0 {
		t.Errorf("sender was notified about an unknown target")
	}
}

func TestRoutePreservesPerRecipientOrder(t *testing.T) {
	relay := NewRelay(nil)
	a, b := newFakeConn("a"), newFakeConn("b")
	relay.Register(a)
	relay.Register(b)

	relay.Route("a", protocol.Envelope{To: "b", Signal: protocol.OfferSignal("offer")})
	for i := 0; i < 5; i++ {
		relay.Route("a", protocol.Envelope{To: "b", Signal: protocol.Signal{Type: protocol.SignalICECandidate}})
	}
	frames := b.Frames()
	if len(frames) != 6 {
		t.Fatalf("frames = %d, want 6", len(frames))
	}
	if env := decodeEnvelope(t, frames[0]); env.Signal.Type != protocol.SignalOffer {
		t.Errorf("first frame = %s, want offer", env.Signal.Type)
	}
}

func TestBroadcastToRoomExcludesSender(t *testing.T) {
	relay := NewRelay(nil)
	relay.SetDirectory(staticDirectory{testCode: {"a", "b", "c"}})
	conns := map[domain.MemberID]*fakeConn{}
	for _, id := range []domain.MemberID{"a", "b", "c", "outsider"} {
		conns[id] = newFakeConn(id)
		relay.Register(conns[id])
	}

	relay.BroadcastToRoom(testCode, []byte(`{"event":"pong"}`), "a")

	want := map[domain.MemberID]int{"a": 0, "b": 1, "c": 1, "outsider": 0}
	for id, n := range want {
		if got := len(conns[id].Frames()); got != n {
			t.Errorf("%s received %d frames, want %d", id, got, n)
		}
	}
}

func TestBackpressurePolicy(t *testing.T) {
	testCases := []struct {
		name   string
		policy Policy
		closed bool
	}{
		{"kick", SimplePolicy{}, true},
		{"drop", TolerantPolicy{}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			relay := NewRelay(tc.policy)
			slow := newFakeConn("slow")
			slow.capacity = 1
			relay.Register(slow)

			if !relay.Send("slow", []byte("1")) {
				t.Fatal("first send failed")
			}
			if relay.Send("slow", []byte("2")) {
				t.Fatal("send into a full queue succeeded")
			}
			if slow.Closed() != tc.closed {
				t.Errorf("closed = %v, want %v", slow.Closed(), tc.closed)
			}
		})
	}
}

func TestUnregister(t *testing.T) {
	relay := NewRelay(nil)
	relay.Register(newFakeConn("a"))
	if relay.Count() != 1 {
		t.Fatalf("Count = %d", relay.Count())
	}
	relay.Unregister("a")
	if relay.Send("a", []byte("x")) {
		t.Error("send to unregistered connection succeeded")
	}
	if relay.Count() != 0 {
		t.Errorf("Count = %d after unregister", relay.Count())
	}
}
