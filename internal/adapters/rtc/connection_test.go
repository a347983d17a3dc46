package rtc

import (
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/media"
	"github.com/pion/webrtc/v4"
)

func loopbackFactory() *Factory {
	se := webrtc.SettingEngine{}
	se.SetIncludeLoopbackCandidate(true)
	return &Factory{API: webrtc.NewAPI(webrtc.WithSettingEngine(se))}
}

func TestConnectionBeforeNegotiation(t *testing.T) {
	f := loopbackFactory()
	tr, err := f.NewPeerTransport("remote")
	if err != nil {
		t.Fatalf("NewPeerTransport: %v", err)
	}
	defer tr.Close()

	if tr.HasRemoteDescription() {
		t.Fatal("fresh connection has a remote description")
	}
	if tr.DataOpen() {
		t.Fatal("data channel open before negotiation")
	}
	if err := tr.SendData([]byte("x")); !errors.Is(err, ErrDataChannelClosed) {
		t.Fatalf("SendData = %v", err)
	}
	cam, err := media.NewLocalTrack(media.CodecVP8, "video", "s")
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.ReplaceVideoTrack(cam.Track()); !errors.Is(err, ErrNoVideoSender) {
		t.Fatalf("ReplaceVideoTrack without sender = %v", err)
	}
	if err := tr.AddLocalTrack(cam.Track()); err != nil {
		t.Fatalf("AddLocalTrack: %v", err)
	}
	screen, _ := media.NewLocalTrack(media.CodecVP8, "screen", "s2")
	if err := tr.ReplaceVideoTrack(screen.Track()); err != nil {
		t.Fatalf("ReplaceVideoTrack: %v", err)
	}
}

func TestLoopbackPairOpensDataChannel(t *testing.T) {
	f := loopbackFactory()
	a, err := f.NewPeerTransport("b")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := f.NewPeerTransport("a")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	candA := make(chan webrtc.ICECandidateInit, 64)
	candB := make(chan webrtc.ICECandidateInit, 64)
	a.OnICECandidate(func(c webrtc.ICECandidateInit) { candA <- c })
	b.OnICECandidate(func(c webrtc.ICECandidateInit) { candB <- c })

	openA, openB := make(chan struct{}), make(chan struct{})
	a.OnDataOpen(func() { close(openA) })
	b.OnDataOpen(func() { close(openB) })
	got := make(chan []byte, 1)
	b.OnData(func(msg []byte) { got <- msg })

	offer, err := a.CreateOffer()
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	answer, err := b.ApplyOffer(offer)
	if err != nil {
		t.Fatalf("ApplyOffer: %v", err)
	}
	if err := a.ApplyAnswer(answer); err != nil {
		t.Fatalf("ApplyAnswer: %v", err)
	}
	if !a.HasRemoteDescription() || !b.HasRemoteDescription() {
		t.Fatal("remote descriptions not set")
	}

	done := make(chan struct{})
	defer close(done)
	pipe := func(in <-chan webrtc.ICECandidateInit, apply func(webrtc.ICECandidateInit) error) {
		for {
			select {
			case c := <-in:
				_ = apply(c)
			case <-done:
				return
			}
		}
	}
	go pipe(candA, b.AddICECandidate)
	go pipe(candB, a.AddICECandidate)

	timeout := time.After(10 * time.Second)
	for _, ch := range []chan struct{}{openA, openB} {
		select {
		case <-ch:
		case <-timeout:
			t.Skip("no ICE path between loopback peers")
		}
	}

	if err := a.SendData([]byte("hello")); err != nil {
		t.Fatalf("SendData: %v", err)
	}
	select {
	case msg := <-got:
		if string(msg) != "hello" {
			t.Fatalf("received %q", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("data not delivered")
	}
}
