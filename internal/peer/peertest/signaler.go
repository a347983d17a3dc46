package peertest

import (
	"sync"

	"github.com/dkeye/Meet/internal/protocol"
)

// Sent is one frame written by the session under test.
type Sent struct {
	Event protocol.Event
	Data  any
}

// Signaler is an in-memory signaling connection. Tests push server frames
// with Deliver and inspect what the session sent with Sent.
type Signaler struct {
	frames chan protocol.Frame

	mu     sync.Mutex
	sent   []Sent
	closed bool
	onSend func(Sent)
}

func NewSignaler() *Signaler {
	return &Signaler{frames: make(chan protocol.Frame, 256)}
}

func (s *Signaler) Send(ev protocol.Event, v any) error {
	x := Sent{Event: ev, Data: v}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.sent = append(s.sent, x)
	fn := s.onSend
	s.mu.Unlock()
	if fn != nil {
		fn(x)
	}
	return nil
}

// OnSend installs a hook that sees every frame right after it is sent.
func (s *Signaler) OnSend(fn func(Sent)) {
	s.mu.Lock()
	s.onSend = fn
	s.mu.Unlock()
}

func (s *Signaler) Frames() <-chan protocol.Frame { return s.frames }

func (s *Signaler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return nil
}

// Deliver queues a server frame for the session. Frames delivered after
// Close are discarded.
func (s *Signaler) Deliver(ev protocol.Event, v any) {
	b, err := protocol.Encode(ev, v)
	if err != nil {
		panic(err)
	}
	f, err := protocol.Decode(b)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.frames <- f
	}
}

// Sent returns a copy of every frame sent so far.
func (s *Signaler) Sent() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sent(nil), s.sent...)
}

// SentEvents returns the frames of one event kind.
func (s *Signaler) SentEvents(ev protocol.Event) []Sent {
	var out []Sent
	for _, x := range s.Sent() {
		if x.Event == ev {
			out = append(out, x)
		}
	}
	return out
}
