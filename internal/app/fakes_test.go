package app

import (
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

var _ core.SignalConnection = (*fakeConn)(nil)

// fakeConn records frames instead of writing them to a socket.
type fakeConn struct {
	id       domain.MemberID
	capacity int

	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func newFakeConn(id domain.MemberID) *fakeConn {
	return &fakeConn{id: id, capacity: 1 << 20}
}

func (c *fakeConn) ID() domain.MemberID { return c.id }

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if len(c.frames) >= c.capacity {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) Frames() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Frame(nil), c.frames...)
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type notification struct {
	kind       string
	code       domain.MeetingCode
	subject    domain.MemberID
	recipients []domain.MemberID
}

// recordingNotifier keeps every registry notification in call order.
type recordingNotifier struct {
	mu  sync.Mutex
	log []notification
}

func (n *recordingNotifier) add(x notification) {
	n.mu.Lock()
	n.log = append(n.log, x)
	n.mu.Unlock()
}

func (n *recordingNotifier) Joined(code domain.MeetingCode, joiner core.MemberDTO, existing []core.MemberDTO) {
	ids := make([]domain.MemberID, len(existing))
	for i, m := range existing {
		ids[i] = m.ID
	}
	n.add(notification{kind: "joined", code: code, subject: joiner.ID, recipients: ids})
}

func (n *recordingNotifier) Left(code domain.MeetingCode, id domain.MemberID, remaining []domain.MemberID) {
	n.add(notification{kind: "left", code: code, subject: id, recipients: remaining})
}

func (n *recordingNotifier) Ended(code domain.MeetingCode, _ string, _ time.Time, members []domain.MemberID) {
	n.add(notification{kind: "ended", code: code, recipients: members})
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, x := range n.log {
		if x.kind == kind {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) last() notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.log[len(n.log)-1]
}
