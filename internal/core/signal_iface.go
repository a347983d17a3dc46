package core

import (
	"errors"

	"github.com/dkeye/Meet/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Frame is one encoded signaling message.
type Frame []byte

// SignalConnection abstracts a server-side signaling transport endpoint.
// Owned by the adapter; the adapter must Close() it.
// TrySend never blocks: it enqueues or fails with ErrBackpressure or
// ErrConnClosed. Close must not call back into the application.
type SignalConnection interface {
	ID() domain.MemberID
	TrySend(Frame) error
	Close()
}
