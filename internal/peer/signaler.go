package peer

import "github.com/dkeye/Meet/internal/protocol"

// Signaler is the session's link to the signaling server. Frames is closed
// when the link goes away.
type Signaler interface {
	Send(ev protocol.Event, v any) error
	Frames() <-chan protocol.Frame
	Close() error
}
