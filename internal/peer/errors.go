package peer

import (
	"errors"
	"fmt"

	"github.com/dkeye/Meet/internal/domain"
)

var (
	ErrMediaAccess        = errors.New("media capture unavailable")
	ErrUnknownPeer        = errors.New("unknown peer")
	ErrNegotiationTimeout = errors.New("negotiation timed out")
	ErrTransportFailure   = errors.New("peer transport failed")
	ErrDuplicateOffer     = errors.New("duplicate offer")
	ErrSessionClosed      = errors.New("session closed")
)

// PeerError ties a negotiation or transport error to one remote member.
type PeerError struct {
	Peer domain.MemberID
	Err  error
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("peer %s: %v", e.Peer, e.Err)
}

func (e *PeerError) Unwrap() error { return e.Err }

func peerErr(id domain.MemberID, err error) *PeerError {
	return &PeerError{Peer: id, Err: err}
}
