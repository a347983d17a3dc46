package peer

import (
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

type EventKind string

const (
	EventPeerJoined       EventKind = "peer-joined"
	EventPeerConnected    EventKind = "peer-connected"
	EventPeerLeft         EventKind = "peer-left"
	EventPeerFailed       EventKind = "peer-failed"
	EventMediaState       EventKind = "media-state"
	EventScreenShare      EventKind = "screen-share"
	EventAppMessage       EventKind = "app-message"
	EventMediaDegraded    EventKind = "media-degraded"
	EventMeetingEnded     EventKind = "meeting-ended"
	EventSignalingError   EventKind = "signaling-error"
	EventSignalingStopped EventKind = "signaling-stopped"
)

// Event is a notification for the session's consumer. Only the fields that
// apply to Kind are set.
type Event struct {
	Kind    EventKind
	Peer    domain.MemberID
	Name    string
	Track   protocol.TrackKind
	Enabled bool
	Payload []byte
	EndedBy string
	At      time.Time
	Err     error
}

func (s *Session) emitLocked(ev Event) {
	if s.closed {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case s.events <- ev:
	default:
		s.log.Warn().Str("event", string(ev.Kind)).Str("peer", string(ev.Peer)).Msg("event dropped, consumer lagging")
	}
}
