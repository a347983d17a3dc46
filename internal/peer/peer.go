package peer

import (
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/media"
	"github.com/pion/webrtc/v4"
)

type PeerState int

const (
	StateNew PeerState = iota
	StateOfferSent
	StateAnswering
	StateConnected
	StateClosed
)

func (s PeerState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateOfferSent:
		return "offer-sent"
	case StateAnswering:
		return "answering"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Peer is the roster entry for one remote member. The entry can exist
// before its transport, so early candidates have somewhere to wait.
type Peer struct {
	ID     domain.MemberID
	Name   string
	IsHost bool

	seq       uint64
	state     PeerState
	linked    bool
	transport core.PeerTransport
	pending   []webrtc.ICECandidateInit
	timer     *time.Timer
	grace     *time.Timer

	video   bool
	audio   bool
	sharing bool

	sinks []*media.Sink
}

func newPeer(id domain.MemberID, name string, host bool, seq uint64) *Peer {
	return &Peer{ID: id, Name: name, IsHost: host, seq: seq, video: true, audio: true}
}

func (p *Peer) stopTimers() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.grace != nil {
		p.grace.Stop()
		p.grace = nil
	}
}

// PeerInfo is a roster snapshot entry.
type PeerInfo struct {
	ID           domain.MemberID
	Name         string
	IsHost       bool
	State        PeerState
	Linked       bool
	VideoEnabled bool
	AudioEnabled bool
	Sharing      bool
	Sinks        []media.SinkStats
}

func (p *Peer) info() PeerInfo {
	pi := PeerInfo{
		ID:           p.ID,
		Name:         p.Name,
		IsHost:       p.IsHost,
		State:        p.state,
		Linked:       p.linked,
		VideoEnabled: p.video,
		AudioEnabled: p.audio,
		Sharing:      p.sharing,
	}
	for _, sk := range p.sinks {
		pi.Sinks = append(pi.Sinks, sk.Stats())
	}
	return pi
}
