package peer

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/media"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/pion/webrtc/v4"
)

// The member already in the meeting offers to the one who joined after it,
// so each pair negotiates exactly once.

func (s *Session) current(p *Peer) bool {
	return s.peers[p.ID] == p && p.state != StateClosed
}

func (s *Session) addPeerLocked(m protocol.Participant) *Peer {
	s.seq++
	p := newPeer(m.ID, m.Name, m.IsHost, s.seq)
	s.peers[m.ID] = p
	return p
}

func (s *Session) closePeerLocked(p *Peer) {
	p.state = StateClosed
	p.stopTimers()
	p.pending = nil
	if s.peers[p.ID] == p {
		delete(s.peers, p.ID)
	}
	if t := p.transport; t != nil {
		s.later(func() { _ = t.Close() })
	}
}

func (s *Session) failPeerLocked(p *Peer, err error) *PeerError {
	perr := peerErr(p.ID, err)
	s.log.Warn().Err(err).Str("peer", string(p.ID)).Str("state", p.state.String()).Msg("peer failed")
	s.closePeerLocked(p)
	s.emitLocked(Event{Kind: EventPeerFailed, Peer: p.ID, Name: p.Name, Err: perr})
	return perr
}

func (s *Session) signalLocked(to domain.MemberID, sig protocol.Signal) error {
	return s.sig.Send(protocol.EventWebRTCSignal, protocol.Envelope{To: to, Signal: sig})
}

// outboundLocked lists the tracks a new PeerConnection publishes. While
// sharing, the screen track stands in for the camera.
func (s *Session) outboundLocked() []webrtc.TrackLocal {
	if s.stream == nil {
		return nil
	}
	video := s.stream.Video
	if s.screen != nil {
		video = s.screen.Track()
	}
	return []webrtc.TrackLocal{video.Track(), s.stream.Audio.Track()}
}

func (s *Session) transportLocked(p *Peer) (core.PeerTransport, error) {
	if p.transport != nil {
		return p.transport, nil
	}
	t, err := s.cfg.Transports.NewPeerTransport(p.ID)
	if err != nil {
		return nil, fmt.Errorf("new transport: %w", err)
	}
	for _, tr := range s.outboundLocked() {
		if err := t.AddLocalTrack(tr); err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("add %s track: %w", tr.Kind(), err)
		}
	}

	t.OnICECandidate(func(c webrtc.ICECandidateInit) {
		s.mu.Lock()
		defer s.unlock()
		if !s.current(p) {
			return
		}
		if err := s.signalLocked(p.ID, protocol.CandidateSignal(c)); err != nil {
			s.log.Debug().Err(err).Str("peer", string(p.ID)).Msg("candidate not sent")
		}
	})
	t.OnStateChange(func(st webrtc.PeerConnectionState) { s.onTransportState(p, st) })
	t.OnTrack(func(ctx context.Context, tr *webrtc.TrackRemote) { s.onRemoteTrack(ctx, p, tr) })
	t.OnDataOpen(func() { s.onDataOpen(p) })
	t.OnData(func(b []byte) { s.onData(p, b) })

	p.transport = t
	return t, nil
}

func (s *Session) armTimerLocked(p *Peer) {
	if p.timer != nil {
		return
	}
	var tm *time.Timer
	tm = time.AfterFunc(s.cfg.NegotiationTimeout, func() {
		s.mu.Lock()
		defer s.unlock()
		if !s.current(p) || p.timer != tm || p.linked {
			return
		}
		s.failPeerLocked(p, ErrNegotiationTimeout)
	})
	p.timer = tm
}

func (s *Session) flushCandidatesLocked(p *Peer) {
	for _, c := range p.pending {
		if err := p.transport.AddICECandidate(c); err != nil {
			s.log.Warn().Err(err).Str("peer", string(p.ID)).Msg("buffered candidate rejected")
		}
	}
	p.pending = nil
}

func (s *Session) onMemberJoined(m protocol.Participant) {
	s.mu.Lock()
	defer s.unlock()
	if !s.inMeeting || m.ID == s.self {
		return
	}
	if old := s.peers[m.ID]; old != nil {
		s.log.Info().Str("peer", string(m.ID)).Msg("replacing stale peer")
		s.closePeerLocked(old)
	}
	p := s.addPeerLocked(m)
	s.emitLocked(Event{Kind: EventPeerJoined, Peer: p.ID, Name: p.Name})

	t, err := s.transportLocked(p)
	if err != nil {
		s.failPeerLocked(p, err)
		return
	}
	offer, err := t.CreateOffer()
	if err != nil {
		s.failPeerLocked(p, fmt.Errorf("create offer: %w", err))
		return
	}
	p.state = StateOfferSent
	s.armTimerLocked(p)
	if err := s.signalLocked(p.ID, protocol.OfferSignal(offer.SDP)); err != nil {
		s.failPeerLocked(p, fmt.Errorf("send offer: %w", err))
		return
	}
	s.log.Debug().Str("peer", string(p.ID)).Msg("offer sent")
}

func (s *Session) onMemberLeft(id domain.MemberID) {
	s.mu.Lock()
	defer s.unlock()
	p := s.peers[id]
	if p == nil {
		return
	}
	s.closePeerLocked(p)
	s.log.Info().Str("peer", string(id)).Msg("peer left")
	s.emitLocked(Event{Kind: EventPeerLeft, Peer: id, Name: p.Name})
}

func (s *Session) onSignal(env protocol.Envelope) {
	if err := env.Signal.Validate(); err != nil {
		s.log.Warn().Err(err).Str("peer", string(env.From)).Msg("invalid signal")
		return
	}
	var err error
	switch env.Signal.Type {
	case protocol.SignalOffer:
		err = s.onOfferReceived(env.From, env.Signal.SessionDescription())
	case protocol.SignalAnswer:
		err = s.onAnswerReceived(env.From, env.Signal.SessionDescription())
	case protocol.SignalICECandidate:
		err = s.onIceCandidate(env.From, *env.Signal.Candidate)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("signal", string(env.Signal.Type)).Msg("signal rejected")
	}
}

func (s *Session) onOfferReceived(from domain.MemberID, offer webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.unlock()
	if !s.inMeeting {
		return peerErr(from, ErrUnknownPeer)
	}
	p := s.peers[from]
	if p == nil {
		p = s.addPeerLocked(protocol.Participant{ID: from})
	}
	if p.state != StateNew {
		return peerErr(from, ErrDuplicateOffer)
	}

	t, err := s.transportLocked(p)
	if err != nil {
		return s.failPeerLocked(p, err)
	}
	p.state = StateAnswering
	s.armTimerLocked(p)
	answer, err := t.ApplyOffer(offer)
	if err != nil {
		return s.failPeerLocked(p, fmt.Errorf("apply offer: %w", err))
	}
	s.flushCandidatesLocked(p)
	if err := s.signalLocked(from, protocol.AnswerSignal(answer.SDP)); err != nil {
		return s.failPeerLocked(p, fmt.Errorf("send answer: %w", err))
	}
	p.state = StateConnected
	s.log.Debug().Str("peer", string(from)).Msg("answer sent")
	return nil
}

func (s *Session) onAnswerReceived(from domain.MemberID, answer webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.unlock()
	p := s.peers[from]
	if p == nil || p.state != StateOfferSent {
		return peerErr(from, ErrUnknownPeer)
	}
	if err := p.transport.ApplyAnswer(answer); err != nil {
		return s.failPeerLocked(p, fmt.Errorf("apply answer: %w", err))
	}
	s.flushCandidatesLocked(p)
	p.state = StateConnected
	return nil
}

// onIceCandidate applies a remote candidate, or keeps it on the roster
// entry until the remote description is set.
func (s *Session) onIceCandidate(from domain.MemberID, c webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.unlock()
	p := s.peers[from]
	if p == nil {
		return peerErr(from, ErrUnknownPeer)
	}
	if p.transport == nil || !p.transport.HasRemoteDescription() {
		p.pending = append(p.pending, c)
		return nil
	}
	if err := p.transport.AddICECandidate(c); err != nil {
		return peerErr(from, fmt.Errorf("add candidate: %w", err))
	}
	return nil
}

func (s *Session) onTransportState(p *Peer, st webrtc.PeerConnectionState) {
	s.mu.Lock()
	defer s.unlock()
	if !s.current(p) {
		return
	}
	switch st {
	case webrtc.PeerConnectionStateConnected:
		if p.grace != nil {
			p.grace.Stop()
			p.grace = nil
		}
		if !p.linked {
			p.linked = true
			if p.timer != nil {
				p.timer.Stop()
				p.timer = nil
			}
			s.log.Info().Str("peer", string(p.ID)).Msg("peer connected")
			s.emitLocked(Event{Kind: EventPeerConnected, Peer: p.ID, Name: p.Name})
		}
	case webrtc.PeerConnectionStateDisconnected:
		if p.grace != nil {
			return
		}
		var g *time.Timer
		g = time.AfterFunc(s.cfg.DisconnectGrace, func() {
			s.mu.Lock()
			defer s.unlock()
			if !s.current(p) || p.grace != g {
				return
			}
			s.failPeerLocked(p, ErrTransportFailure)
		})
		p.grace = g
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		s.failPeerLocked(p, ErrTransportFailure)
	}
}

func (s *Session) onRemoteTrack(ctx context.Context, p *Peer, tr *webrtc.TrackRemote) {
	s.mu.Lock()
	defer s.unlock()
	if !s.current(p) {
		return
	}
	sink := media.NewSink(tr.Kind())
	p.sinks = append(p.sinks, sink)
	logger := s.log.With().Str("peer", string(p.ID)).Str("kind", tr.Kind().String()).Logger()
	go sink.Run(ctx, media.TrackReader(tr), &logger)
}
