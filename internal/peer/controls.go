package peer

import (
	"fmt"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/media"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/pion/webrtc/v4"
)

func codecKind(k protocol.TrackKind) (webrtc.RTPCodecType, error) {
	switch k {
	case protocol.TrackVideo:
		return webrtc.RTPCodecTypeVideo, nil
	case protocol.TrackAudio:
		return webrtc.RTPCodecTypeAudio, nil
	}
	return 0, fmt.Errorf("unknown track kind %q", k)
}

// ToggleLocalTrack flips the camera or microphone and tells every peer over
// the data channel. Nothing is renegotiated; a muted track just stops
// carrying samples.
func (s *Session) ToggleLocalTrack(kind protocol.TrackKind) (bool, error) {
	ck, err := codecKind(kind)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.unlock()
	if !s.inMeeting || s.stream == nil {
		return false, domain.ErrNotInRoom
	}
	t := s.stream.Track(ck)
	t.SetEnabled(!t.Enabled())
	on := t.Enabled()

	msg, err := protocol.NewDataMessage(protocol.DataMediaState, protocol.MediaState{Kind: kind, Enabled: on})
	if err != nil {
		return on, err
	}
	for _, p := range s.peers {
		if p.transport == nil || !p.transport.DataOpen() {
			continue
		}
		if err := p.transport.SendData(msg); err != nil {
			s.log.Debug().Err(err).Str("peer", string(p.ID)).Msg("media-state not sent")
		}
	}
	s.log.Info().Str("kind", string(kind)).Bool("enabled", on).Msg("local track toggled")
	return on, nil
}

// onDataOpen brings a peer whose channel opened late up to date.
func (s *Session) onDataOpen(p *Peer) {
	s.mu.Lock()
	defer s.unlock()
	if !s.current(p) || s.stream == nil {
		return
	}
	for _, k := range []protocol.TrackKind{protocol.TrackVideo, protocol.TrackAudio} {
		ck, _ := codecKind(k)
		msg, err := protocol.NewDataMessage(protocol.DataMediaState, protocol.MediaState{Kind: k, Enabled: s.stream.Track(ck).Enabled()})
		if err != nil {
			continue
		}
		if err := p.transport.SendData(msg); err != nil {
			s.log.Debug().Err(err).Str("peer", string(p.ID)).Msg("initial media-state not sent")
			return
		}
	}
}

func (s *Session) onData(p *Peer, b []byte) {
	msg, err := protocol.DecodeDataMessage(b)
	if err != nil {
		s.log.Warn().Err(err).Str("peer", string(p.ID)).Msg("bad data message")
		return
	}
	s.mu.Lock()
	defer s.unlock()
	if !s.current(p) {
		return
	}
	switch msg.Type {
	case protocol.DataMediaState:
		var st protocol.MediaState
		if err := msg.DecodePayload(&st); err != nil {
			s.log.Warn().Err(err).Str("peer", string(p.ID)).Msg("bad media-state")
			return
		}
		switch st.Kind {
		case protocol.TrackVideo:
			p.video = st.Enabled
		case protocol.TrackAudio:
			p.audio = st.Enabled
		default:
			return
		}
		s.emitLocked(Event{Kind: EventMediaState, Peer: p.ID, Name: p.Name, Track: st.Kind, Enabled: st.Enabled})
	case protocol.DataApp:
		var app protocol.AppPayload
		if err := msg.DecodePayload(&app); err != nil {
			s.log.Warn().Err(err).Str("peer", string(p.ID)).Msg("bad app message")
			return
		}
		s.emitLocked(Event{Kind: EventAppMessage, Peer: p.ID, Name: p.Name, Payload: app.JSON})
	default:
		s.log.Debug().Str("type", string(msg.Type)).Msg("unknown data message")
	}
}

// SendAppMessage sends an opaque JSON payload on every open data channel
// and reports how many peers it reached.
func (s *Session) SendAppMessage(payload []byte) (int, error) {
	msg, err := protocol.NewDataMessage(protocol.DataApp, protocol.AppPayload{JSON: payload})
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.unlock()
	if !s.inMeeting {
		return 0, domain.ErrNotInRoom
	}
	sent := 0
	for _, p := range s.peers {
		if p.transport == nil || !p.transport.DataOpen() {
			continue
		}
		if err := p.transport.SendData(msg); err != nil {
			s.log.Debug().Err(err).Str("peer", string(p.ID)).Msg("app message not sent")
			continue
		}
		sent++
	}
	return sent, nil
}

// ReplaceOutboundVideo publishes src instead of the camera on every
// PeerConnection. The camera comes back on StopScreenShare or when src
// runs out.
func (s *Session) ReplaceOutboundVideo(src media.Source) error {
	s.mu.Lock()
	if !s.inMeeting {
		s.mu.Unlock()
		_ = src.Close()
		return domain.ErrNotInRoom
	}
	share, err := media.StartScreenShare(s.ctx, src)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("start screen share: %w", err)
	}
	if old := s.screen; old != nil {
		s.later(old.Stop)
	}
	s.screen = share
	s.swapVideoLocked(share.Track())
	if err := s.sig.Send(protocol.EventScreenShare, protocol.ScreenShare{IsSharing: true}); err != nil {
		s.log.Warn().Err(err).Msg("screen-share status not sent")
	}
	s.unlock()

	s.log.Info().Msg("screen share started")
	go func() {
		<-share.Done()
		s.mu.Lock()
		defer s.unlock()
		if s.screen == share {
			s.log.Info().Msg("screen source ended")
			s.restoreCameraLocked()
		}
	}()
	return nil
}

// StopScreenShare restores the camera track. It is a no-op when not sharing.
func (s *Session) StopScreenShare() error {
	s.mu.Lock()
	defer s.unlock()
	share := s.screen
	if share == nil {
		return nil
	}
	s.restoreCameraLocked()
	s.later(share.Stop)
	return nil
}

func (s *Session) Sharing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen != nil
}

func (s *Session) restoreCameraLocked() {
	s.screen = nil
	if s.stream == nil {
		return
	}
	s.swapVideoLocked(s.stream.Video)
	if err := s.sig.Send(protocol.EventScreenShare, protocol.ScreenShare{IsSharing: false}); err != nil {
		s.log.Warn().Err(err).Msg("screen-share status not sent")
	}
}

func (s *Session) swapVideoLocked(t *media.LocalTrack) {
	for _, p := range s.peers {
		if p.transport == nil {
			continue
		}
		if err := p.transport.ReplaceVideoTrack(t.Track()); err != nil {
			s.log.Warn().Err(err).Str("peer", string(p.ID)).Msg("replace video track")
		}
	}
}
