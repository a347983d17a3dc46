// Package peer runs one participant's side of a mesh meeting: it keeps a
// PeerConnection per remote member, negotiates them over the signaling
// link and publishes the local media stream.
package peer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/media"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultNegotiationTimeout = 30 * time.Second
	defaultDisconnectGrace    = 5 * time.Second
	defaultEventBuffer        = 64
)

type Config struct {
	Signaler   Signaler
	Transports core.PeerTransportFactory
	Media      media.StreamConfig

	NegotiationTimeout time.Duration
	DisconnectGrace    time.Duration
	EventBuffer        int
}

type joinResult struct {
	err error
}

// Session is the local participant. One mutex guards the roster and every
// peer's negotiation state; transports are closed after it is released.
type Session struct {
	cfg      Config
	sig      Signaler
	log      zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	events   chan Event
	welcomed chan struct{}
	loopDone chan struct{}

	mu        sync.Mutex
	self      domain.MemberID
	code      domain.MeetingCode
	joining   chan joinResult
	inMeeting bool
	peers     map[domain.MemberID]*Peer
	seq       uint64
	stream    *media.LocalStream
	screen    *media.ScreenShare
	closed    bool
	deferred  []func()
}

// NewSession starts consuming frames from cfg.Signaler.
func NewSession(cfg Config) *Session {
	if cfg.NegotiationTimeout <= 0 {
		cfg.NegotiationTimeout = defaultNegotiationTimeout
	}
	if cfg.DisconnectGrace <= 0 {
		cfg.DisconnectGrace = defaultDisconnectGrace
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:      cfg,
		sig:      cfg.Signaler,
		log:      log.With().Str("module", "peer").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan Event, cfg.EventBuffer),
		welcomed: make(chan struct{}),
		loopDone: make(chan struct{}),
		peers:    make(map[domain.MemberID]*Peer),
	}
	go s.loop()
	return s
}

// unlock releases the session mutex and then runs work queued while it was
// held, such as closing transports.
func (s *Session) unlock() {
	work := s.deferred
	s.deferred = nil
	s.mu.Unlock()
	for _, fn := range work {
		fn()
	}
}

func (s *Session) later(fn func()) {
	s.deferred = append(s.deferred, fn)
}

// Ready waits for the server's welcome and returns the local member id.
func (s *Session) Ready(ctx context.Context) (domain.MemberID, error) {
	select {
	case <-s.welcomed:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.self, nil
	case <-s.loopDone:
		return "", ErrSessionClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) Self() domain.MemberID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

// Code returns the meeting the session is in, or "" outside a meeting.
func (s *Session) Code() domain.MeetingCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// Join opens the local stream and joins the meeting. Members already in the
// meeting become roster entries waiting for their offers. Registry errors
// are returned before any PeerConnection exists.
func (s *Session) Join(ctx context.Context, raw, name string, host bool) ([]PeerInfo, error) {
	code, err := domain.ParseCode(raw)
	if err != nil {
		return nil, err
	}
	if name, err = domain.NormalizeUsername(name); err != nil {
		return nil, err
	}
	if _, err := s.Ready(ctx); err != nil {
		return nil, err
	}

	stream, degraded := media.OpenFileStream(s.ctx, s.cfg.Media)
	if degraded != nil {
		s.log.Warn().Err(degraded).Msg("camera/microphone unavailable, joining with placeholder")
		stream, err = media.PlaceholderStream(s.ctx)
		if err != nil {
			return nil, fmt.Errorf("placeholder stream: %w", err)
		}
	}

	s.mu.Lock()
	if s.closed || s.inMeeting || s.joining != nil {
		err := domain.ErrAlreadyJoined
		if s.closed {
			err = ErrSessionClosed
		}
		s.mu.Unlock()
		stream.Stop()
		return nil, err
	}
	res := make(chan joinResult, 1)
	s.joining = res
	s.stream = stream
	s.code = code
	if degraded != nil {
		s.emitLocked(Event{Kind: EventMediaDegraded, Err: fmt.Errorf("%w: %v", ErrMediaAccess, degraded)})
	}
	s.mu.Unlock()

	join := protocol.JoinMeeting{Code: string(code), Name: name, IsHost: host}
	if err := s.sig.Send(protocol.EventJoinMeeting, join); err != nil {
		s.abortJoin(res)
		return nil, fmt.Errorf("send join: %w", err)
	}

	select {
	case r := <-res:
		if r.err != nil {
			s.abortJoin(res)
			return nil, fmt.Errorf("join %s: %w", code, r.err)
		}
		s.log.Info().Str("room", string(code)).Str("sid", string(s.Self())).Msg("joined meeting")
		return s.Roster(), nil
	case <-ctx.Done():
		s.abortJoin(res)
		return nil, ctx.Err()
	case <-s.loopDone:
		s.abortJoin(res)
		return nil, ErrSessionClosed
	}
}

func (s *Session) abortJoin(res chan joinResult) {
	s.mu.Lock()
	defer s.unlock()
	if s.joining == res {
		s.joining = nil
	}
	if !s.inMeeting {
		s.releaseMediaLocked()
		s.code = ""
	}
}

// Leave closes every PeerConnection and stops local media, then tells the
// server.
func (s *Session) Leave() error {
	s.mu.Lock()
	if !s.inMeeting {
		s.mu.Unlock()
		return domain.ErrNotInRoom
	}
	code := s.code
	s.teardownLocked()
	s.unlock()

	s.log.Info().Str("room", string(code)).Msg("left meeting")
	return s.sig.Send(protocol.EventLeaveMeeting, nil)
}

// Close leaves any meeting and shuts the signaling link. The event channel
// is closed once the frame loop has stopped.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	in := s.inMeeting
	s.mu.Unlock()

	if in {
		_ = s.Leave()
	}
	err := s.sig.Close()
	<-s.loopDone

	s.mu.Lock()
	s.teardownLocked()
	s.closed = true
	close(s.events)
	s.cancel()
	s.unlock()
	return err
}

// Roster returns the remote peers in the order they became known.
func (s *Session) Roster() []PeerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].seq < peers[j].seq })
	out := make([]PeerInfo, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.info())
	}
	return out
}

func (s *Session) teardownLocked() {
	for _, p := range s.peers {
		s.closePeerLocked(p)
	}
	s.inMeeting = false
	s.code = ""
	s.releaseMediaLocked()
}

func (s *Session) releaseMediaLocked() {
	if sh := s.screen; sh != nil {
		s.screen = nil
		s.later(sh.Stop)
	}
	if st := s.stream; st != nil {
		s.stream = nil
		s.later(st.Stop)
	}
}

func (s *Session) loop() {
	defer close(s.loopDone)
	for f := range s.sig.Frames() {
		s.handle(f)
	}
	s.mu.Lock()
	if s.inMeeting {
		s.log.Warn().Str("room", string(s.code)).Msg("signaling lost, leaving meeting")
		s.teardownLocked()
	}
	s.emitLocked(Event{Kind: EventSignalingStopped})
	s.unlock()
}

func (s *Session) handle(f protocol.Frame) {
	var err error
	switch f.Event {
	case protocol.EventWelcome:
		var w protocol.Welcome
		if err = f.DecodeData(&w); err == nil {
			s.onWelcome(w.ID)
		}
	case protocol.EventExistingParticipants:
		var ps []protocol.Participant
		if len(f.Data) > 0 {
			err = f.DecodeData(&ps)
		}
		if err == nil {
			s.onExistingParticipants(ps)
		}
	case protocol.EventUserJoined:
		var m protocol.Participant
		if err = f.DecodeData(&m); err == nil {
			s.onMemberJoined(m)
		}
	case protocol.EventUserLeft:
		var m protocol.UserLeft
		if err = f.DecodeData(&m); err == nil {
			s.onMemberLeft(m.ID)
		}
	case protocol.EventWebRTCSignal:
		var env protocol.Envelope
		if err = f.DecodeData(&env); err == nil {
			s.onSignal(env)
		}
	case protocol.EventScreenShareStatus:
		var st protocol.ScreenShareStatus
		if err = f.DecodeData(&st); err == nil {
			s.onScreenShareStatus(st)
		}
	case protocol.EventMeetingEnded:
		var m protocol.MeetingEnded
		if err = f.DecodeData(&m); err == nil {
			s.onMeetingEnded(m)
		}
	case protocol.EventError:
		var e protocol.Error
		if err = f.DecodeData(&e); err == nil {
			s.onServerError(e)
		}
	case protocol.EventPong:
	default:
		s.log.Debug().Str("event", string(f.Event)).Msg("unhandled frame")
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("bad frame")
	}
}

func (s *Session) onWelcome(id domain.MemberID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.self != "" {
		return
	}
	s.self = id
	s.log.Info().Str("sid", string(id)).Msg("signaling ready")
	close(s.welcomed)
}

func (s *Session) onExistingParticipants(ps []protocol.Participant) {
	s.mu.Lock()
	defer s.unlock()
	res := s.joining
	if res == nil {
		s.log.Warn().Msg("unexpected existing-participants, leaving")
		s.later(func() { _ = s.sig.Send(protocol.EventLeaveMeeting, nil) })
		return
	}
	s.joining = nil
	s.inMeeting = true
	for _, m := range ps {
		if m.ID == s.self {
			continue
		}
		s.addPeerLocked(m)
	}
	res <- joinResult{}
}

func (s *Session) onServerError(e protocol.Error) {
	s.mu.Lock()
	defer s.unlock()
	if res := s.joining; res != nil {
		s.joining = nil
		res <- joinResult{err: e.Err()}
		return
	}
	if sh := s.screen; sh != nil && e.Code == protocol.CodeScreenShare {
		s.log.Warn().Msg("screen sharing disabled in this meeting, restoring camera")
		s.screen = nil
		if s.stream != nil {
			s.swapVideoLocked(s.stream.Video)
		}
		s.later(sh.Stop)
	}
	s.log.Warn().Str("code", string(e.Code)).Str("message", e.Message).Msg("server error")
	s.emitLocked(Event{Kind: EventSignalingError, Err: e.Err()})
}

func (s *Session) onMeetingEnded(m protocol.MeetingEnded) {
	s.mu.Lock()
	defer s.unlock()
	if !s.inMeeting {
		return
	}
	s.log.Info().Str("room", string(s.code)).Str("ended_by", m.EndedBy).Msg("meeting ended")
	s.teardownLocked()
	s.emitLocked(Event{Kind: EventMeetingEnded, EndedBy: m.EndedBy, At: m.EndedAt})
}

func (s *Session) onScreenShareStatus(st protocol.ScreenShareStatus) {
	s.mu.Lock()
	defer s.unlock()
	if p := s.peers[st.ID]; p != nil {
		p.sharing = st.IsSharing
	}
	s.emitLocked(Event{Kind: EventScreenShare, Peer: st.ID, Name: st.Name, Enabled: st.IsSharing})
}
