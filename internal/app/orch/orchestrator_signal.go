package orch

import (
	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Connect registers a signaling connection and greets it with its id.
func (o *Orchestrator) Connect(conn core.SignalConnection) {
	o.Relay.Register(conn)
	if b, err := protocol.Encode(protocol.EventWelcome, protocol.Welcome{ID: conn.ID()}); err == nil {
		o.Relay.Send(conn.ID(), b)
	}
	log.Info().Str("module", "orch").Str("sid", string(conn.ID())).Msg("signal connected")
}

// Disconnect leaves the connection's room, if any, then unregisters it.
func (o *Orchestrator) Disconnect(id domain.MemberID) {
	if o.Registry.HandleDisconnect(id) {
		log.Info().Str("module", "orch").Str("sid", string(id)).Msg("left room on disconnect")
	}
	o.Relay.Unregister(id)
}

// JoinMeeting handles a join-meeting frame. On success the joiner has already
// been sent existing-participants.
func (o *Orchestrator) JoinMeeting(id domain.MemberID, user domain.UserID, p protocol.JoinMeeting) (domain.MeetingCode, error) {
	code, err := domain.ParseCode(p.Code)
	if err != nil {
		return "", err
	}
	_, _, err = o.Registry.Join(code, app.JoinRequest{
		ID:     id,
		UserID: user,
		Name:   p.Name,
		Host:   p.IsHost,
	})
	return code, err
}

// LeaveMeeting handles an explicit leave-meeting frame.
func (o *Orchestrator) LeaveMeeting(id domain.MemberID) error {
	code, ok := o.Registry.RoomOf(id)
	if !ok {
		return domain.ErrNotInRoom
	}
	return o.Registry.Leave(code, id)
}

// Signal forwards a negotiation message to its target.
func (o *Orchestrator) Signal(from domain.MemberID, env protocol.Envelope) error {
	if err := env.Signal.Validate(); err != nil {
		return err
	}
	o.Relay.Route(from, env)
	return nil
}

// ScreenShare announces a member's screen-share status to the rest of its
// room.
func (o *Orchestrator) ScreenShare(id domain.MemberID, sharing bool) error {
	code, ok := o.Registry.RoomOf(id)
	if !ok {
		return domain.ErrNotInRoom
	}
	m, settings, err := o.Registry.Member(code, id)
	if err != nil {
		return err
	}
	if sharing && !settings.AllowScreenShare {
		return domain.ErrScreenShareOff
	}
	b, err := protocol.Encode(protocol.EventScreenShareStatus, protocol.ScreenShareStatus{
		ID:        id,
		Name:      m.Name,
		IsSharing: sharing,
	})
	if err != nil {
		return err
	}
	o.Relay.BroadcastToRoom(code, b, id)
	return nil
}

// SendError reports a failure to a single connection as an error frame.
func (o *Orchestrator) SendError(id domain.MemberID, err error) {
	b, encErr := protocol.Encode(protocol.EventError, protocol.NewError(err))
	if encErr != nil {
		return
	}
	o.Relay.Send(id, b)
}

// Pong answers an application-level ping.
func (o *Orchestrator) Pong(id domain.MemberID) {
	if b, err := protocol.Encode(protocol.EventPong, nil); err == nil {
		o.Relay.Send(id, b)
	}
}
