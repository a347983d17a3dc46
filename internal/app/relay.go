package app

import (
	"errors"
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog/log"
)

// RoomDirectory resolves the active members of a room.
type RoomDirectory interface {
	ActiveMemberIDs(code domain.MeetingCode) []domain.MemberID
}

// Relay routes frames between registered signaling connections. It never
// looks inside a signal and keeps nothing after delivery.
type Relay struct {
	policy Policy
	rooms  RoomDirectory

	mu    sync.RWMutex
	conns map[domain.MemberID]core.SignalConnection
}

func NewRelay(policy Policy) *Relay {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Relay{
		policy: policy,
		conns:  make(map[domain.MemberID]core.SignalConnection),
	}
}

// SetDirectory wires room resolution for BroadcastToRoom.
func (r *Relay) SetDirectory(d RoomDirectory) {
	r.mu.Lock()
	r.rooms = d
	r.mu.Unlock()
}

func (r *Relay) Register(conn core.SignalConnection) {
	r.mu.Lock()
	r.conns[conn.ID()] = conn
	r.mu.Unlock()
	log.Debug().Str("module", "app.relay").Str("sid", string(conn.ID())).Msg("registered")
}

// Unregister removes the connection registered under id.
func (r *Relay) Unregister(id domain.MemberID) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
	log.Debug().Str("module", "app.relay").Str("sid", string(id)).Msg("unregistered")
}

func (r *Relay) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Relay) lookup(id domain.MemberID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Send delivers a frame to one connection. It reports false when the
// recipient is unknown or the frame could not be queued.
func (r *Relay) Send(id domain.MemberID, f core.Frame) bool {
	conn, ok := r.lookup(id)
	if !ok {
		return false
	}
	return r.deliver(conn, f)
}

func (r *Relay) deliver(conn core.SignalConnection, f core.Frame) bool {
	err := conn.TrySend(f)
	if err == nil {
		return true
	}
	if !errors.Is(err, core.ErrBackpressure) {
		log.Debug().Err(err).Str("module", "app.relay").Str("sid", string(conn.ID())).Msg("send failed")
		return false
	}
	switch r.policy.OnBackPressure(conn) {
	case KickMember:
		log.Warn().Str("module", "app.relay").Str("sid", string(conn.ID())).Msg("send queue full, kicking")
		conn.Close()
	case DropFrame, NoAction:
		log.Warn().Str("module", "app.relay").Str("sid", string(conn.ID())).Msg("send queue full, frame dropped")
	}
	return false
}

// Route delivers a signaling envelope to its target, stamping the sender.
// Unknown targets are dropped silently.
func (r *Relay) Route(from domain.MemberID, env protocol.Envelope) {
	env.From = from
	conn, ok := r.lookup(env.To)
	if !ok {
		log.Debug().
			Str("module", "app.relay").
			Str("sid", string(from)).
			Str("to", string(env.To)).
			Str("signal", string(env.Signal.Type)).
			Msg("route: unknown target, dropped")
		return
	}
	b, err := protocol.Encode(protocol.EventWebRTCSignal, env)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("route encode")
		return
	}
	r.deliver(conn, b)
}

// Broadcast sends one frame to every listed recipient except exclude.
func (r *Relay) Broadcast(recipients []domain.MemberID, f core.Frame, exclude domain.MemberID) {
	for _, id := range recipients {
		if id == exclude {
			continue
		}
		if conn, ok := r.lookup(id); ok {
			r.deliver(conn, f)
		}
	}
}

// BroadcastToRoom sends a frame to the active members of a room.
func (r *Relay) BroadcastToRoom(code domain.MeetingCode, f core.Frame, exclude domain.MemberID) {
	r.mu.RLock()
	dir := r.rooms
	r.mu.RUnlock()
	if dir == nil {
		return
	}
	r.Broadcast(dir.ActiveMemberIDs(code), f, exclude)
}
