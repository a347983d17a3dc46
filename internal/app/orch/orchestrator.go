// Package orch wires the room registry to the signaling relay. Transport
// adapters call into the Orchestrator and never touch the registry directly.
package orch

import (
	"time"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog/log"
)

type Orchestrator struct {
	Registry *app.Registry
	Relay    *app.Relay
}

// New builds the registry and the relay around a store and a back-pressure
// policy.
func New(store app.Store, policy app.Policy, opts ...app.RegistryOption) *Orchestrator {
	relay := app.NewRelay(policy)
	o := &Orchestrator{Relay: relay}
	o.Registry = app.NewRegistry(store, relayNotifier{relay: relay}, opts...)
	relay.SetDirectory(o.Registry)
	return o
}

// relayNotifier turns registry notifications into frames. It runs inside the
// room lock and only enqueues.
type relayNotifier struct {
	relay *app.Relay
}

func (n relayNotifier) Joined(code domain.MeetingCode, joiner core.MemberDTO, existing []core.MemberDTO) {
	roster := make([]protocol.Participant, len(existing))
	ids := make([]domain.MemberID, len(existing))
	for i, m := range existing {
		roster[i] = participant(m)
		ids[i] = m.ID
	}
	if b, err := protocol.Encode(protocol.EventExistingParticipants, roster); err == nil {
		n.relay.Send(joiner.ID, b)
	}
	if b, err := protocol.Encode(protocol.EventUserJoined, participant(joiner)); err == nil {
		n.relay.Broadcast(ids, b, joiner.ID)
	}
}

func (n relayNotifier) Left(code domain.MeetingCode, id domain.MemberID, remaining []domain.MemberID) {
	if b, err := protocol.Encode(protocol.EventUserLeft, protocol.UserLeft{ID: id}); err == nil {
		n.relay.Broadcast(remaining, b, id)
	}
}

func (n relayNotifier) Ended(code domain.MeetingCode, endedBy string, at time.Time, members []domain.MemberID) {
	b, err := protocol.Encode(protocol.EventMeetingEnded, protocol.MeetingEnded{EndedBy: endedBy, EndedAt: at})
	if err != nil {
		return
	}
	n.relay.Broadcast(members, b, "")
	log.Info().Str("module", "orch").Str("room", string(code)).Msg("meeting-ended sent")
}

func participant(m core.MemberDTO) protocol.Participant {
	return protocol.Participant{ID: m.ID, Name: m.Name, IsHost: m.IsHost}
}

// Stats merges registry counters with the number of live signaling sessions.
func (o *Orchestrator) Stats() core.Stats {
	st := o.Registry.Stats()
	st.SignalSessions = o.Relay.Count()
	return st
}
