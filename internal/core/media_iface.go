package core

import (
	"context"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
)

// PeerTransport is one media+data session with a single remote member.
// Callbacks must be registered before the first negotiation call and are
// invoked from transport goroutines, never from inside a PeerTransport method.
type PeerTransport interface {
	// CreateOffer creates an offer and sets it as the local description.
	CreateOffer() (webrtc.SessionDescription, error)
	// ApplyOffer sets the remote offer, then creates and sets the answer.
	ApplyOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	ApplyAnswer(answer webrtc.SessionDescription) error
	HasRemoteDescription() bool
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error

	AddLocalTrack(track webrtc.TrackLocal) error
	// ReplaceVideoTrack swaps the outbound video track without renegotiation.
	ReplaceVideoTrack(track webrtc.TrackLocal) error

	// SendData writes to the auxiliary data channel.
	SendData(data []byte) error
	DataOpen() bool

	OnICECandidate(func(webrtc.ICECandidateInit))
	OnStateChange(func(webrtc.PeerConnectionState))
	// OnTrack fires for each remote track; ctx ends when the transport closes.
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote))
	OnDataOpen(func())
	OnData(func([]byte))

	// Close should stop all underlying media resources.
	Close() error
}

// PeerTransportFactory builds a fresh transport for a remote member.
type PeerTransportFactory interface {
	NewPeerTransport(remote domain.MemberID) (PeerTransport, error)
}
