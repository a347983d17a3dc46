package protocol

import (
	"fmt"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
)

// SignalKind is the closed set of negotiation messages.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
)

// Signal is one negotiation message. SDP is set for offers and answers,
// Candidate for ice-candidate.
type Signal struct {
	Type      SignalKind               `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

func OfferSignal(sdp string) Signal  { return Signal{Type: SignalOffer, SDP: sdp} }
func AnswerSignal(sdp string) Signal { return Signal{Type: SignalAnswer, SDP: sdp} }

func CandidateSignal(c webrtc.ICECandidateInit) Signal {
	return Signal{Type: SignalICECandidate, Candidate: &c}
}

// Validate rejects unknown kinds and kinds missing their payload.
func (s Signal) Validate() error {
	switch s.Type {
	case SignalOffer, SignalAnswer:
		if s.SDP == "" {
			return fmt.Errorf("signal %s: empty sdp", s.Type)
		}
	case SignalICECandidate:
		if s.Candidate == nil {
			return fmt.Errorf("signal %s: missing candidate", s.Type)
		}
	default:
		return fmt.Errorf("signal: unknown type %q", s.Type)
	}
	return nil
}

// SessionDescription converts an offer or answer to its pion form.
func (s Signal) SessionDescription() webrtc.SessionDescription {
	typ := webrtc.SDPTypeOffer
	if s.Type == SignalAnswer {
		typ = webrtc.SDPTypeAnswer
	}
	return webrtc.SessionDescription{Type: typ, SDP: s.SDP}
}

// Envelope is a routed signal. The relay overwrites From with the sender.
type Envelope struct {
	To     domain.MemberID `json:"to,omitempty"`
	From   domain.MemberID `json:"from,omitempty"`
	Signal Signal          `json:"signal"`
}
