// Package protocol defines the signaling frames exchanged over the WebSocket
// and the messages carried on the per-peer data channel.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/Meet/internal/domain"
)

// Event identifies the kind of signaling frame.
type Event string

const (
	EventWelcome              Event = "welcome"
	EventJoinMeeting          Event = "join-meeting"
	EventLeaveMeeting         Event = "leave-meeting"
	EventExistingParticipants Event = "existing-participants"
	EventUserJoined           Event = "user-joined"
	EventUserLeft             Event = "user-left"
	EventWebRTCSignal         Event = "webrtc-signal"
	EventScreenShare          Event = "screen-share"
	EventScreenShareStatus    Event = "screen-share-status"
	EventMeetingEnded         Event = "meeting-ended"
	EventError                Event = "error"
	EventPing                 Event = "ping"
	EventPong                 Event = "pong"
)

// Frame is the JSON structure exchanged over the signaling WebSocket.
type Frame struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals v as the data of a frame of the given event.
func Encode(ev Event, v any) ([]byte, error) {
	f := Frame{Event: ev}
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", ev, err)
		}
		f.Data = data
	}
	return json.Marshal(f)
}

func Decode(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("decode frame: missing event")
	}
	return f, nil
}

// DecodeData unmarshals the frame data into v.
func (f Frame) DecodeData(v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%s: empty data", f.Event)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("%s: %w", f.Event, err)
	}
	return nil
}

type Welcome struct {
	ID domain.MemberID `json:"id"`
}

type JoinMeeting struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

// Participant describes a member in existing-participants and user-joined.
type Participant struct {
	ID     domain.MemberID `json:"id"`
	Name   string          `json:"name"`
	IsHost bool            `json:"isHost"`
}

type UserLeft struct {
	ID domain.MemberID `json:"id"`
}

type ScreenShare struct {
	IsSharing bool `json:"isSharing"`
}

type ScreenShareStatus struct {
	ID        domain.MemberID `json:"id"`
	Name      string          `json:"name"`
	IsSharing bool            `json:"isSharing"`
}

type MeetingEnded struct {
	EndedBy string    `json:"endedBy"`
	EndedAt time.Time `json:"endedAt"`
}
