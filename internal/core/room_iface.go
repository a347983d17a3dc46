package core

import (
	"time"

	"github.com/dkeye/Meet/internal/domain"
)

// MemberDTO is a read-only view of an active member (no transport fields).
type MemberDTO struct {
	ID       domain.MemberID `json:"id"`
	Name     string          `json:"name"`
	IsHost   bool            `json:"isHost"`
	JoinedAt time.Time       `json:"joinedAt"`
}

func NewMemberDTO(m *domain.Member) MemberDTO {
	return MemberDTO{ID: m.ID, Name: m.Name, IsHost: m.IsHost(), JoinedAt: m.JoinedAt}
}

// RoomInfo is the public metadata of a meeting.
type RoomInfo struct {
	MeetingID        domain.RoomID       `json:"meetingId"`
	Code             domain.MeetingCode  `json:"code"`
	DisplayCode      string              `json:"displayCode"`
	HostName         string              `json:"hostName"`
	CreatedAt        time.Time           `json:"createdAt"`
	EndedAt          *time.Time          `json:"endedAt,omitempty"`
	Active           bool                `json:"active"`
	ParticipantCount int                 `json:"participantCount"`
	Settings         domain.RoomSettings `json:"settings"`
}

func NewRoomInfo(r *domain.Room) RoomInfo {
	return RoomInfo{
		MeetingID:        r.ID,
		Code:             r.Code,
		DisplayCode:      r.Code.Display(),
		HostName:         r.HostName,
		CreatedAt:        r.CreatedAt,
		EndedAt:          r.EndedAt,
		Active:           r.Active,
		ParticipantCount: r.ActiveCount(),
		Settings:         r.Settings,
	}
}

// Stats summarizes the registry for the stats endpoint.
type Stats struct {
	Rooms          int `json:"meetings"`
	ActiveRooms    int `json:"activeMeetings"`
	ActiveMembers  int `json:"activeParticipants"`
	SignalSessions int `json:"socketConnections"`
}
