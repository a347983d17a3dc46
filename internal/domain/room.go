package domain

import "time"

type RoomID string

type RoomSettings struct {
	MaxParticipants  int  `json:"maxParticipants"`
	AllowScreenShare bool `json:"allowScreenShare"`
}

func DefaultRoomSettings() RoomSettings {
	return RoomSettings{MaxParticipants: 50, AllowScreenShare: true}
}

// Room is a meeting. Members holds the full join history in join order.
type Room struct {
	ID        RoomID
	Code      MeetingCode
	HostID    UserID
	HostName  string
	CreatedAt time.Time
	EndedAt   *time.Time
	Active    bool
	Settings  RoomSettings
	Members   []*Member
}

// ActiveMembers returns active members in join order.
func (r *Room) ActiveMembers() []*Member {
	out := make([]*Member, 0, len(r.Members))
	for _, m := range r.Members {
		if m.Active() {
			out = append(out, m)
		}
	}
	return out
}

func (r *Room) ActiveMember(id MemberID) (*Member, bool) {
	for _, m := range r.Members {
		if m.ID == id && m.Active() {
			return m, true
		}
	}
	return nil, false
}

func (r *Room) ActiveCount() int {
	n := 0
	for _, m := range r.Members {
		if m.Active() {
			n++
		}
	}
	return n
}

func (r *Room) End(at time.Time) {
	r.Active = false
	if r.EndedAt == nil {
		r.EndedAt = &at
	}
}

// Reactivate reopens an ended room for its host.
func (r *Room) Reactivate() {
	r.Active = true
	r.EndedAt = nil
}
