package domain

import "time"

// MemberID is the transient connection identity of a participant.
// It is distinct from UserID: reconnecting yields a new MemberID.
type MemberID string

type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

// Member records one participation of a connection in a room.
// LeftAt stays nil while the membership is active; leaving sets it and the
// entry is kept as history.
type Member struct {
	ID       MemberID
	UserID   UserID
	Name     string
	Role     Role
	JoinedAt time.Time
	LeftAt   *time.Time
}

func (m *Member) Active() bool { return m.LeftAt == nil }
func (m *Member) IsHost() bool { return m.Role == RoleHost }
func (m *Member) Leave(at time.Time) {
	if m.LeftAt == nil {
		m.LeftAt = &at
	}
}
