package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Notifier receives membership changes. It is called while the room lock is
// held, so implementations must not block and must not call back into the
// Registry.
type Notifier interface {
	Joined(code domain.MeetingCode, joiner core.MemberDTO, existing []core.MemberDTO)
	Left(code domain.MeetingCode, id domain.MemberID, remaining []domain.MemberID)
	Ended(code domain.MeetingCode, endedBy string, at time.Time, members []domain.MemberID)
}

type nopNotifier struct{}

func (nopNotifier) Joined(domain.MeetingCode, core.MemberDTO, []core.MemberDTO)   {}
func (nopNotifier) Left(domain.MeetingCode, domain.MemberID, []domain.MemberID)    {}
func (nopNotifier) Ended(domain.MeetingCode, string, time.Time, []domain.MemberID) {}

// JoinRequest describes a connection asking to enter a room.
type JoinRequest struct {
	ID     domain.MemberID
	UserID domain.UserID
	Name   string
	Host   bool
}

// Registry owns room membership. Every mutation of a room runs under that
// room's mutex; bindings track the room each connection is active in.
type Registry struct {
	store    Store
	notify   Notifier
	settings domain.RoomSettings
	now      func() time.Time

	mu       sync.RWMutex
	locks    map[domain.MeetingCode]*sync.Mutex
	bindings map[domain.MemberID]domain.MeetingCode
}

type RegistryOption func(*Registry)

func WithSettings(s domain.RoomSettings) RegistryOption {
	return func(r *Registry) { r.settings = s }
}

func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(store Store, notify Notifier, opts ...RegistryOption) *Registry {
	if notify == nil {
		notify = nopNotifier{}
	}
	r := &Registry{
		store:    store,
		notify:   notify,
		settings: domain.DefaultRoomSettings(),
		now:      time.Now,
		locks:    make(map[domain.MeetingCode]*sync.Mutex),
		bindings: make(map[domain.MemberID]domain.MeetingCode),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) lockFor(code domain.MeetingCode) *sync.Mutex {
	r.mu.RLock()
	l, ok := r.locks[code]
	r.mu.RUnlock()
	if ok {
		return l
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok = r.locks[code]; ok {
		return l
	}
	l = &sync.Mutex{}
	r.locks[code] = l
	return l
}

// roomLock returns the lock of a room that already exists. Unknown codes
// never get an entry in the lock table.
func (r *Registry) roomLock(code domain.MeetingCode) (*sync.Mutex, bool) {
	if _, ok := r.store.Get(code); !ok {
		return nil, false
	}
	return r.lockFor(code), true
}

func (r *Registry) bind(id domain.MemberID, code domain.MeetingCode) {
	r.mu.Lock()
	r.bindings[id] = code
	r.mu.Unlock()
}

func (r *Registry) unbind(id domain.MemberID, code domain.MeetingCode) {
	r.mu.Lock()
	if r.bindings[id] == code {
		delete(r.bindings, id)
	}
	r.mu.Unlock()
}

// RoomOf reports the room a connection is currently active in.
func (r *Registry) RoomOf(id domain.MemberID) (domain.MeetingCode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.bindings[id]
	return code, ok
}

func (r *Registry) newRoom(code domain.MeetingCode, host domain.UserID, hostName string) *domain.Room {
	return &domain.Room{
		ID:        domain.RoomID(uuid.NewString()),
		Code:      code,
		HostID:    host,
		HostName:  hostName,
		CreatedAt: r.now(),
		Active:    true,
		Settings:  r.settings,
	}
}

// Create registers a new empty meeting under a fresh code.
func (r *Registry) Create(host domain.UserID, hostName string) (core.RoomInfo, error) {
	name, err := domain.NormalizeUsername(hostName)
	if err != nil {
		return core.RoomInfo{}, err
	}
	for {
		code := domain.NewCode()
		l := r.lockFor(code)
		l.Lock()
		if _, taken := r.store.Get(code); taken {
			l.Unlock()
			continue
		}
		room := r.newRoom(code, host, name)
		r.store.Put(room)
		info := core.NewRoomInfo(room)
		l.Unlock()
		log.Info().Str("module", "app.registry").Str("room", string(code)).Str("host", name).Msg("meeting created")
		return info, nil
	}
}

func (r *Registry) Lookup(code domain.MeetingCode) (core.RoomInfo, error) {
	l, ok := r.roomLock(code)
	if !ok {
		return core.RoomInfo{}, fmt.Errorf("lookup %s: %w", code, domain.ErrRoomNotFound)
	}
	l.Lock()
	defer l.Unlock()
	room, _ := r.store.Get(code)
	return core.NewRoomInfo(room), nil
}

// Admit checks that a meeting can currently be joined.
func (r *Registry) Admit(code domain.MeetingCode) (core.RoomInfo, error) {
	info, err := r.Lookup(code)
	if err != nil {
		return info, err
	}
	if !info.Active {
		return info, fmt.Errorf("admit %s: %w", code, domain.ErrRoomEnded)
	}
	if info.ParticipantCount >= info.Settings.MaxParticipants {
		return info, fmt.Errorf("admit %s: %w", code, domain.ErrRoomFull)
	}
	return info, nil
}

// Join adds a connection to a room and returns the members that were active
// before it. A connection active in another room leaves that room first.
func (r *Registry) Join(code domain.MeetingCode, req JoinRequest) ([]core.MemberDTO, core.RoomInfo, error) {
	name, err := domain.NormalizeUsername(req.Name)
	if err != nil {
		return nil, core.RoomInfo{}, err
	}
	if prev, ok := r.RoomOf(req.ID); ok && prev != code {
		if err := r.Leave(prev, req.ID); err != nil && !errors.Is(err, domain.ErrNotInRoom) {
			return nil, core.RoomInfo{}, err
		}
		log.Info().Str("module", "app.registry").Str("sid", string(req.ID)).Str("from_room", string(prev)).Msg("left previous room")
	}

	if _, ok := r.store.Get(code); !ok && !req.Host {
		return nil, core.RoomInfo{}, fmt.Errorf("join %s: %w", code, domain.ErrRoomNotFound)
	}
	l := r.lockFor(code)
	l.Lock()
	defer l.Unlock()

	room, ok := r.store.Get(code)
	if !ok {
		if !req.Host {
			return nil, core.RoomInfo{}, fmt.Errorf("join %s: %w", code, domain.ErrRoomNotFound)
		}
		room = r.newRoom(code, req.UserID, name)
		r.store.Put(room)
		log.Info().Str("module", "app.registry").Str("room", string(code)).Str("host", name).Msg("meeting created on join")
	}
	if _, ok := room.ActiveMember(req.ID); ok {
		return nil, core.RoomInfo{}, fmt.Errorf("join %s: %w", code, domain.ErrAlreadyJoined)
	}
	isHost := req.Host && req.UserID == room.HostID
	if !room.Active {
		if !isHost {
			return nil, core.RoomInfo{}, fmt.Errorf("join %s: %w", code, domain.ErrRoomEnded)
		}
		room.Reactivate()
		log.Info().Str("module", "app.registry").Str("room", string(code)).Msg("meeting reactivated by host")
	}
	existing := room.ActiveMembers()
	if len(existing) >= room.Settings.MaxParticipants {
		return nil, core.RoomInfo{}, fmt.Errorf("join %s: %w", code, domain.ErrRoomFull)
	}

	m := &domain.Member{
		ID:       req.ID,
		UserID:   req.UserID,
		Name:     name,
		Role:     domain.RoleParticipant,
		JoinedAt: r.now(),
	}
	if isHost {
		m.Role = domain.RoleHost
	}
	room.Members = append(room.Members, m)
	r.bind(req.ID, code)

	dtos := toDTOs(existing)
	r.notify.Joined(code, core.NewMemberDTO(m), dtos)
	log.Info().
		Str("module", "app.registry").
		Str("sid", string(req.ID)).
		Str("room", string(code)).
		Int("active", len(existing)+1).
		Msg("member joined")
	return dtos, core.NewRoomInfo(room), nil
}

// Leave marks a member as left. The room becomes inactive once nobody is
// left in it.
func (r *Registry) Leave(code domain.MeetingCode, id domain.MemberID) error {
	l, ok := r.roomLock(code)
	if !ok {
		return fmt.Errorf("leave %s: %w", code, domain.ErrRoomNotFound)
	}
	l.Lock()
	defer l.Unlock()

	room, _ := r.store.Get(code)
	m, ok := room.ActiveMember(id)
	if !ok {
		return fmt.Errorf("leave %s: %w", code, domain.ErrNotInRoom)
	}
	now := r.now()
	m.Leave(now)
	r.unbind(id, code)

	remaining := memberIDs(room.ActiveMembers())
	r.notify.Left(code, id, remaining)
	if len(remaining) == 0 {
		room.End(now)
		log.Info().Str("module", "app.registry").Str("room", string(code)).Msg("meeting inactive, no members left")
	}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("room", string(code)).Msg("member left")
	return nil
}

// HandleDisconnect leaves the room the connection is bound to. It reports
// whether a membership was actually closed; repeated calls are no-ops.
func (r *Registry) HandleDisconnect(id domain.MemberID) bool {
	code, ok := r.RoomOf(id)
	if !ok {
		return false
	}
	if err := r.Leave(code, id); err != nil {
		log.Debug().Err(err).Str("module", "app.registry").Str("sid", string(id)).Msg("disconnect without membership")
		return false
	}
	return true
}

// ActiveMembers returns a snapshot of active members in join order.
func (r *Registry) ActiveMembers(code domain.MeetingCode) ([]core.MemberDTO, error) {
	l, ok := r.roomLock(code)
	if !ok {
		return nil, fmt.Errorf("members %s: %w", code, domain.ErrRoomNotFound)
	}
	l.Lock()
	defer l.Unlock()
	room, _ := r.store.Get(code)
	return toDTOs(room.ActiveMembers()), nil
}

// ActiveMemberIDs resolves room membership for the relay.
func (r *Registry) ActiveMemberIDs(code domain.MeetingCode) []domain.MemberID {
	members, err := r.ActiveMembers(code)
	if err != nil {
		return nil
	}
	out := make([]domain.MemberID, len(members))
	for i, m := range members {
		out[i] = m.ID
	}
	return out
}

// Member returns the active member with the given id.
func (r *Registry) Member(code domain.MeetingCode, id domain.MemberID) (core.MemberDTO, domain.RoomSettings, error) {
	l, ok := r.roomLock(code)
	if !ok {
		return core.MemberDTO{}, domain.RoomSettings{}, fmt.Errorf("member %s: %w", code, domain.ErrRoomNotFound)
	}
	l.Lock()
	defer l.Unlock()
	room, _ := r.store.Get(code)
	m, ok := room.ActiveMember(id)
	if !ok {
		return core.MemberDTO{}, room.Settings, fmt.Errorf("member %s: %w", code, domain.ErrNotInRoom)
	}
	return core.NewMemberDTO(m), room.Settings, nil
}

// End closes a meeting on behalf of its host. Every active member is marked
// left and told the meeting ended.
func (r *Registry) End(code domain.MeetingCode, by domain.UserID) error {
	l, ok := r.roomLock(code)
	if !ok {
		return fmt.Errorf("end %s: %w", code, domain.ErrRoomNotFound)
	}
	l.Lock()
	defer l.Unlock()

	room, _ := r.store.Get(code)
	if by == "" || by != room.HostID {
		return fmt.Errorf("end %s: %w", code, domain.ErrNotHost)
	}
	now := r.now()
	active := room.ActiveMembers()
	for _, m := range active {
		m.Leave(now)
		r.unbind(m.ID, code)
	}
	room.End(now)
	r.notify.Ended(code, room.HostName, now, memberIDs(active))
	log.Info().Str("module", "app.registry").Str("room", string(code)).Int("members", len(active)).Msg("meeting ended by host")
	return nil
}

// Stats counts rooms and active members. SignalSessions is left for the
// caller to fill.
func (r *Registry) Stats() core.Stats {
	var st core.Stats
	for _, code := range r.store.Codes() {
		l := r.lockFor(code)
		l.Lock()
		if room, ok := r.store.Get(code); ok {
			st.Rooms++
			if room.Active {
				st.ActiveRooms++
			}
			st.ActiveMembers += room.ActiveCount()
		}
		l.Unlock()
	}
	return st
}

func toDTOs(members []*domain.Member) []core.MemberDTO {
	out := make([]core.MemberDTO, len(members))
	for i, m := range members {
		out[i] = core.NewMemberDTO(m)
	}
	return out
}

func memberIDs(members []*domain.Member) []domain.MemberID {
	out := make([]domain.MemberID, len(members))
	for i, m := range members {
		out[i] = m.ID
	}
	return out
}
