package app

import (
	"sync"

	"github.com/dkeye/Meet/internal/domain"
)

// Store keeps rooms for the lifetime of the process. Room fields are
// mutated by the Registry under the room's lock; the store only guards its
// index.
type Store interface {
	Get(code domain.MeetingCode) (*domain.Room, bool)
	Put(room *domain.Room)
	Codes() []domain.MeetingCode
}

type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[domain.MeetingCode]*domain.Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[domain.MeetingCode]*domain.Room)}
}

func (s *MemoryStore) Get(code domain.MeetingCode) (*domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[code]
	return r, ok
}

func (s *MemoryStore) Put(room *domain.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.Code] = room
}

func (s *MemoryStore) Codes() []domain.MeetingCode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.MeetingCode, 0, len(s.rooms))
	for code := range s.rooms {
		out = append(out, code)
	}
	return out
}
