// Package roster is the in-memory chat-room collaborator. It never drives call fan-out.
package roster

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Chorus/internal/core"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const DefaultMaxParticipants = 50

var (
	ErrRoomNameEmpty = errors.New("room name and creator id are required")
	ErrRoomNotFound  = errors.New("room not found")
	ErrAlreadyMember = errors.New("user is already a member of this room")
	ErrRoomFull      = errors.New("room is at maximum capacity")
)

type entry struct {
	room         domain.Room
	participants []domain.RoomParticipant
}

type Manager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*entry
	now   func() time.Time
}

var _ core.RoomRoster = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{rooms: make(map[domain.RoomID]*entry), now: time.Now}
}

// Create registers a room and makes its creator the first participant.
func (m *Manager) Create(d core.RoomDraft) (domain.Room, error) {
	if d.Name == "" || d.CreatedBy == "" {
		return domain.Room{}, ErrRoomNameEmpty
	}
	if d.MaxParticipants <= 0 {
		d.MaxParticipants = DefaultMaxParticipants
	}
	now := m.now()
	room := domain.Room{
		ID:              domain.RoomID(uuid.NewString()),
		Name:            d.Name,
		Description:     d.Description,
		IsPrivate:       d.IsPrivate,
		MaxParticipants: d.MaxParticipants,
		CreatedBy:       d.CreatedBy,
		CreatedAt:       now,
	}

	m.mu.Lock()
	m.rooms[room.ID] = &entry{
		room: room,
		participants: []domain.RoomParticipant{
			{RoomID: room.ID, UserID: d.CreatedBy, Role: domain.RoleAdmin, JoinedAt: now},
		},
	}
	m.mu.Unlock()

	log.Info().Str("module", "roster").Str("room_id", string(room.ID)).Str("name", string(room.Name)).Msg("room created")
	return room, nil
}

func (m *Manager) Get(id domain.RoomID) (domain.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.rooms[id]
	if !ok {
		return domain.Room{}, false
	}
	return e.room, true
}

func (m *Manager) List(user domain.UserID) []domain.Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Room, 0, len(m.rooms))
	for _, e := range m.rooms {
		if user == "" {
			if !e.room.IsPrivate {
				out = append(out, e.room)
			}
			continue
		}
		for _, p := range e.participants {
			if p.UserID == user {
				out = append(out, e.room)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *Manager) Join(id domain.RoomID, user domain.UserID) (domain.RoomParticipant, error) {
	if err := domain.ValidateUserID(user); err != nil {
		return domain.RoomParticipant{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.rooms[id]
	if !ok {
		return domain.RoomParticipant{}, ErrRoomNotFound
	}
	for _, p := range e.participants {
		if p.UserID == user {
			return domain.RoomParticipant{}, ErrAlreadyMember
		}
	}
	if len(e.participants) >= e.room.MaxParticipants {
		return domain.RoomParticipant{}, ErrRoomFull
	}
	p := domain.RoomParticipant{RoomID: id, UserID: user, Role: domain.RoleMember, JoinedAt: m.now()}
	e.participants = append(e.participants, p)
	log.Info().Str("module", "roster").Str("room_id", string(id)).Str("user_id", string(user)).Msg("participant added")
	return p, nil
}

func (m *Manager) Participants(id domain.RoomID) ([]domain.RoomParticipant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	out := make([]domain.RoomParticipant, len(e.participants))
	copy(out, e.participants)
	return out, nil
}
