// Package mailbox keeps call membership and per-user signaling queues in process memory.
package mailbox

import (
	"sort"
	"sync"

	"github.com/dkeye/Chorus/internal/core"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/rs/zerolog/log"
)

// Memory is the in-process core.Mailbox. The zero value is not usable; call New.
type Memory struct {
	mu     sync.Mutex
	rooms  map[domain.RoomID]map[domain.UserID]struct{}
	queues map[domain.UserID][]core.SignalMessage
	subs   map[domain.UserID]map[chan struct{}]struct{}
}

var (
	_ core.Mailbox  = (*Memory)(nil)
	_ core.Notifier = (*Memory)(nil)
)

func New() *Memory {
	return &Memory{
		rooms:  make(map[domain.RoomID]map[domain.UserID]struct{}),
		queues: make(map[domain.UserID][]core.SignalMessage),
		subs:   make(map[domain.UserID]map[chan struct{}]struct{}),
	}
}

func (m *Memory) Join(room domain.RoomID, user domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.rooms[room]
	if !ok {
		members = make(map[domain.UserID]struct{})
		m.rooms[room] = members
	}
	members[user] = struct{}{}
	if _, ok := m.queues[user]; !ok {
		m.queues[user] = nil
	}
	log.Debug().Str("module", "mailbox").Str("room_id", string(room)).Str("user_id", string(user)).Int("members", len(members)).Msg("join")
}

func (m *Memory) Leave(room domain.RoomID, user domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if members, ok := m.rooms[room]; ok {
		delete(members, user)
		if len(members) == 0 {
			delete(m.rooms, room)
			log.Debug().Str("module", "mailbox").Str("room_id", string(room)).Msg("room emptied")
		}
	}
	if dropped := len(m.queues[user]); dropped > 0 {
		log.Debug().Str("module", "mailbox").Str("user_id", string(user)).Int("dropped", dropped).Msg("queue discarded on leave")
	}
	delete(m.queues, user)
}

func (m *Memory) Enqueue(user domain.UserID, msg core.SignalMessage) {
	m.mu.Lock()
	m.queues[user] = append(m.queues[user], msg)
	subs := m.subs[user]
	for ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	m.mu.Unlock()
}

func (m *Memory) Drain(user domain.UserID) []core.SignalMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[user]
	if !ok {
		return []core.SignalMessage{}
	}
	m.queues[user] = nil
	if q == nil {
		return []core.SignalMessage{}
	}
	return q
}

// Members returns the room's call membership sorted by user id.
func (m *Memory) Members(room domain.RoomID) []domain.UserID {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := m.rooms[room]
	out := make([]domain.UserID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Rooms lists every room that currently has at least one call member.
func (m *Memory) Rooms() []core.CallRoomInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]core.CallRoomInfo, 0, len(m.rooms))
	for id, members := range m.rooms {
		out = append(out, core.CallRoomInfo{ID: id, MemberCount: len(members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Subscribe returns a channel that receives a value whenever a message is
// enqueued for user. Wake-ups coalesce; the receiver must Drain to read.
func (m *Memory) Subscribe(user domain.UserID) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	set, ok := m.subs[user]
	if !ok {
		set = make(map[chan struct{}]struct{})
		m.subs[user] = set
	}
	set[ch] = struct{}{}
	pending := len(m.queues[user]) > 0
	m.mu.Unlock()

	if pending {
		select {
		case ch <- struct{}{}:
		default:
		}
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if set, ok := m.subs[user]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(m.subs, user)
				}
			}
		})
	}
	return ch, cancel
}
