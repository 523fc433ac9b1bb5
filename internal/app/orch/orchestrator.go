package orch

import (
	"github.com/dkeye/Chorus/internal/app/signaling"
	"github.com/dkeye/Chorus/internal/core"
	"github.com/dkeye/Chorus/internal/domain"
)

// Orchestrator is what the transport adapters talk to: call signaling on one
// side, the informational chat-room roster on the other.
type Orchestrator struct {
	Mailbox core.Mailbox
	Router  *signaling.Router
	Roster  core.RoomRoster
}

func New(mb core.Mailbox, roster core.RoomRoster) *Orchestrator {
	return &Orchestrator{
		Mailbox: mb,
		Router:  signaling.NewRouter(mb),
		Roster:  roster,
	}
}

func (o *Orchestrator) JoinCall(room domain.RoomID, user domain.UserID) {
	o.Router.Join(room, user)
}

func (o *Orchestrator) LeaveCall(room domain.RoomID, user domain.UserID) {
	o.Router.Leave(room, user)
}

func (o *Orchestrator) Poll(user domain.UserID) []core.SignalMessage {
	return o.Router.Poll(user)
}

func (o *Orchestrator) Send(msg core.SignalMessage) error {
	return o.Router.Route(msg)
}

func (o *Orchestrator) CallMembers(room domain.RoomID) []domain.UserID {
	return o.Router.Members(room)
}

// Notifier exposes queue wake-ups when the mailbox supports them.
func (o *Orchestrator) Notifier() (core.Notifier, bool) {
	n, ok := o.Mailbox.(core.Notifier)
	return n, ok
}

// CallRooms lists rooms with call members, or none when the mailbox can't list them.
func (o *Orchestrator) CallRooms() []core.CallRoomInfo {
	if l, ok := o.Mailbox.(core.RoomLister); ok {
		return l.Rooms()
	}
	return []core.CallRoomInfo{}
}
