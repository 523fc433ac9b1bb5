package core

import "github.com/dkeye/Chorus/internal/domain"

//go:generate mockgen -destination=mock/mailbox_mock.go -package=mock github.com/dkeye/Chorus/internal/core Mailbox

// Mailbox owns call membership per room and one outbound queue per user.
// Operations never fail; acting on something absent is a no-op.
type Mailbox interface {
	Join(room domain.RoomID, user domain.UserID)
	Leave(room domain.RoomID, user domain.UserID)
	Enqueue(user domain.UserID, msg SignalMessage)
	// Drain returns the pending messages in enqueue order and empties the queue.
	Drain(user domain.UserID) []SignalMessage
	Members(room domain.RoomID) []domain.UserID
}

// Notifier is implemented by mailboxes that can wake a push transport
// when a user's queue receives a message.
type Notifier interface {
	Subscribe(user domain.UserID) (<-chan struct{}, func())
}

type CallRoomInfo struct {
	ID          domain.RoomID `json:"roomId"`
	MemberCount int           `json:"memberCount"`
}

// RoomLister is implemented by mailboxes that can list active call rooms.
type RoomLister interface {
	Rooms() []CallRoomInfo
}
