package core

import (
	"github.com/dkeye/Chorus/internal/domain"
)

// RoomDraft is the input for creating a chat room.
type RoomDraft struct {
	Name            domain.RoomName
	Description     string
	IsPrivate       bool
	MaxParticipants int
	CreatedBy       domain.UserID
}

// RoomRoster is the chat-room collaborator: topic rooms and who belongs to them.
// It is informational for clients and never drives call fan-out.
type RoomRoster interface {
	Create(draft RoomDraft) (domain.Room, error)
	Get(id domain.RoomID) (domain.Room, bool)
	// List returns the rooms user belongs to, or every public room when user is empty.
	List(user domain.UserID) []domain.Room
	Join(id domain.RoomID, user domain.UserID) (domain.RoomParticipant, error)
	Participants(id domain.RoomID) ([]domain.RoomParticipant, error)
}
