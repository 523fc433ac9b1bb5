package domain

import "time"

type (
	RoomID   string
	RoomName string
)

// Room is a topic chat room as known to the roster collaborator.
// Call participation is tracked separately by the signaling mailbox.
type Room struct {
	ID              RoomID    `json:"id"`
	Name            RoomName  `json:"name"`
	Description     string    `json:"description,omitempty"`
	IsPrivate       bool      `json:"isPrivate"`
	MaxParticipants int       `json:"maxParticipants"`
	CreatedBy       UserID    `json:"createdById"`
	CreatedAt       time.Time `json:"createdAt"`
}

type ParticipantRole string

const (
	RoleAdmin  ParticipantRole = "admin"
	RoleMember ParticipantRole = "member"
)

// RoomParticipant is a chat-room membership record.
type RoomParticipant struct {
	RoomID   RoomID          `json:"roomId"`
	UserID   UserID          `json:"userId"`
	Role     ParticipantRole `json:"role"`
	JoinedAt time.Time       `json:"joinedAt"`
}
