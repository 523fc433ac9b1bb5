package core

import (
	"errors"

	"github.com/dkeye/Chorus/internal/domain"
	"github.com/pion/webrtc/v4"
)

// SignalType tags a SignalMessage.
type SignalType string

const (
	SignalJoinCall     SignalType = "join_call"
	SignalLeaveCall    SignalType = "leave_call"
	SignalUserJoined   SignalType = "user_joined"
	SignalUserLeft     SignalType = "user_left"
	SignalOffer        SignalType = "offer"
	SignalAnswer       SignalType = "answer"
	SignalICECandidate SignalType = "ice_candidate"
	SignalToggleAudio  SignalType = "toggle_audio"
	SignalToggleVideo  SignalType = "toggle_video"
)

var (
	ErrMissingType      = errors.New("missing message type")
	ErrMissingRoomID    = errors.New("missing room id")
	ErrMissingSender    = errors.New("missing sender id")
	ErrMissingRecipient = errors.New("missing recipient id")
)

// Unicast reports whether messages of this type go to exactly one recipient.
func (t SignalType) Unicast() bool {
	switch t {
	case SignalOffer, SignalAnswer, SignalICECandidate:
		return true
	}
	return false
}

// Known reports whether t is one of the nine protocol tags.
func (t SignalType) Known() bool {
	switch t {
	case SignalJoinCall, SignalLeaveCall, SignalUserJoined, SignalUserLeft,
		SignalOffer, SignalAnswer, SignalICECandidate,
		SignalToggleAudio, SignalToggleVideo:
		return true
	}
	return false
}

// SignalData is the type-dependent payload of a SignalMessage.
type SignalData struct {
	UserName  string                     `json:"userName,omitempty"`
	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Enabled   *bool                      `json:"enabled,omitempty"`
}

// SignalMessage is the unit routed through the mailbox.
// An empty To means the message fans out to the room.
type SignalMessage struct {
	Type   SignalType    `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	From   domain.UserID `json:"from"`
	To     domain.UserID `json:"to,omitempty"`
	Data   *SignalData   `json:"data,omitempty"`
}

// Validate checks the envelope fields. It does not reject unknown types;
// routing decides what to do with those.
func (m SignalMessage) Validate() error {
	if m.Type == "" {
		return ErrMissingType
	}
	if m.RoomID == "" {
		return ErrMissingRoomID
	}
	if m.From == "" {
		return ErrMissingSender
	}
	if m.Type.Unicast() && m.To == "" {
		return ErrMissingRecipient
	}
	return nil
}

// EnabledFlag returns the toggle state carried by the message, false if absent.
func (m SignalMessage) EnabledFlag() bool {
	if m.Data == nil || m.Data.Enabled == nil {
		return false
	}
	return *m.Data.Enabled
}

// UserName returns the display name carried by the message, if any.
func (m SignalMessage) UserName() string {
	if m.Data == nil {
		return ""
	}
	return m.Data.UserName
}

func Bool(v bool) *bool { return &v }
