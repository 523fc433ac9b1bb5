package call

import (
	"sort"

	"github.com/dkeye/Chorus/internal/domain"
	"github.com/pion/webrtc/v4"
)

type State int

const (
	StateIdle State = iota
	StateRequestingMedia
	StateJoined
	StateInCall
	StateLeft
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingMedia:
		return "requesting-media"
	case StateJoined:
		return "joined"
	case StateInCall:
		return "in-call"
	case StateLeft:
		return "left"
	}
	return "unknown"
}

// PeerState is the negotiation state of the link to one remote participant.
type PeerState int

const (
	PeerNone PeerState = iota
	PeerNegotiating
	PeerConnected
	PeerClosed
)

func (s PeerState) String() string {
	switch s {
	case PeerNone:
		return "none"
	case PeerNegotiating:
		return "negotiating"
	case PeerConnected:
		return "connected"
	case PeerClosed:
		return "closed"
	}
	return "unknown"
}

type Medium string

const (
	MediumAudio Medium = "audio"
	MediumVideo Medium = "video"
)

// Participant is one entry of a call room. Remote flags mirror what the
// participant announced, not what its media actually carries.
type Participant struct {
	ID             domain.UserID
	Name           string
	IsLocal        bool
	IsAudioEnabled bool
	IsVideoEnabled bool
	Peer           PeerState

	AudioTrack *webrtc.TrackRemote
	VideoTrack *webrtc.TrackRemote
}

func (p Participant) HasAudio() bool { return p.AudioTrack != nil }

// sortParticipants puts the local participant first, then orders by id.
func sortParticipants(ps []Participant) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].IsLocal != ps[j].IsLocal {
			return ps[i].IsLocal
		}
		return ps[i].ID < ps[j].ID
	})
}
