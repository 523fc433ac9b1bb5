package core

import (
	"github.com/pion/webrtc/v4"
)

// MediaConnection is one negotiated link to a remote participant.
type MediaConnection interface {
	// AddLocalTrack attaches a local capture track before negotiation.
	AddLocalTrack(track webrtc.TrackLocal) error
	// CreateOffer creates an offer and sets it as the local description.
	CreateOffer() (*webrtc.SessionDescription, error)
	ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	ApplyAnswer(answer webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate, holding it back
	// until a remote description exists.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	OnStateChange(func(webrtc.PeerConnectionState))
	// Close should stop all underlying media resources.
	Close()
}
