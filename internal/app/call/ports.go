package call

import (
	"context"

	"github.com/dkeye/Chorus/internal/core"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Signaler delivers outbound signaling to the server mailbox.
type Signaler interface {
	Join(ctx context.Context, room domain.RoomID, user domain.UserID) error
	Leave(ctx context.Context, room domain.RoomID, user domain.UserID) error
	Send(ctx context.Context, msg core.SignalMessage) error
}

// Receiver delivers inbound signaling, by polling or push. Start supersedes
// any previous session; Stop must not block.
type Receiver interface {
	Start(room domain.RoomID, user domain.UserID, h func(ctx context.Context, msg core.SignalMessage)) error
	Stop()
}

type LocalStream interface {
	Tracks() []webrtc.TrackLocal
	SetAudioEnabled(bool)
	SetVideoEnabled(bool)
	// Stop releases the capture devices.
	Stop()
}

type MediaSource interface {
	Acquire(ctx context.Context) (LocalStream, error)
}

type MediaSourceFunc func(ctx context.Context) (LocalStream, error)

func (f MediaSourceFunc) Acquire(ctx context.Context) (LocalStream, error) { return f(ctx) }

type PeerFactory interface {
	NewConnection(peer domain.UserID) (core.MediaConnection, error)
}

// Confirmer asks the user to acknowledge turning a medium on.
type Confirmer interface {
	Confirm(ctx context.Context, m Medium) (bool, error)
}

type ConfirmFunc func(ctx context.Context, m Medium) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, m Medium) (bool, error) { return f(ctx, m) }

// AutoConfirm accepts every prompt.
var AutoConfirm Confirmer = ConfirmFunc(func(context.Context, Medium) (bool, error) { return true, nil })
