// Package signaling routes call-signaling messages through a core.Mailbox.
package signaling

import (
	"github.com/dkeye/Chorus/internal/core"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/rs/zerolog/log"
)

type Router struct {
	mailbox core.Mailbox
}

func NewRouter(mb core.Mailbox) *Router {
	return &Router{mailbox: mb}
}

// Route validates msg and enqueues it for its recipients. Unknown types are
// dropped with a warning and do not produce an error.
func (r *Router) Route(msg core.SignalMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	switch msg.Type {
	case core.SignalJoinCall, core.SignalUserJoined,
		core.SignalLeaveCall, core.SignalUserLeft:
		r.broadcast(msg, nameData(msg))
	case core.SignalToggleAudio, core.SignalToggleVideo:
		r.broadcast(msg, &core.SignalData{Enabled: core.Bool(msg.EnabledFlag())})
	case core.SignalOffer, core.SignalAnswer, core.SignalICECandidate:
		r.unicast(msg)
	default:
		log.Warn().Str("module", "signaling").Str("type", string(msg.Type)).Str("from", string(msg.From)).Msg("unknown signal")
	}
	return nil
}

// broadcast fans msg out to the room's call members, skipping the sender.
// Only data is forwarded as payload.
func (r *Router) broadcast(msg core.SignalMessage, data *core.SignalData) {
	out := core.SignalMessage{
		Type:   msg.Type,
		RoomID: msg.RoomID,
		From:   msg.From,
		Data:   data,
	}
	members := r.mailbox.Members(msg.RoomID)
	n := 0
	for _, id := range members {
		if id == msg.From {
			continue
		}
		r.mailbox.Enqueue(id, out)
		n++
	}
	log.Debug().Str("module", "signaling").Str("type", string(msg.Type)).Str("room_id", string(msg.RoomID)).Str("from", string(msg.From)).Int("recipients", n).Msg("broadcast")
}

func nameData(msg core.SignalMessage) *core.SignalData {
	if msg.UserName() == "" {
		return nil
	}
	return &core.SignalData{UserName: msg.UserName()}
}

func (r *Router) unicast(msg core.SignalMessage) {
	r.mailbox.Enqueue(msg.To, msg)
	log.Debug().Str("module", "signaling").Str("type", string(msg.Type)).Str("room_id", string(msg.RoomID)).Str("from", string(msg.From)).Str("to", string(msg.To)).Msg("unicast")
}

func (r *Router) Join(room domain.RoomID, user domain.UserID) {
	r.mailbox.Join(room, user)
	log.Info().Str("module", "signaling").Str("room_id", string(room)).Str("user_id", string(user)).Msg("call join")
}

func (r *Router) Leave(room domain.RoomID, user domain.UserID) {
	r.mailbox.Leave(room, user)
	log.Info().Str("module", "signaling").Str("room_id", string(room)).Str("user_id", string(user)).Msg("call leave")
}

func (r *Router) Poll(user domain.UserID) []core.SignalMessage {
	return r.mailbox.Drain(user)
}

func (r *Router) Members(room domain.RoomID) []domain.UserID {
	return r.mailbox.Members(room)
}
