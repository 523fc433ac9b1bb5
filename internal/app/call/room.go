package call

import (
	"context"

	"github.com/dkeye/Chorus/internal/core"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Room is one call as seen by the local participant. Every peer id is also
// a participant id.
type Room struct {
	c *Controller

	id        domain.RoomID
	localID   domain.UserID
	localName string
	local     *Participant
	stream    LocalStream

	participants map[domain.UserID]*Participant
	peers        map[domain.UserID]core.MediaConnection
	// remote candidates that arrived before their peer connection existed
	pendingICE map[domain.UserID][]webrtc.ICECandidateInit
}

func newRoom(c *Controller, id domain.RoomID, user domain.UserID, name string, stream LocalStream) *Room {
	local := &Participant{ID: user, Name: name, IsLocal: true}
	return &Room{
		c:            c,
		id:           id,
		localID:      user,
		localName:    name,
		local:        local,
		stream:       stream,
		participants: map[domain.UserID]*Participant{user: local},
		peers:        make(map[domain.UserID]core.MediaConnection),
		pendingICE:   make(map[domain.UserID][]webrtc.ICECandidateInit),
	}
}

func (r *Room) setState(s State) {
	r.c.states[r.id] = s
}

func (r *Room) snapshot() []Participant {
	out := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, *p)
	}
	sortParticipants(out)
	return out
}

func (r *Room) notify() {
	r.c.obs.push(snapshot{room: r.id, participants: r.snapshot()})
}

func (r *Room) announce(t core.SignalType) core.SignalMessage {
	return core.SignalMessage{
		Type:   t,
		RoomID: r.id,
		From:   r.localID,
		Data:   &core.SignalData{UserName: r.localName},
	}
}

// send is best effort: transport failures are logged and the next poll recovers.
func (r *Room) send(ctx context.Context, msg core.SignalMessage) {
	if err := r.c.opts.Signaler.Send(ctx, msg); err != nil {
		log.Warn().Err(err).Str("module", "call").Str("room_id", string(r.id)).Str("type", string(msg.Type)).Str("to", string(msg.To)).Msg("send failed")
	}
}

func (r *Room) setLocalMedium(ctx context.Context, m Medium, enabled bool) {
	var t core.SignalType
	switch m {
	case MediumAudio:
		r.stream.SetAudioEnabled(enabled)
		r.local.IsAudioEnabled = enabled
		t = core.SignalToggleAudio
	case MediumVideo:
		r.stream.SetVideoEnabled(enabled)
		r.local.IsVideoEnabled = enabled
		t = core.SignalToggleVideo
	}
	r.notify()
	r.send(ctx, core.SignalMessage{
		Type:   t,
		RoomID: r.id,
		From:   r.localID,
		Data:   &core.SignalData{Enabled: core.Bool(enabled)},
	})
}

func (c *Controller) inbound(id domain.RoomID) func(context.Context, core.SignalMessage) {
	return func(ctx context.Context, msg core.SignalMessage) {
		task := func() {
			r, ok := c.rooms[id]
			if !ok || r.local == nil {
				log.Debug().Str("module", "call").Str("room_id", string(id)).Str("type", string(msg.Type)).Msg("drop message for inactive room")
				return
			}
			r.handle(ctx, msg)
		}
		// the receiver waits for a slot so messages keep their order
		select {
		case c.tasks <- task:
		case <-ctx.Done():
			log.Debug().Str("module", "call").Str("room_id", string(id)).Str("type", string(msg.Type)).Msg("drop message after receiver stop")
		case <-c.quit:
		}
	}
}

func (r *Room) handle(ctx context.Context, msg core.SignalMessage) {
	if msg.RoomID != r.id || msg.From == r.localID || msg.From == "" {
		return
	}
	from := msg.From

	switch msg.Type {
	case core.SignalJoinCall, core.SignalUserJoined:
		r.addRemote(from, msg.UserName())
		r.offerTo(ctx, from)
	case core.SignalOffer:
		r.answerTo(ctx, msg)
	case core.SignalAnswer:
		r.applyAnswer(msg)
	case core.SignalICECandidate:
		r.applyCandidate(msg)
	case core.SignalToggleAudio, core.SignalToggleVideo:
		p, ok := r.participants[from]
		if !ok {
			return
		}
		if msg.Type == core.SignalToggleAudio {
			p.IsAudioEnabled = msg.EnabledFlag()
		} else {
			p.IsVideoEnabled = msg.EnabledFlag()
		}
		r.notify()
	case core.SignalLeaveCall, core.SignalUserLeft:
		r.removeRemote(from)
	default:
		log.Warn().Str("module", "call").Str("type", string(msg.Type)).Str("from", string(from)).Msg("unknown signal")
	}
}

func (r *Room) addRemote(id domain.UserID, name string) *Participant {
	if p, ok := r.participants[id]; ok {
		if name != "" && p.Name != name {
			p.Name = name
			r.notify()
		}
		return p
	}
	p := &Participant{ID: id, Name: name}
	r.participants[id] = p
	r.notify()
	log.Info().Str("module", "call").Str("room_id", string(r.id)).Str("peer", string(id)).Msg("participant added")
	return p
}

func (r *Room) removeRemote(id domain.UserID) {
	r.closePeer(id)
	delete(r.pendingICE, id)
	if _, ok := r.participants[id]; !ok {
		return
	}
	delete(r.participants, id)
	r.notify()
	log.Info().Str("module", "call").Str("room_id", string(r.id)).Str("peer", string(id)).Msg("participant removed")
}

// newPeer creates the connection to id with local tracks attached, replacing
// any previous one.
func (r *Room) newPeer(id domain.UserID) (core.MediaConnection, error) {
	r.closePeer(id)

	conn, err := r.c.opts.Peers.NewConnection(id)
	if err != nil {
		return nil, err
	}
	for _, t := range r.stream.Tracks() {
		if err := conn.AddLocalTrack(t); err != nil {
			conn.Close()
			return nil, err
		}
	}
	r.bindPeer(id, conn)
	r.peers[id] = conn
	if p, ok := r.participants[id]; ok {
		p.Peer = PeerNegotiating
	}
	r.setState(StateInCall)
	return conn, nil
}

// bindPeer routes media callbacks back onto the loop. Callbacks from a
// replaced or closed connection are ignored.
func (r *Room) bindPeer(id domain.UserID, conn core.MediaConnection) {
	c := r.c
	current := func() bool {
		cur, ok := c.rooms[r.id]
		return ok && cur == r && r.peers[id] == conn
	}

	conn.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		c.post(func() {
			if !current() {
				return
			}
			r.send(context.Background(), core.SignalMessage{
				Type:   core.SignalICECandidate,
				RoomID: r.id,
				From:   r.localID,
				To:     id,
				Data:   &core.SignalData{Candidate: &ci},
			})
		})
	})

	conn.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.post(func() {
			if !current() {
				return
			}
			p, ok := r.participants[id]
			if !ok {
				return
			}
			switch track.Kind() {
			case webrtc.RTPCodecTypeAudio:
				p.AudioTrack = track
			case webrtc.RTPCodecTypeVideo:
				p.VideoTrack = track
			}
			r.notify()
		})
		if c.opts.OnRemoteTrack != nil {
			c.opts.OnRemoteTrack(id, track, receiver)
		}
	})

	conn.OnStateChange(func(s webrtc.PeerConnectionState) {
		c.post(func() {
			if !current() {
				return
			}
			p, ok := r.participants[id]
			if !ok {
				return
			}
			next := p.Peer
			switch s {
			case webrtc.PeerConnectionStateConnected:
				next = PeerConnected
			case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
				next = PeerClosed
			}
			if next != p.Peer {
				p.Peer = next
				r.notify()
			}
		})
	})
}

func (r *Room) flushCandidates(id domain.UserID, conn core.MediaConnection) {
	pending := r.pendingICE[id]
	delete(r.pendingICE, id)
	for _, ci := range pending {
		if err := conn.AddICECandidate(ci); err != nil {
			log.Warn().Err(err).Str("module", "call").Str("peer", string(id)).Msg("buffered candidate rejected")
		}
	}
}

// peerFailed isolates a negotiation error to one participant.
func (r *Room) peerFailed(id domain.UserID, step string, err error) {
	log.Error().Err(err).Str("module", "call").Str("room_id", string(r.id)).Str("peer", string(id)).Str("step", step).Msg("peer negotiation failed")
	r.closePeer(id)
	if p, ok := r.participants[id]; ok {
		p.Peer = PeerClosed
	}
	r.notify()
}

func (r *Room) offerTo(ctx context.Context, id domain.UserID) {
	conn, err := r.newPeer(id)
	if err != nil {
		r.peerFailed(id, "create", err)
		return
	}
	offer, err := conn.CreateOffer()
	if err != nil {
		r.peerFailed(id, "offer", err)
		return
	}
	r.notify()
	r.send(ctx, core.SignalMessage{
		Type:   core.SignalOffer,
		RoomID: r.id,
		From:   r.localID,
		To:     id,
		Data:   &core.SignalData{Offer: offer, UserName: r.localName},
	})
}

func (r *Room) answerTo(ctx context.Context, msg core.SignalMessage) {
	from := msg.From
	if msg.Data == nil || msg.Data.Offer == nil {
		log.Warn().Str("module", "call").Str("peer", string(from)).Msg("offer without session description")
		return
	}
	r.addRemote(from, msg.UserName())

	conn, err := r.newPeer(from)
	if err != nil {
		r.peerFailed(from, "create", err)
		return
	}
	answer, err := conn.ApplyOfferAndCreateAnswer(*msg.Data.Offer)
	if err != nil {
		r.peerFailed(from, "answer", err)
		return
	}
	r.flushCandidates(from, conn)
	r.notify()
	r.send(ctx, core.SignalMessage{
		Type:   core.SignalAnswer,
		RoomID: r.id,
		From:   r.localID,
		To:     from,
		Data:   &core.SignalData{Answer: answer},
	})
}

func (r *Room) applyAnswer(msg core.SignalMessage) {
	conn, ok := r.peers[msg.From]
	if !ok || msg.Data == nil || msg.Data.Answer == nil {
		log.Warn().Str("module", "call").Str("peer", string(msg.From)).Msg("answer without matching offer")
		return
	}
	if err := conn.ApplyAnswer(*msg.Data.Answer); err != nil {
		r.peerFailed(msg.From, "apply answer", err)
		return
	}
	r.flushCandidates(msg.From, conn)
}

func (r *Room) applyCandidate(msg core.SignalMessage) {
	if msg.Data == nil || msg.Data.Candidate == nil {
		log.Warn().Str("module", "call").Str("peer", string(msg.From)).Msg("ice_candidate without candidate")
		return
	}
	conn, ok := r.peers[msg.From]
	if !ok {
		r.pendingICE[msg.From] = append(r.pendingICE[msg.From], *msg.Data.Candidate)
		log.Debug().Str("module", "call").Str("peer", string(msg.From)).Int("pending", len(r.pendingICE[msg.From])).Msg("candidate buffered")
		return
	}
	if err := conn.AddICECandidate(*msg.Data.Candidate); err != nil {
		log.Warn().Err(err).Str("module", "call").Str("peer", string(msg.From)).Msg("candidate rejected")
	}
}

func (r *Room) closePeer(id domain.UserID) {
	conn, ok := r.peers[id]
	if !ok {
		return
	}
	delete(r.peers, id)
	conn.Close()
	if p, ok := r.participants[id]; ok {
		p.Peer = PeerClosed
	}
}

func (r *Room) closePeers() {
	for id := range r.peers {
		r.closePeer(id)
	}
	clear(r.pendingICE)
}

// teardown releases everything without signaling.
func (r *Room) teardown() {
	if r.stream != nil {
		r.stream.Stop()
		r.stream = nil
	}
	r.closePeers()
	if r.local != nil {
		delete(r.participants, r.localID)
		r.local = nil
	}
	r.setState(StateLeft)
	r.notify()
}
