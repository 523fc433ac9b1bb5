// Package call is the client-side session controller of a mesh call: local
// capture, one peer connection per remote participant, and the signaling that
// keeps them in step.
package call

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Chorus/internal/core"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrMediaUnavailable = errors.New("media unavailable")
	ErrNotInCall        = errors.New("not in call")
	ErrNotConfirmed     = errors.New("user declined")
	ErrClosed           = errors.New("controller closed")
)

type Options struct {
	Signaler  Signaler
	Receiver  Receiver
	Media     MediaSource
	Peers     PeerFactory
	Confirmer Confirmer // nil accepts every prompt

	// OnRemoteTrack is called from the media goroutine for every remote
	// track, after the participant record is updated. The callee owns reading it.
	OnRemoteTrack func(peer domain.UserID, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
}

// Controller owns every call room of this process. All room state is touched
// only on the controller's task loop.
type Controller struct {
	opts Options

	tasks    chan func()
	quit     chan struct{}
	quitOnce sync.Once
	obs      *dispatcher

	// media callbacks, run on the loop in arrival order
	cbMu      sync.Mutex
	callbacks []func()
	cbWake    chan struct{}

	// loop-owned
	rooms  map[domain.RoomID]*Room
	states map[domain.RoomID]State

	confirmMu sync.Mutex
	confirmed map[Medium]bool
}

func NewController(opts Options) *Controller {
	if opts.Confirmer == nil {
		opts.Confirmer = AutoConfirm
	}
	c := &Controller{
		opts:      opts,
		tasks:     make(chan func(), 256),
		quit:      make(chan struct{}),
		cbWake:    make(chan struct{}, 1),
		obs:       newDispatcher(),
		rooms:     make(map[domain.RoomID]*Room),
		states:    make(map[domain.RoomID]State),
		confirmed: make(map[Medium]bool),
	}
	go c.loop()
	return c
}

func (c *Controller) loop() {
	for {
		select {
		case <-c.quit:
			return
		case <-c.cbWake:
			c.runCallbacks()
		case fn := <-c.tasks:
			// callbacks posted before fn was queued run first
			c.runCallbacks()
			fn()
		}
	}
}

func (c *Controller) runCallbacks() {
	c.cbMu.Lock()
	batch := c.callbacks
	c.callbacks = nil
	c.cbMu.Unlock()
	for _, fn := range batch {
		fn()
	}
}

// do runs fn on the loop and waits for it. ctx only bounds the wait for a slot.
func (c *Controller) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case c.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.quit:
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-c.quit:
		return ErrClosed
	}
}

// post queues fn for the loop without blocking. Media callbacks use it, so
// the queue is unbounded and keeps arrival order.
func (c *Controller) post(fn func()) {
	c.cbMu.Lock()
	c.callbacks = append(c.callbacks, fn)
	c.cbMu.Unlock()
	select {
	case c.cbWake <- struct{}{}:
	default:
	}
}

// Observe registers fn for participant snapshots. The returned func unregisters it.
func (c *Controller) Observe(fn Observer) func() {
	return c.obs.subscribe(fn)
}

// Join acquires local media, registers the local participant with both
// tracks disabled, starts the receiver and announces the join. A media
// failure leaves nothing behind and is returned.
func (c *Controller) Join(ctx context.Context, room domain.RoomID, user domain.UserID, name string) error {
	if err := domain.ValidateUserID(user); err != nil {
		return err
	}
	var err error
	if e := c.do(ctx, func() { err = c.join(ctx, room, user, name) }); e != nil {
		return e
	}
	return err
}

func (c *Controller) join(ctx context.Context, id domain.RoomID, user domain.UserID, name string) error {
	if r, ok := c.rooms[id]; ok {
		if r.local != nil {
			log.Debug().Str("module", "call").Str("room_id", string(id)).Msg("already joined")
			return nil
		}
		r.teardown()
		delete(c.rooms, id)
	}

	c.states[id] = StateRequestingMedia
	stream, err := c.opts.Media.Acquire(ctx)
	if err != nil {
		c.states[id] = StateIdle
		log.Error().Err(err).Str("module", "call").Str("room_id", string(id)).Msg("media acquisition failed")
		return fmt.Errorf("%w: %w", ErrMediaUnavailable, err)
	}
	stream.SetAudioEnabled(false)
	stream.SetVideoEnabled(false)

	r := newRoom(c, id, user, name, stream)
	c.rooms[id] = r
	r.setState(StateJoined)
	r.notify()

	if err := c.opts.Signaler.Join(ctx, id, user); err != nil {
		log.Warn().Err(err).Str("module", "call").Str("room_id", string(id)).Msg("mailbox join failed")
	}
	if err := c.opts.Receiver.Start(id, user, c.inbound(id)); err != nil {
		log.Error().Err(err).Str("module", "call").Str("room_id", string(id)).Msg("receiver start failed")
	}
	r.send(ctx, r.announce(core.SignalJoinCall))

	log.Info().Str("module", "call").Str("room_id", string(id)).Str("user_id", string(user)).Msg("joined call")
	return nil
}

// ToggleAudio turns the local microphone on or off. The first enable of a
// controller's lifetime needs the Confirmer's approval.
func (c *Controller) ToggleAudio(ctx context.Context, room domain.RoomID, enabled bool) error {
	return c.toggle(ctx, room, MediumAudio, enabled)
}

func (c *Controller) ToggleVideo(ctx context.Context, room domain.RoomID, enabled bool) error {
	return c.toggle(ctx, room, MediumVideo, enabled)
}

func (c *Controller) toggle(ctx context.Context, id domain.RoomID, m Medium, enabled bool) error {
	var joined bool
	if err := c.do(ctx, func() {
		r, ok := c.rooms[id]
		joined = ok && r.local != nil
	}); err != nil {
		return err
	}
	if !joined {
		return ErrNotInCall
	}

	if enabled {
		if err := c.confirm(ctx, m); err != nil {
			return err
		}
	}

	var err error
	if e := c.do(ctx, func() {
		r, ok := c.rooms[id]
		if !ok || r.local == nil {
			err = ErrNotInCall
			return
		}
		r.setLocalMedium(ctx, m, enabled)
	}); e != nil {
		return e
	}
	return err
}

func (c *Controller) confirm(ctx context.Context, m Medium) error {
	c.confirmMu.Lock()
	defer c.confirmMu.Unlock()
	if c.confirmed[m] {
		return nil
	}
	ok, err := c.opts.Confirmer.Confirm(ctx, m)
	if err != nil {
		return err
	}
	if !ok {
		log.Info().Str("module", "call").Str("medium", string(m)).Msg("enable declined")
		return ErrNotConfirmed
	}
	c.confirmed[m] = true
	return nil
}

// Leave releases local media, closes every peer connection of the room and
// stops receiving. It is safe to call repeatedly or without a prior Join.
// Media is released even if ctx is already done.
func (c *Controller) Leave(ctx context.Context, room domain.RoomID) error {
	err := c.do(context.WithoutCancel(ctx), func() { c.leave(ctx, room) })
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

func (c *Controller) leave(ctx context.Context, id domain.RoomID) {
	r, ok := c.rooms[id]
	if !ok || r.local == nil {
		return
	}
	user := r.localID

	r.stream.Stop()
	r.closePeers()
	delete(r.participants, user)
	r.local = nil
	r.stream = nil
	r.setState(StateLeft)
	c.opts.Receiver.Stop()

	r.send(ctx, r.announce(core.SignalLeaveCall))
	if err := c.opts.Signaler.Leave(ctx, id, user); err != nil {
		log.Warn().Err(err).Str("module", "call").Str("room_id", string(id)).Msg("mailbox leave failed")
	}

	if len(r.participants) == 0 {
		delete(c.rooms, id)
		log.Info().Str("module", "call").Str("room_id", string(id)).Msg("call room destroyed")
	}
	r.notify()
	log.Info().Str("module", "call").Str("room_id", string(id)).Str("user_id", string(user)).Msg("left call")
}

// Participants returns a snapshot of the room, local participant first.
func (c *Controller) Participants(ctx context.Context, room domain.RoomID) ([]Participant, error) {
	var out []Participant
	err := c.do(ctx, func() {
		if r, ok := c.rooms[room]; ok {
			out = r.snapshot()
		}
	})
	return out, err
}

func (c *Controller) State(ctx context.Context, room domain.RoomID) (State, error) {
	var s State
	err := c.do(ctx, func() { s = c.states[room] })
	return s, err
}

// Close force-stops all local media and peer connections without signaling
// and shuts the controller down. Later calls return ErrClosed.
func (c *Controller) Close() {
	_ = c.do(context.Background(), func() {
		for id, r := range c.rooms {
			r.teardown()
			delete(c.rooms, id)
		}
		c.opts.Receiver.Stop()
	})
	c.quitOnce.Do(func() {
		close(c.quit)
		c.obs.stop()
	})
}
