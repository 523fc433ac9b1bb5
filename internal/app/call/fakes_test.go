package call

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/Chorus/internal/core"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/pion/webrtc/v4"
)

type fakeSignaler struct {
	mu      sync.Mutex
	sent    []core.SignalMessage
	joins   int
	leaves  int
	sendErr error
	joinErr error

	// when gate is set, Send reports on entered and waits for gate to close
	gate    chan struct{}
	entered chan struct{}
}

// hold makes the next sends block like a slow network until the returned
// func is called.
func (f *fakeSignaler) hold() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 1)
	gate := f.gate
	var once sync.Once
	return f.entered, func() {
		once.Do(func() { close(gate) })
	}
}

func (f *fakeSignaler) Join(context.Context, domain.RoomID, domain.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins++
	return f.joinErr
}

func (f *fakeSignaler) Leave(context.Context, domain.RoomID, domain.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves++
	return f.sendErr
}

func (f *fakeSignaler) Send(_ context.Context, msg core.SignalMessage) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	gate, entered, err := f.gate, f.entered, f.sendErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
	}
	return err
}

func (f *fakeSignaler) sentOf(t core.SignalType) []core.SignalMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.SignalMessage
	for _, m := range f.sent {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type fakeReceiver struct {
	mu      sync.Mutex
	handler func(context.Context, core.SignalMessage)
	starts  int
	stops   int
}

func (f *fakeReceiver) Start(_ domain.RoomID, _ domain.UserID, h func(context.Context, core.SignalMessage)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
	f.starts++
	return nil
}

func (f *fakeReceiver) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeReceiver) deliver(msg core.SignalMessage) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(context.Background(), msg)
}

type fakeStream struct {
	mu      sync.Mutex
	audio   bool
	video   bool
	stopped int
	tracks  []webrtc.TrackLocal
}

func (s *fakeStream) Tracks() []webrtc.TrackLocal { return s.tracks }
func (s *fakeStream) SetAudioEnabled(v bool) {
	s.mu.Lock()
	s.audio = v
	s.mu.Unlock()
}
func (s *fakeStream) SetVideoEnabled(v bool) {
	s.mu.Lock()
	s.video = v
	s.mu.Unlock()
}
func (s *fakeStream) Stop() {
	s.mu.Lock()
	s.stopped++
	s.audio, s.video = false, false
	s.mu.Unlock()
}

type fakeConn struct {
	mu         sync.Mutex
	peer       domain.UserID
	tracks     int
	remote     *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	closed     bool
	offerErr   error
	answerErr  error

	onICE   func(webrtc.ICECandidateInit)
	onTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
	onState func(webrtc.PeerConnectionState)
}

func (f *fakeConn) AddLocalTrack(webrtc.TrackLocal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks++
	return nil
}

func (f *fakeConn) CreateOffer() (*webrtc.SessionDescription, error) {
	if f.offerErr != nil {
		return nil, f.offerErr
	}
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-for-" + string(f.peer)}, nil
}

func (f *fakeConn) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	f.mu.Lock()
	f.remote = &offer
	f.mu.Unlock()
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-for-" + string(f.peer)}, nil
}

func (f *fakeConn) ApplyAnswer(answer webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remote = &answer
	return nil
}

func (f *fakeConn) AddICECandidate(ci webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, ci)
	return nil
}

func (f *fakeConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	f.mu.Lock()
	f.onICE = fn
	f.mu.Unlock()
}

func (f *fakeConn) emitICE(ci webrtc.ICECandidateInit) {
	f.mu.Lock()
	fn := f.onICE
	f.mu.Unlock()
	fn(ci)
}
func (f *fakeConn) OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	f.onTrack = fn
}
func (f *fakeConn) OnStateChange(fn func(webrtc.PeerConnectionState)) { f.onState = fn }

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) candidateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.candidates)
}

type fakePeers struct {
	mu    sync.Mutex
	conns map[domain.UserID][]*fakeConn
	fail  map[domain.UserID]error
	setup func(*fakeConn)
}

func newFakePeers() *fakePeers {
	return &fakePeers{conns: make(map[domain.UserID][]*fakeConn), fail: make(map[domain.UserID]error)}
}

func (f *fakePeers) NewConnection(peer domain.UserID) (core.MediaConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[peer]; err != nil {
		return nil, err
	}
	c := &fakeConn{peer: peer}
	if f.setup != nil {
		f.setup(c)
	}
	f.conns[peer] = append(f.conns[peer], c)
	return c, nil
}

func (f *fakePeers) latest(peer domain.UserID) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	cs := f.conns[peer]
	if len(cs) == 0 {
		return nil
	}
	return cs[len(cs)-1]
}

func (f *fakePeers) all() []*fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakeConn
	for _, cs := range f.conns {
		out = append(out, cs...)
	}
	return out
}

var errCameraDenied = errors.New("permission denied")
