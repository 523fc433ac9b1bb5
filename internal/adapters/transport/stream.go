package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Chorus/internal/core"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Stream receives pushed messages over the websocket stream endpoint. It is a
// drop-in replacement for Poller and reconnects every retry interval until stopped.
type Stream struct {
	url    func(domain.RoomID, domain.UserID) string
	dialer *websocket.Dialer
	retry  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewStream(c *Client, retry time.Duration) *Stream {
	if retry <= 0 {
		retry = time.Second
	}
	return &Stream{
		url:    c.StreamURL,
		dialer: &websocket.Dialer{Jar: c.Jar(), HandshakeTimeout: 5 * time.Second, Proxy: http.ProxyFromEnvironment},
		retry:  retry,
	}
}

func (s *Stream) Start(room domain.RoomID, user domain.UserID, h Handler) error {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(ctx, room, user, h)
	return nil
}

func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Stream) run(ctx context.Context, room domain.RoomID, user domain.UserID, h Handler) {
	for {
		if err := s.session(ctx, room, user, h); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("module", "transport").Str("user_id", string(user)).Msg("stream dropped")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retry):
		}
	}
}

func (s *Stream) session(ctx context.Context, room domain.RoomID, user domain.UserID, h Handler) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url(room, user), nil)
	if err != nil {
		return err
	}
	log.Info().Str("module", "transport").Str("room_id", string(room)).Str("user_id", string(user)).Msg("stream connected")

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg core.SignalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Error().Err(err).Str("module", "transport").Msg("bad stream frame")
			continue
		}
		if msg.Type == "pong" {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		h(ctx, msg)
	}
}
