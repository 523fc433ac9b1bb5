package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Chorus/internal/app/orch"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

type StreamOptions struct {
	// PushInterval bounds how long a queued message can wait when no wake-up arrives.
	PushInterval time.Duration
	ReadLimit    int64
	PingPeriod   time.Duration
}

// StreamController serves the push alternative to polling: one websocket per
// (room, user) that drains the user's mailbox queue as messages arrive.
type StreamController struct {
	Orch *orch.Orchestrator
	opts StreamOptions
}

func NewStreamController(o *orch.Orchestrator, opts StreamOptions) *StreamController {
	if opts.PushInterval <= 0 {
		opts.PushInterval = time.Second
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 32768
	}
	return &StreamController{Orch: o, opts: opts}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type streamSession struct {
	sid  string
	room domain.RoomID
	user domain.UserID
	conn *WsSignalConn
}

func (ctl *StreamController) HandleStream(ctx context.Context, c *gin.Context) {
	user := domain.UserID(c.Query("userId"))
	room := domain.RoomID(c.Query("roomId"))
	if err := domain.ValidateUserID(user); err != nil || room == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID and Room ID required"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	s := &streamSession{
		sid:  c.GetString("client_token"),
		room: room,
		user: user,
		conn: &WsSignalConn{conn: ws, send: make(chan []byte, 64)},
	}
	log.Info().Str("module", "signal").Str("sid", s.sid).Str("room_id", string(room)).Str("user_id", string(user)).Msg("new stream connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, s)
	go func() {
		defer cancel()
		ctl.readPump(ctx, s)
	}()
}
