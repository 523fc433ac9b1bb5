package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Chorus/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

// writePump is the only writer on the socket. It drains the user's queue on
// every mailbox wake-up and on the push interval.
func (ctl *StreamController) writePump(ctx context.Context, s *streamSession) {
	defer s.conn.Close()

	var wake <-chan struct{}
	if n, ok := ctl.Orch.Notifier(); ok {
		ch, unsubscribe := n.Subscribe(s.user)
		defer unsubscribe()
		wake = ch
	}

	push := time.NewTicker(ctl.opts.PushInterval)
	defer push.Stop()
	ping := time.NewTicker(ctl.opts.PingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", s.sid).Msg("writePump ctx done")
			return
		case <-wake:
			if !ctl.flush(s) {
				return
			}
		case <-push.C:
			if !ctl.flush(s) {
				return
			}
		case data, ok := <-s.conn.send:
			if !ok {
				log.Warn().Str("module", "signal").Str("sid", s.sid).Msg("writePump channel closed")
				return
			}
			if err := write(s.conn.conn, websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", s.sid).Msg("writePump write error")
				return
			}
		case <-ping.C:
			if err := write(s.conn.conn, websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", s.sid).Msg("writePump ping error")
				return
			}
		}
	}
}

// flush drains the queue and writes each message as its own text frame, in order.
func (ctl *StreamController) flush(s *streamSession) bool {
	msgs := ctl.Orch.Poll(s.user)
	for i, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			log.Error().Err(err).Str("module", "signal").Str("type", string(m.Type)).Msg("flush marshal")
			continue
		}
		if err := write(s.conn.conn, websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "signal").Str("sid", s.sid).Str("user_id", string(s.user)).Int("lost", len(msgs)-i).Msg("flush write error")
			return false
		}
	}
	return true
}

func write(conn *websocket.Conn, kind int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(kind, data)
}

func (ctl *StreamController) readPump(ctx context.Context, s *streamSession) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", s.sid).Str("user_id", string(s.user)).Msg("readPump closing")
		s.conn.Close()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	s.conn.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = s.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.conn.SetPongHandler(func(string) error {
		return s.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", s.sid).Msg("readPump ctx done")
			return
		default:
			_, data, err := s.conn.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Error().Err(err).Str("module", "signal").Str("sid", s.sid).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(s, data)
		}
	}
}

// handleSignal routes a frame sent upstream on the stream. The stream is bound
// to one user, so frames claiming another sender are dropped.
func (ctl *StreamController) handleSignal(s *streamSession, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "ping":
		ctl.handlePing(s.conn)
	default:
		var msg core.SignalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad signal payload")
			return
		}
		if msg.From != s.user {
			log.Warn().Str("module", "signal").Str("sid", s.sid).Str("from", string(msg.From)).Str("user_id", string(s.user)).Msg("stream sender mismatch")
			return
		}
		if msg.RoomID == "" {
			msg.RoomID = s.room
		}
		if err := ctl.Orch.Send(msg); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("type", string(msg.Type)).Msg("signal rejected")
		}
	}
}

func (ctl *StreamController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
