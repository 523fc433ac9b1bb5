package transport

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Chorus/internal/core"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/rs/zerolog/log"
)

// Handler receives each delivered message. ctx is cancelled once the
// receiver is stopped or superseded.
type Handler = func(ctx context.Context, msg core.SignalMessage)

type Drainer interface {
	Poll(ctx context.Context, room domain.RoomID, user domain.UserID) ([]core.SignalMessage, error)
}

// Poller drains the mailbox on a fixed interval. At most one polling loop
// runs per Poller; Start supersedes the previous one.
type Poller struct {
	src      Drainer
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewPoller(src Drainer, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{src: src, interval: interval}
}

func (p *Poller) Start(room domain.RoomID, user domain.UserID, h Handler) error {
	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.mu.Unlock()

	log.Info().Str("module", "transport").Str("room_id", string(room)).Str("user_id", string(user)).Dur("interval", p.interval).Msg("polling started")
	go p.loop(ctx, room, user, h)
	return nil
}

// Stop cancels polling immediately. It does not wait for an in-flight tick,
// so it is safe to call from a Handler.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
		log.Info().Str("module", "transport").Msg("polling stopped")
	}
}

func (p *Poller) loop(ctx context.Context, room domain.RoomID, user domain.UserID, h Handler) {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			msgs, err := p.src.Poll(ctx, room, user)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Str("module", "transport").Str("user_id", string(user)).Msg("poll failed")
				}
				continue
			}
			for _, m := range msgs {
				if ctx.Err() != nil {
					return
				}
				h(ctx, m)
			}
		}
	}
}
