package http

import (
	"sync"
	"time"

	"github.com/dkeye/Chorus/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultLimiterIdle is how long an unused bucket is kept.
const DefaultLimiterIdle = 5 * time.Minute

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// SendLimiter keeps one token bucket per sending user. Buckets unused for
// longer than the idle period are swept, so ids that never leave don't pile up.
type SendLimiter struct {
	mu        sync.Mutex
	buckets   map[domain.UserID]*bucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewSendLimiter(perSecond float64, burst int) *SendLimiter {
	return &SendLimiter{
		buckets:   make(map[domain.UserID]*bucket),
		limit:     rate.Limit(perSecond),
		burst:     burst,
		idle:      DefaultLimiterIdle,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *SendLimiter) Allow(uid domain.UserID) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	b, ok := l.buckets[uid]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[uid] = b
	}
	b.lastSeen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

// sweep must be called with mu held.
func (l *SendLimiter) sweep(now time.Time) {
	evicted := 0
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idle {
			delete(l.buckets, id)
			evicted++
		}
	}
	l.lastSweep = now
	if evicted > 0 {
		log.Debug().Str("module", "adapters.http").Int("evicted", evicted).Int("kept", len(l.buckets)).Msg("idle send buckets swept")
	}
}

// Forget drops uid's bucket, called when the user leaves its call.
func (l *SendLimiter) Forget(uid domain.UserID) {
	l.mu.Lock()
	delete(l.buckets, uid)
	l.mu.Unlock()
}
