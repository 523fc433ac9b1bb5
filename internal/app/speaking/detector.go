// Package speaking derives who is currently talking from the energy of each
// remote audio stream. The result is a local signal only.
//
// Without decoding, the energy comes from the ssrc-audio-level RTP header
// extension, so only senders that stamp it can be detected as speaking.
package speaking

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Chorus/internal/app/call"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	DefaultThreshold = 30
	DefaultInterval  = 100 * time.Millisecond

	AudioLevelURI = "urn:ietf:params:rtp-hdrext:ssrc-audio-level"
)

type Source interface {
	Analyser(id domain.UserID) (Analyser, bool)
}

// Detector recomputes the speaking set from scratch on every tick.
type Detector struct {
	Threshold float64
	Analysers Source
}

func NewDetector(src Source, threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{Threshold: threshold, Analysers: src}
}

// Tick considers remote participants that announced audio and whose stream
// has an analyser attached.
func (d *Detector) Tick(participants []call.Participant) map[domain.UserID]struct{} {
	out := make(map[domain.UserID]struct{})
	for _, p := range participants {
		if p.IsLocal || !p.IsAudioEnabled {
			continue
		}
		a, ok := d.Analysers.Analyser(p.ID)
		if !ok {
			continue
		}
		if a.Level() > d.Threshold {
			out[p.ID] = struct{}{}
		}
	}
	return out
}

// Run ticks every interval until ctx is done. snapshot supplies the current
// participants; emit receives each tick's result.
func (d *Detector) Run(ctx context.Context, interval time.Duration, snapshot func(context.Context) ([]call.Participant, error), emit func(map[domain.UserID]struct{})) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ps, err := snapshot(ctx)
			if err != nil {
				log.Debug().Err(err).Str("module", "speaking").Msg("snapshot failed")
				continue
			}
			emit(d.Tick(ps))
		}
	}
}

// Registry maps participants to the analyser of their audio stream.
type Registry struct {
	mu        sync.RWMutex
	analysers map[domain.UserID]Analyser
}

func NewRegistry() *Registry {
	return &Registry{analysers: make(map[domain.UserID]Analyser)}
}

func (r *Registry) Analyser(id domain.UserID) (Analyser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analysers[id]
	return a, ok
}

func (r *Registry) Set(id domain.UserID, a Analyser) {
	r.mu.Lock()
	r.analysers[id] = a
	r.mu.Unlock()
}

// Remove drops id's analyser if it is still a.
func (r *Registry) Remove(id domain.UserID, a Analyser) {
	r.mu.Lock()
	if r.analysers[id] == a {
		delete(r.analysers, id)
	}
	r.mu.Unlock()
}

// Attach starts reading an incoming audio track and feeding its audio level
// into a fresh analyser for peer. It matches call.Options.OnRemoteTrack.
// The level is taken from the audio-level header extension; a peer whose
// sender does not stamp it never counts as speaking.
func (r *Registry) Attach(peer domain.UserID, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	if track == nil || track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	var extID uint8
	if receiver != nil {
		for _, ext := range receiver.GetParameters().HeaderExtensions {
			if ext.URI == AudioLevelURI {
				extID = uint8(ext.ID)
			}
		}
	}
	if extID == 0 {
		log.Warn().Str("module", "speaking").Str("peer", string(peer)).Msg("audio level extension not negotiated")
		return
	}

	a := NewRTPLevelAnalyser(extID)
	r.Set(peer, a)
	go func() {
		defer r.Remove(peer, a)
		for {
			pkt, _, err := track.ReadRTP()
			if err != nil {
				log.Debug().Err(err).Str("module", "speaking").Str("peer", string(peer)).Msg("audio track ended")
				return
			}
			a.Observe(pkt)
		}
	}()
}
