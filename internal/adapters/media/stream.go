// Package media provides local capture streams backed by pion sample tracks.
package media

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoDevice      = errors.New("no capture device available")
	ErrTrackStopped  = errors.New("track stopped")
	errTrackDisabled = errors.New("track disabled")
)

// Track is a local capture track with a mute bit. Disabled tracks drop samples.
type Track struct {
	local   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
	stopped atomic.Bool
}

func newTrack(mime, kind, streamID string) (*Track, error) {
	local, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, kind, streamID)
	if err != nil {
		return nil, err
	}
	return &Track{local: local}, nil
}

func (t *Track) Local() webrtc.TrackLocal { return t.local }

func (t *Track) Kind() webrtc.RTPCodecType { return t.local.Kind() }

func (t *Track) Enabled() bool { return t.enabled.Load() }

func (t *Track) SetEnabled(v bool) { t.enabled.Store(v) }

func (t *Track) Stopped() bool { return t.stopped.Load() }

// Stop releases the track. Further samples are rejected.
func (t *Track) Stop() {
	if t.stopped.Swap(true) {
		return
	}
	t.enabled.Store(false)
}

// WriteSample forwards a captured sample to every bound peer connection.
func (t *Track) WriteSample(s pionmedia.Sample) error {
	if t.stopped.Load() {
		return ErrTrackStopped
	}
	if !t.enabled.Load() {
		return errTrackDisabled
	}
	return t.local.WriteSample(s)
}

// Stream is the local participant's capture: one audio and one video track,
// both disabled until the user turns them on.
type Stream struct {
	ID    string
	Audio *Track
	Video *Track
}

func (s *Stream) Tracks() []webrtc.TrackLocal {
	out := make([]webrtc.TrackLocal, 0, 2)
	if s.Audio != nil {
		out = append(out, s.Audio.Local())
	}
	if s.Video != nil {
		out = append(out, s.Video.Local())
	}
	return out
}

func (s *Stream) SetAudioEnabled(v bool) {
	if s.Audio != nil {
		s.Audio.SetEnabled(v)
	}
}

func (s *Stream) SetVideoEnabled(v bool) {
	if s.Video != nil {
		s.Video.SetEnabled(v)
	}
}

func (s *Stream) Stop() {
	if s.Audio != nil {
		s.Audio.Stop()
	}
	if s.Video != nil {
		s.Video.Stop()
	}
	log.Debug().Str("module", "media").Str("stream_id", s.ID).Msg("capture released")
}

// Source opens capture tracks. Audio and Video select which devices exist.
type Source struct {
	Audio bool
	Video bool
}

func (src Source) Acquire(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !src.Audio && !src.Video {
		return nil, ErrNoDevice
	}
	s := &Stream{ID: uuid.NewString()}
	if src.Audio {
		t, err := newTrack(webrtc.MimeTypeOpus, "audio", s.ID)
		if err != nil {
			return nil, err
		}
		s.Audio = t
	}
	if src.Video {
		t, err := newTrack(webrtc.MimeTypeVP8, "video", s.ID)
		if err != nil {
			return nil, err
		}
		s.Video = t
	}
	log.Info().Str("module", "media").Str("stream_id", s.ID).Bool("audio", src.Audio).Bool("video", src.Video).Msg("capture acquired")
	return s, nil
}
