package speaking

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/pion/rtp"
)

const (
	WindowSize  = 256
	minDecibels = -100.0
	maxDecibels = -30.0
)

// Analyser reports the current energy of one audio stream on a 0..255 scale.
type Analyser interface {
	Level() float64
}

// byteScale maps a decibel value onto 0..255 the way browser analysers do.
func byteScale(db float64) float64 {
	v := 255 * (db - minDecibels) / (maxDecibels - minDecibels)
	return math.Max(0, math.Min(255, v))
}

// PCMAnalyser keeps the last WindowSize decoded samples and reports the
// average magnitude across the lower half of their spectrum.
//
// It is the entry point for callers that decode remote audio themselves
// (an Opus decoder feeding WriteInt16, for instance) and register the
// analyser with Registry.Set. Registry.Attach does not decode and uses
// RTPLevelAnalyser instead.
type PCMAnalyser struct {
	mu     sync.Mutex
	window [WindowSize]float64
	next   int
	filled bool
}

func NewPCMAnalyser() *PCMAnalyser {
	return &PCMAnalyser{}
}

// Write appends samples in [-1, 1].
func (a *PCMAnalyser) Write(samples []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.window[a.next] = s
		a.next++
		if a.next == WindowSize {
			a.next = 0
			a.filled = true
		}
	}
}

// WriteInt16 appends signed 16-bit PCM.
func (a *PCMAnalyser) WriteInt16(pcm []int16) {
	buf := make([]float64, len(pcm))
	for i, s := range pcm {
		buf[i] = float64(s) / 32768
	}
	a.Write(buf)
}

func (a *PCMAnalyser) Level() float64 {
	a.mu.Lock()
	var x [WindowSize]float64
	n := 0
	if a.filled {
		n = copy(x[:], a.window[a.next:])
	}
	copy(x[n:], a.window[:a.next])
	a.mu.Unlock()

	return spectrumAverage(x[:])
}

// spectrumAverage applies a Blackman window, takes the DFT and averages the
// byte-scaled magnitudes of the first len(x)/2 bins.
func spectrumAverage(x []float64) float64 {
	n := len(x)
	const alpha = 0.16
	a0, a1, a2 := (1-alpha)/2, 0.5, alpha/2
	w := make([]float64, n)
	for i := range x {
		f := 2 * math.Pi * float64(i) / float64(n)
		w[i] = x[i] * (a0 - a1*math.Cos(f) + a2*math.Cos(2*f))
	}

	bins := n / 2
	var sum float64
	for k := 0; k < bins; k++ {
		var acc complex128
		for i, v := range w {
			acc += complex(v, 0) * cmplx.Rect(1, -2*math.Pi*float64(k*i)/float64(n))
		}
		mag := cmplx.Abs(acc) / float64(n)
		if mag == 0 {
			continue
		}
		sum += byteScale(20 * math.Log10(mag))
	}
	return sum / float64(bins)
}

// RTPLevelAnalyser reads the RFC 6464 audio level a sender stamps into each
// RTP header, so no decoding is needed. Streams from senders that do not
// stamp the extension (browsers do; pion sample tracks do not) stay at 0.
type RTPLevelAnalyser struct {
	extID uint8

	mu    sync.Mutex
	level float64
}

func NewRTPLevelAnalyser(extID uint8) *RTPLevelAnalyser {
	return &RTPLevelAnalyser{extID: extID}
}

// Observe records the level carried by pkt. Packets without the extension
// are ignored.
func (a *RTPLevelAnalyser) Observe(pkt *rtp.Packet) {
	raw := pkt.GetExtension(a.extID)
	if raw == nil {
		return
	}
	var ext rtp.AudioLevelExtension
	if err := ext.Unmarshal(raw); err != nil {
		return
	}
	a.mu.Lock()
	a.level = byteScale(-float64(ext.Level))
	a.mu.Unlock()
}

func (a *RTPLevelAnalyser) Level() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.level
}
