// Package tap observes the samples pulled by the output device.
//
// A Tap sits between a decoded track and the sink. Every frame it forwards is
// also appended, channel by channel, to a fixed-size window; full windows are
// copied and published on a Bus without blocking the caller of Stream.
package tap

import (
	"sync/atomic"

	"github.com/gopxl/beep/v2"
)

// DefaultWindowSize is the number of interleaved samples in a window.
const DefaultWindowSize = 1024

// Tap is a pass-through beep.Streamer feeding a Bus.
type Tap struct {
	src      beep.Streamer
	channels int
	bus      *Bus

	buf      []float64
	consumed atomic.Int64
	windows  atomic.Int64
}

// New wraps src. channels is 1 or 2 and tells how many samples each frame
// contributes; windowSize is the window capacity in samples.
func New(src beep.Streamer, channels, windowSize int, bus *Bus) *Tap {
	if channels < 1 || channels > 2 {
		channels = 2
	}
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Tap{
		src:      src,
		channels: channels,
		bus:      bus,
		buf:      make([]float64, 0, windowSize),
	}
}

// Stream pulls from the wrapped streamer and returns its frames unchanged.
// It runs on the speaker goroutine: the only allocation is the window copy
// made when the buffer fills, and publishing never blocks.
func (t *Tap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.src.Stream(samples)
	// Counted before publishing, so a subscriber reading Consumed never
	// lags the windows it received.
	t.consumed.Add(int64(n * t.channels))
	window := cap(t.buf)
	for i := range n {
		for c := range t.channels {
			t.buf = append(t.buf, samples[i][c])
			if len(t.buf) == window {
				t.flush()
			}
		}
	}
	return n, ok
}

func (t *Tap) flush() {
	w := make([]float64, len(t.buf))
	copy(w, t.buf)
	t.buf = t.buf[:0]
	t.windows.Add(1)
	if t.bus != nil {
		t.bus.Publish(w)
	}
}

// Err implements beep.Streamer.
func (t *Tap) Err() error { return t.src.Err() }

// Channels returns the number of samples taken per frame.
func (t *Tap) Channels() int { return t.channels }

// WindowSize returns the window capacity.
func (t *Tap) WindowSize() int { return cap(t.buf) }

// Consumed returns the number of interleaved samples pulled so far.
func (t *Tap) Consumed() int64 { return t.consumed.Load() }

// Windows returns the number of full windows emitted so far.
func (t *Tap) Windows() int64 { return t.windows.Load() }
