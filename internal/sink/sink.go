// Package sink binds a sample stream to the output device.
//
// A Sink plays exactly one stream. Replacing what is audible means stopping
// the current Sink, which clears the device queue, and building a new one on
// the same Device.
package sink

import (
	"math"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
)

// DefaultResampleQuality is the beep resampler quality used when the stream
// rate differs from the device rate.
const DefaultResampleQuality = 4

// Sink is the live binding between one stream and a Device.
type Sink struct {
	dev     Device
	quality int

	mu     sync.Mutex
	ctrl   *beep.Ctrl
	volume *effects.Volume
	level  float64
	paused bool // held before Append

	done     chan struct{}
	doneOnce sync.Once
	stopped  bool
}

// New returns an empty sink on dev with the given linear volume.
func New(dev Device, volume float64, quality int) *Sink {
	if quality <= 0 {
		quality = DefaultResampleQuality
	}
	return &Sink{
		dev:     dev,
		quality: quality,
		level:   clampLevel(volume),
		done:    make(chan struct{}),
	}
}

// Append starts s on the device. s produces frames at rate and is resampled
// to the device rate when they differ. A sink accepts one stream; later
// calls are ignored.
func (s *Sink) Append(src beep.Streamer, rate beep.SampleRate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl != nil || s.stopped {
		return
	}

	if devRate := s.dev.SampleRate(); rate > 0 && rate != devRate {
		src = beep.Resample(s.quality, rate, devRate, src)
	}
	s.ctrl = &beep.Ctrl{Streamer: src, Paused: s.paused}
	s.volume = &effects.Volume{Streamer: s.ctrl, Base: 2}
	applyLevel(s.volume, s.level)

	s.dev.Play(beep.Seq(s.volume, beep.Callback(s.finish)))
}

// finish runs on the device goroutine when the stream is exhausted.
func (s *Sink) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Play resumes output.
func (s *Sink) Play() { s.setPaused(false) }

// Pause holds output at the current sample. Pausing twice is the same as
// pausing once. Pausing before Append makes the stream start held, so none of
// it is audible until Play.
func (s *Sink) Pause() { s.setPaused(true) }

func (s *Sink) setPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.ctrl == nil {
		s.paused = paused
		return
	}
	s.dev.Lock()
	s.ctrl.Paused = paused
	s.dev.Unlock()
}

// Paused reports whether output is held.
func (s *Sink) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return s.paused
	}
	s.dev.Lock()
	defer s.dev.Unlock()
	return s.ctrl.Paused
}

// Stop silences the sink immediately by clearing the device queue.
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.ctrl != nil {
		s.dev.Clear()
	}
}

// Stopped reports whether Stop was called.
func (s *Sink) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Done is closed once the stream has played to its end. Stopping a sink
// does not close it.
func (s *Sink) Done() <-chan struct{} { return s.done }

// SetVolume applies a linear gain at once. 1 is unity, 0 is silent, values
// above 1 amplify.
func (s *Sink) SetVolume(level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = clampLevel(level)
	if s.volume == nil {
		return
	}
	s.dev.Lock()
	applyLevel(s.volume, s.level)
	s.dev.Unlock()
}

// Volume returns the linear gain.
func (s *Sink) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

func clampLevel(level float64) float64 {
	if level < 0 || math.IsNaN(level) {
		return 0
	}
	return level
}

// applyLevel converts a linear gain to beep's base-2 exponent.
// 1 -> 0, 0.5 -> -1, 2 -> 1; 0 mutes.
func applyLevel(v *effects.Volume, level float64) {
	if level <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(level)
}
