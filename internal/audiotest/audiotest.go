// Package audiotest provides deterministic audio fixtures for tests: tone
// generators, WAV files written to a temp dir, and an output device that is
// pulled by the test instead of a hardware callback.
package audiotest

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// Tone is a finite sine wave streamer.
type Tone struct {
	Rate   beep.SampleRate
	Freq   float64
	Amp    float64
	Frames int
	pos    int
}

// NewTone returns a tone of the given frequency lasting d.
func NewTone(rate beep.SampleRate, freq float64, d time.Duration) *Tone {
	return &Tone{Rate: rate, Freq: freq, Amp: 0.5, Frames: rate.N(d)}
}

// Stream implements beep.Streamer.
func (t *Tone) Stream(samples [][2]float64) (int, bool) {
	if t.pos >= t.Frames {
		return 0, false
	}
	n := min(len(samples), t.Frames-t.pos)
	for i := range n {
		v := t.Amp * math.Sin(2*math.Pi*t.Freq*float64(t.pos+i)/float64(t.Rate))
		samples[i] = [2]float64{v, v}
	}
	t.pos += n
	return n, true
}

// Err implements beep.Streamer.
func (t *Tone) Err() error { return nil }

// Ramp yields frames whose left value is the frame index scaled by Step and
// whose right value is its negation. Useful to check ordering and continuity.
type Ramp struct {
	Frames int
	Step   float64
	pos    int
}

// Stream implements beep.Streamer.
func (r *Ramp) Stream(samples [][2]float64) (int, bool) {
	if r.pos >= r.Frames {
		return 0, false
	}
	n := min(len(samples), r.Frames-r.pos)
	for i := range n {
		v := float64(r.pos+i) * r.Step
		samples[i] = [2]float64{v, -v}
	}
	r.pos += n
	return n, true
}

// Err implements beep.Streamer.
func (r *Ramp) Err() error { return nil }

// WriteWAV writes a 16-bit WAV file containing a 440 Hz tone and returns its path.
func WriteWAV(tb testing.TB, dir, name string, rate beep.SampleRate, channels int, d time.Duration) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	format := beep.Format{SampleRate: rate, NumChannels: channels, Precision: 2}
	if err := wav.Encode(f, NewTone(rate, 440, d), format); err != nil {
		tb.Fatalf("encode %s: %v", path, err)
	}
	return path
}

// WriteFile writes raw bytes to dir/name and returns the path.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Device is an output device driven by the test. It satisfies sink.Device.
type Device struct {
	mu        sync.Mutex
	rate      beep.SampleRate
	streamers []beep.Streamer
	clears    int
	last      [][2]float64
}

// NewDevice returns a device running at rate.
func NewDevice(rate beep.SampleRate) *Device {
	return &Device{rate: rate}
}

// SampleRate returns the device rate.
func (d *Device) SampleRate() beep.SampleRate { return d.rate }

// Play queues s for mixing.
func (d *Device) Play(s beep.Streamer) {
	d.mu.Lock()
	d.streamers = append(d.streamers, s)
	d.mu.Unlock()
}

// Clear drops every queued streamer.
func (d *Device) Clear() {
	d.mu.Lock()
	d.streamers = nil
	d.clears++
	d.mu.Unlock()
}

// Lock locks the mixer, like speaker.Lock.
func (d *Device) Lock() { d.mu.Lock() }

// Unlock unlocks the mixer.
func (d *Device) Unlock() { d.mu.Unlock() }

// Pull mixes frames frames out of the queued streamers, removing drained ones,
// and returns how many frames the first streamer produced.
func (d *Device) Pull(frames int) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = make([][2]float64, frames)
	produced := 0
	buf := make([][2]float64, frames)
	kept := d.streamers[:0]
	for i, s := range d.streamers {
		n, ok := s.Stream(buf)
		if i == 0 {
			produced = n
		}
		for j := range n {
			d.last[j][0] += buf[j][0]
			d.last[j][1] += buf[j][1]
		}
		if ok {
			kept = append(kept, s)
		}
	}
	d.streamers = kept
	return produced
}

// Drain pulls in chunks until nothing is queued or limit frames were pulled.
func (d *Device) Drain(chunk, limit int) int {
	total := 0
	for total < limit && d.Active() > 0 {
		total += d.Pull(chunk)
	}
	return total
}

// Last returns the frames mixed by the most recent Pull.
func (d *Device) Last() [][2]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Active returns the number of queued streamers.
func (d *Device) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streamers)
}

// Clears returns how many times Clear was called.
func (d *Device) Clears() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clears
}
