// Package engine is the playback controller.
//
// The Controller owns at most one live session: an opened track, the tap
// observing it, the sink playing it, and two worker goroutines turning tapped
// windows into spectrum and progress events. Every load or seek builds a new
// session and retires the previous one.
package engine

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/murmur/internal/decoder"
	"github.com/llehouerou/murmur/internal/progress"
	"github.com/llehouerou/murmur/internal/sink"
	"github.com/llehouerou/murmur/internal/spectrum"
	"github.com/llehouerou/murmur/internal/tap"
)

// Options tunes the sessions built by a Controller.
type Options struct {
	// WindowSize is the number of interleaved samples per analysis window.
	WindowSize int
	// Backlog is how many windows each worker may lag behind before the tap
	// starts dropping windows for it.
	Backlog int
	// Spectrum carries the frequency range, bar count and reduction.
	// WindowSize and SampleRate are filled in per track.
	Spectrum spectrum.Config
	// ProgressInterval is the minimum time between two progress events.
	ProgressInterval time.Duration
	// ResampleQuality is passed to the sink.
	ResampleQuality int
	// Volume is the initial linear gain.
	Volume float64
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		WindowSize:       tap.DefaultWindowSize,
		Backlog:          tap.DefaultBacklog,
		Spectrum:         spectrum.DefaultConfig(0),
		ProgressInterval: progress.DefaultInterval,
		ResampleQuality:  sink.DefaultResampleQuality,
		Volume:           1,
	}
}

// Controller implements the playback commands.
//
// A nil device puts the controller in degraded mode: commands still open
// files, report durations and track state, but nothing is played and no
// spectrum or progress events are produced.
type Controller struct {
	dev     sink.Device
	emitter Emitter
	opts    Options

	mu      sync.Mutex // guards session and volume
	session *session
	volume  float64
}

type session struct {
	path     string
	offset   float64
	track    *decoder.Track
	info     *decoder.Info
	duration time.Duration
	known    bool
	state    State

	tap    *tap.Tap
	bus    *tap.Bus
	sink   *sink.Sink
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// retired stops emission; retire waits for the workers afterwards, so
	// nothing of the session is emitted once its successor starts.
	retired atomic.Bool
}

// New returns an idle controller. dev may be nil (degraded mode) and
// emitter may be nil (events are discarded).
func New(dev sink.Device, emitter Emitter, opts Options) *Controller {
	if emitter == nil {
		emitter = discard{}
	}
	def := DefaultOptions()
	if opts.WindowSize <= 0 {
		opts.WindowSize = def.WindowSize
	}
	if opts.Backlog <= 0 {
		opts.Backlog = def.Backlog
	}
	if opts.Spectrum.MaxHz <= 0 {
		opts.Spectrum = def.Spectrum
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = def.ProgressInterval
	}
	if opts.ResampleQuality <= 0 {
		opts.ResampleQuality = def.ResampleQuality
	}
	if opts.Volume < 0 || math.IsNaN(opts.Volume) {
		opts.Volume = def.Volume
	}
	if dev == nil {
		log.Warn().Msg("No output device, playback runs in degraded mode")
	}
	return &Controller{
		dev:     dev,
		emitter: emitter,
		opts:    opts,
		volume:  opts.Volume,
	}
}

// Degraded reports whether the controller runs without an output device.
func (c *Controller) Degraded() bool { return c.dev == nil }

// Load replaces the current session with path played from the start.
func (c *Controller) Load(path string) error {
	return c.LoadAt(path, 0)
}

// LoadAt replaces the current session with path played from offset seconds.
// On failure the current session keeps playing untouched.
func (c *Controller) LoadAt(path string, offset float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(path, offset, false)
}

// Cue is LoadAt with the new session Paused from its first sample: nothing
// of it is audible until Resume.
func (c *Controller) Cue(path string, offset float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(path, offset, true)
}

func (c *Controller) loadLocked(path string, offset float64, paused bool) error {
	if offset < 0 || math.IsNaN(offset) {
		offset = 0
	}

	track, err := decoder.Open(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("Load failed")
		return classify(err)
	}

	info, err := decoder.ReadInfo(path)
	if err != nil {
		info = &decoder.Info{Path: path}
	}

	s := &session{
		path:   path,
		offset: offset,
		track:  track,
		info:   info,
		state:  Playing,
	}
	if paused {
		s.state = Paused
	}
	s.duration, s.known = track.Duration()
	if offset > 0 {
		track.Skip(time.Duration(offset * float64(time.Second)))
	}

	c.retire(c.session)
	c.session = s

	if s.known {
		c.emit(s, TrackDuration{Seconds: s.duration.Seconds()})
	}

	if c.dev != nil {
		c.start(s)
	}

	log.Debug().
		Str("path", path).
		Str("codec", string(track.Codec())).
		Int("rate", int(track.SampleRate())).
		Int("channels", track.Channels()).
		Float64("offset", offset).
		Msg("Session started")
	return nil
}

// start wires the tap, workers and sink of s and lets samples flow.
func (c *Controller) start(s *session) {
	rate := int(s.track.SampleRate())
	channels := s.track.Channels()

	s.bus = tap.NewBus()
	s.tap = tap.New(s.track, channels, c.opts.WindowSize, s.bus)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	cfg := c.opts.Spectrum
	cfg.WindowSize = c.opts.WindowSize
	cfg.SampleRate = rate
	if analyzer, err := spectrum.New(cfg); err != nil {
		log.Warn().Err(err).Int("rate", rate).Msg("Spectrum disabled for this track")
	} else {
		sub := s.bus.Subscribe(c.opts.Backlog)
		s.wg.Go(func() {
			analyzer.Run(ctx, sub, func(bars []float64) {
				c.emit(s, SpectrumUpdate{Bars: bars})
			})
		})
	}

	reporter := progress.New(rate, channels, s.offset, c.opts.ProgressInterval)
	reporter.SetSource(s.tap.Consumed)
	sub := s.bus.Subscribe(c.opts.Backlog)
	s.wg.Go(func() {
		reporter.Run(ctx, sub, func(secs float64) {
			c.emit(s, PlaybackProgress{Seconds: secs})
		})
	})

	s.sink = sink.New(c.dev, c.volume, c.opts.ResampleQuality)
	if s.state == Paused {
		s.sink.Pause()
	}
	s.sink.Append(s.tap, beep.SampleRate(rate))
}

// retire silences s and stops its workers. No event of s is emitted once
// retire returns.
func (c *Controller) retire(s *session) {
	if s == nil {
		return
	}

	s.retired.Store(true)

	if s.sink != nil {
		s.sink.Stop()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if err := s.track.Close(); err != nil {
		log.Debug().Err(err).Str("path", s.path).Msg("Close track")
	}
}

func (c *Controller) emit(s *session, e Event) {
	if s.retired.Load() {
		return
	}
	c.emitter.Emit(e)
}

// Pause holds output at the current sample. It is a no-op when idle or
// already paused.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setPausedLocked(true)
}

// Resume continues output where Pause held it. It is a no-op unless paused.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setPausedLocked(false)
}

// Toggle switches between Playing and Paused.
func (c *Controller) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return
	}
	c.setPausedLocked(c.session.state == Playing)
}

func (c *Controller) setPausedLocked(paused bool) {
	s := c.session
	if s == nil {
		return
	}
	switch {
	case paused && s.state.CanPause():
		if s.sink != nil {
			s.sink.Pause()
		}
		s.state = Paused
	case !paused && s.state.CanResume():
		if s.sink != nil {
			s.sink.Play()
		}
		s.state = Playing
	}
}

// Seek reloads the current file at seconds. Seeking past the end yields an
// exhausted session. It is a no-op when idle.
func (c *Controller) Seek(seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.loadLocked(c.session.path, seconds, false)
}

// SetVolume sets the linear gain of the live sink and of every later one.
// Negative levels are treated as 0.
func (c *Controller) SetVolume(level float64) {
	if level < 0 || math.IsNaN(level) {
		level = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = level
	if c.session != nil && c.session.sink != nil {
		c.session.sink.SetVolume(level)
	}
}

// Volume returns the linear gain.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Idle
	}
	return c.session.state
}

// Path returns the file of the current session.
func (c *Controller) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.path
}

// Info returns the tag metadata of the current session.
func (c *Controller) Info() *decoder.Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.info
}

// Duration returns the length of the current track. The second result is
// false when idle or when the file does not report its length.
func (c *Controller) Duration() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0, false
	}
	return c.session.duration, c.session.known
}

// Position returns the playback position: the session offset plus the
// samples pulled by the device so far.
func (c *Controller) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	if s == nil {
		return 0
	}
	secs := s.offset
	if s.tap != nil {
		if rate := int64(s.track.SampleRate()) * int64(s.tap.Channels()); rate > 0 {
			secs += float64(s.tap.Consumed()) / float64(rate)
		}
	}
	return time.Duration(secs * float64(time.Second))
}

// Done returns a channel closed when the current session has played to its
// end. It is nil when idle or degraded, so receiving from it blocks.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.sink == nil {
		return nil
	}
	return c.session.sink.Done()
}

// Close retires the current session and returns the controller to Idle.
// The output device stays acquired.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retire(c.session)
	c.session = nil
}
