package engine

import (
	"time"

	"github.com/llehouerou/murmur/internal/decoder"
)

// Mock is a test double for Controller.
type Mock struct {
	state     State
	path      string
	info      *decoder.Info
	position  time.Duration
	duration  time.Duration
	known     bool
	volume    float64
	loadErr   error
	seekErr   error
	loadCalls []string
	seekCalls []float64
	done      chan struct{}
}

// NewMock creates a new idle mock controller.
func NewMock() *Mock {
	return &Mock{
		state:  Idle,
		volume: 1,
		done:   make(chan struct{}),
	}
}

func (m *Mock) Load(path string) error { return m.LoadAt(path, 0) }

func (m *Mock) LoadAt(path string, offset float64) error {
	m.loadCalls = append(m.loadCalls, path)
	if m.loadErr != nil {
		return m.loadErr
	}
	m.path = path
	m.position = time.Duration(offset * float64(time.Second))
	m.state = Playing
	return nil
}

func (m *Mock) Pause() {
	if m.state == Playing {
		m.state = Paused
	}
}

func (m *Mock) Resume() {
	if m.state == Paused {
		m.state = Playing
	}
}

func (m *Mock) Toggle() {
	switch m.state {
	case Playing:
		m.Pause()
	case Paused:
		m.Resume()
	case Idle:
		// Nothing to toggle when idle
	}
}

func (m *Mock) Seek(seconds float64) error {
	m.seekCalls = append(m.seekCalls, seconds)
	if m.seekErr != nil {
		return m.seekErr
	}
	if m.state == Idle {
		return nil
	}
	m.position = time.Duration(max(seconds, 0) * float64(time.Second))
	m.state = Playing
	return nil
}

func (m *Mock) SetVolume(level float64) { m.volume = max(level, 0) }

func (m *Mock) Volume() float64 { return m.volume }

func (m *Mock) State() State { return m.state }

func (m *Mock) Path() string { return m.path }

func (m *Mock) Info() *decoder.Info { return m.info }

func (m *Mock) Duration() (time.Duration, bool) { return m.duration, m.known }

func (m *Mock) Position() time.Duration { return m.position }

func (m *Mock) Done() <-chan struct{} { return m.done }

// Test helpers

func (m *Mock) SetState(s State) { m.state = s }

func (m *Mock) SetLoadError(err error) { m.loadErr = err }

func (m *Mock) SetSeekError(err error) { m.seekErr = err }

func (m *Mock) LoadCalls() []string { return m.loadCalls }

func (m *Mock) SeekCalls() []float64 { return m.seekCalls }

func (m *Mock) SetInfo(info *decoder.Info) { m.info = info }

func (m *Mock) SetDuration(d time.Duration) { m.duration, m.known = d, true }

func (m *Mock) SetPosition(d time.Duration) { m.position = d }

// SimulateFinished closes the Done channel.
func (m *Mock) SimulateFinished() {
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
