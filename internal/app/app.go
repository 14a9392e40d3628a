package app

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/murmur/internal/engine"
	"github.com/llehouerou/murmur/internal/notify"
	"github.com/llehouerou/murmur/internal/state"
	"github.com/llehouerou/murmur/internal/ui/visualizer"
)

const (
	defaultSeekStep   = 5 * time.Second
	defaultVolumeStep = 0.05
	maxVolume         = 1.5
	sessionSaveEvery  = 5 * time.Second
)

// Options configures a new Model.
type Options struct {
	Player   engine.Interface
	Events   *engine.Subscription // from the hub the controller emits to
	StateMgr state.Interface      // nil disables persistence
	Notifier notify.Notifier      // nil disables now-playing notifications
	Degraded bool
	Muted    bool // start muted; the controller volume is the level to restore
	Status   string

	SeekStep   time.Duration
	VolumeStep float64
}

// Model is the root application model.
type Model struct {
	Player   engine.Interface
	Events   *engine.Subscription
	StateMgr state.Interface
	Notifier notify.Notifier
	Keys     KeyMap
	Help     help.Model
	Meter    visualizer.Meter

	Position    time.Duration // last reported progress
	HasProgress bool
	Duration    time.Duration
	Degraded    bool
	Finished    bool
	ErrorMsg    string
	StatusMsg   string

	SeekStep   time.Duration
	VolumeStep float64

	premute     float64
	gotSpectrum bool
	lastSave    time.Time

	notifiedPath string
	notifyID     uint32

	Width  int
	Height int
}

// New creates the application model.
func New(opts Options) Model {
	m := Model{
		Player:     opts.Player,
		Events:     opts.Events,
		StateMgr:   opts.StateMgr,
		Notifier:   opts.Notifier,
		Keys:       DefaultKeyMap(),
		Help:       help.New(),
		Degraded:   opts.Degraded,
		StatusMsg:  opts.Status,
		SeekStep:   opts.SeekStep,
		VolumeStep: opts.VolumeStep,
	}
	if m.SeekStep <= 0 {
		m.SeekStep = defaultSeekStep
	}
	if m.VolumeStep <= 0 {
		m.VolumeStep = defaultVolumeStep
	}
	if d, ok := m.Player.Duration(); ok {
		m.Duration = d
	}
	if opts.Muted {
		m.premute = m.Player.Volume()
		m.Player.SetVolume(0)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(WatchEvents(m.Events), TickCmd())
}

// CurrentPosition is the last reported progress, or the controller's own
// position before the first progress event of a session.
func (m Model) CurrentPosition() time.Duration {
	if m.HasProgress {
		return m.Position
	}
	return m.Player.Position()
}

// Muted reports whether volume was muted with the mute key.
func (m Model) Muted() bool {
	return m.premute > 0 && m.Player.Volume() == 0
}
