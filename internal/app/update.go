package app

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/murmur/internal/engine"
	"github.com/llehouerou/murmur/internal/errmsg"
	"github.com/llehouerou/murmur/internal/notify"
	"github.com/llehouerou/murmur/internal/state"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EngineEventMsg:
		m.handleEvent(msg.Event)
		return m, WatchEvents(m.Events)

	case EventsClosedMsg:
		m.Events = nil
		return m, nil

	case TickMsg:
		return m.handleTick(time.Time(msg))

	case NotifiedMsg:
		m.notifyID = msg.ID
		return m, nil

	case StderrMsg:
		log.Warn().Str("line", msg.Line).Msg("stderr")
		return m, nil
	}
	return m, nil
}

func (m *Model) handleEvent(e engine.Event) {
	switch e := e.(type) {
	case engine.TrackDuration:
		// A new session started, possibly from outside the UI.
		m.Duration = time.Duration(e.Seconds * float64(time.Second))
		m.HasProgress = false
		m.Finished = false
	case engine.SpectrumUpdate:
		m.Meter.Update(e.Bars)
		m.gotSpectrum = true
	case engine.PlaybackProgress:
		m.Position = time.Duration(e.Seconds * float64(time.Second))
		m.HasProgress = true
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		m.saveSession()
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Help):
		m.Help.ShowAll = !m.Help.ShowAll

	case key.Matches(msg, m.Keys.Toggle):
		m.Player.Toggle()
		m.saveSession()

	case key.Matches(msg, m.Keys.SeekBack):
		m.seekBy(-m.SeekStep)

	case key.Matches(msg, m.Keys.SeekFwd):
		m.seekBy(m.SeekStep)

	case key.Matches(msg, m.Keys.Restart):
		m.seekTo(0)

	case key.Matches(msg, m.Keys.VolumeUp):
		m.setVolume(m.Player.Volume() + m.VolumeStep)

	case key.Matches(msg, m.Keys.VolumeDown):
		m.setVolume(m.Player.Volume() - m.VolumeStep)

	case key.Matches(msg, m.Keys.Mute):
		m.toggleMute()
	}
	return m, nil
}

func (m *Model) seekBy(delta time.Duration) {
	if m.Player.State() == engine.Idle {
		return
	}
	target := max(m.CurrentPosition()+delta, 0)
	if m.Duration > 0 {
		target = min(target, m.Duration)
	}
	m.seekTo(target)
}

func (m *Model) seekTo(target time.Duration) {
	if m.Player.State() == engine.Idle {
		return
	}
	if err := m.Player.Seek(target.Seconds()); err != nil {
		m.ErrorMsg = errmsg.Format(errmsg.OpSeek, err)
		log.Error().Err(err).Dur("target", target).Msg("Seek failed")
		return
	}
	m.ErrorMsg = ""
	m.StatusMsg = ""
	m.Position = target
	m.HasProgress = true
	m.Finished = false
	m.Meter.Reset()
	m.saveSession()
}

func (m *Model) setVolume(level float64) {
	level = min(max(level, 0), maxVolume)
	m.Player.SetVolume(level)
	m.premute = 0
	m.saveVolume(level, false)
}

func (m *Model) toggleMute() {
	if m.Muted() {
		m.Player.SetVolume(m.premute)
		m.saveVolume(m.premute, false)
		m.premute = 0
		return
	}
	level := m.Player.Volume()
	if level == 0 {
		return
	}
	m.premute = level
	m.Player.SetVolume(0)
	m.saveVolume(level, true)
}

func (m *Model) saveVolume(level float64, muted bool) {
	if m.StateMgr == nil {
		return
	}
	if err := m.StateMgr.SaveVolume(level, muted); err != nil {
		m.ErrorMsg = errmsg.Format(errmsg.OpStateSave, err)
		log.Error().Err(err).Msg("Save volume")
	}
}

func (m *Model) saveSession() {
	if m.StateMgr == nil {
		return
	}
	path := m.Player.Path()
	if path == "" {
		return
	}
	pos := m.CurrentPosition()
	if m.Finished {
		pos = 0
	}
	m.StateMgr.SaveSession(state.SessionState{Path: path, Position: pos.Seconds()})
}

func (m Model) handleTick(now time.Time) (tea.Model, tea.Cmd) {
	if !m.gotSpectrum || m.Player.State() != engine.Playing {
		m.Meter.Decay()
	}
	m.gotSpectrum = false

	if !m.Finished {
		if done := m.Player.Done(); done != nil {
			select {
			case <-done:
				m.Finished = true
				m.StatusMsg = "End of track"
				m.saveSession()
			default:
			}
		}
	}

	if m.Player.State() == engine.Playing && now.Sub(m.lastSave) >= sessionSaveEvery {
		m.lastSave = now
		m.saveSession()
	}

	notifyCmd := m.notifyTrackChange()
	return m, tea.Batch(TickCmd(), notifyCmd)
}

// notifyTrackChange announces a track the first time it is heard playing.
func (m *Model) notifyTrackChange() tea.Cmd {
	if m.Notifier == nil || m.Player.State() != engine.Playing {
		return nil
	}
	path := m.Player.Path()
	if path == m.notifiedPath {
		return nil
	}
	m.notifiedPath = path
	return NotifyCmd(m.Notifier, notify.NowPlaying(m.Player.Info(), m.Duration, m.notifyID))
}
