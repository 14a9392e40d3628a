package app

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/murmur/internal/decoder"
	"github.com/llehouerou/murmur/internal/engine"
	"github.com/llehouerou/murmur/internal/notify"
	"github.com/llehouerou/murmur/internal/state"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	keyLeft  = tea.KeyMsg{Type: tea.KeyLeft}
	keyRight = tea.KeyMsg{Type: tea.KeyRight}
)

func newTestModel(t *testing.T) (Model, *engine.Mock, *state.Mock) {
	t.Helper()
	p := engine.NewMock()
	require.NoError(t, p.Load("/music/a.flac"))
	p.SetInfo(&decoder.Info{Path: "/music/a.flac", Title: "Intro", Artist: "Band"})
	p.SetDuration(time.Minute)
	sm := state.NewMock()
	m := New(Options{Player: p, StateMgr: sm})
	return m, p, sm
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func TestNew_Defaults(t *testing.T) {
	m, _, _ := newTestModel(t)
	assert.Equal(t, defaultSeekStep, m.SeekStep)
	assert.InDelta(t, defaultVolumeStep, m.VolumeStep, 1e-9)
	assert.Equal(t, time.Minute, m.Duration, "duration read from the controller")
}

func TestNew_Muted(t *testing.T) {
	p := engine.NewMock()
	p.SetVolume(0.6)
	m := New(Options{Player: p, Muted: true})

	assert.Zero(t, p.Volume())
	assert.True(t, m.Muted())

	m, _ = update(t, m, keyRunes("m"))
	assert.InDelta(t, 0.6, p.Volume(), 1e-9)
	assert.False(t, m.Muted())
}

func TestEngineEvents(t *testing.T) {
	m, _, _ := newTestModel(t)

	m, cmd := update(t, m, EngineEventMsg{Event: engine.TrackDuration{Seconds: 90}})
	assert.Nil(t, cmd, "no subscription to re-arm")
	assert.Equal(t, 90*time.Second, m.Duration)

	m, _ = update(t, m, EngineEventMsg{Event: engine.PlaybackProgress{Seconds: 12.5}})
	assert.True(t, m.HasProgress)
	assert.Equal(t, 12500*time.Millisecond, m.CurrentPosition())

	m, _ = update(t, m, EngineEventMsg{Event: engine.SpectrumUpdate{Bars: []float64{1, 0, 1}}})
	assert.Len(t, m.Meter.Levels(), 3)
	assert.InDelta(t, 1.0, m.Meter.Levels()[0], 1e-9)
}

func TestTrackDuration_ResetsSession(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.Finished = true

	m, _ = update(t, m, EngineEventMsg{Event: engine.PlaybackProgress{Seconds: 40}})
	m, _ = update(t, m, EngineEventMsg{Event: engine.TrackDuration{Seconds: 60}})

	assert.False(t, m.Finished)
	assert.False(t, m.HasProgress)
	assert.Equal(t, m.Player.Position(), m.CurrentPosition())
}

func TestWatchEvents(t *testing.T) {
	assert.Nil(t, WatchEvents(nil))

	hub := engine.NewHub()
	sub := hub.Subscribe()
	cmd := WatchEvents(sub)

	hub.Emit(engine.PlaybackProgress{Seconds: 1})
	assert.Equal(t, EngineEventMsg{Event: engine.PlaybackProgress{Seconds: 1}}, cmd())

	hub.Close()
	assert.Equal(t, EventsClosedMsg{}, cmd())
}

func TestEventsClosed_StopsWatching(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.Events = engine.NewHub().Subscribe()

	m, _ = update(t, m, EventsClosedMsg{})
	assert.Nil(t, m.Events)
	assert.Nil(t, WatchEvents(m.Events))
}

func TestToggleKey(t *testing.T) {
	m, p, sm := newTestModel(t)

	m, _ = update(t, m, keySpace)
	assert.Equal(t, engine.Paused, p.State())
	assert.Equal(t, 1, sm.Saves(), "pause saves the session")

	_, _ = update(t, m, keySpace)
	assert.Equal(t, engine.Playing, p.State())
}

func TestSeekKeys(t *testing.T) {
	m, p, sm := newTestModel(t)
	m, _ = update(t, m, EngineEventMsg{Event: engine.PlaybackProgress{Seconds: 3}})

	m, _ = update(t, m, keyRight)
	assert.Equal(t, 8*time.Second, m.CurrentPosition())

	m, _ = update(t, m, keyLeft)
	m, _ = update(t, m, keyLeft)
	assert.Equal(t, time.Duration(0), m.CurrentPosition(), "clamped at the start")

	m.Position = 58 * time.Second
	m, _ = update(t, m, keyRight)
	assert.Equal(t, time.Minute, m.CurrentPosition(), "clamped at the duration")

	_, _ = update(t, m, keyRunes("0"))

	assert.Equal(t, []float64{8, 3, 0, 60, 0}, p.SeekCalls())
	s, _ := sm.GetSession()
	require.NotNil(t, s)
	assert.Equal(t, "/music/a.flac", s.Path)
	assert.Zero(t, s.Position)
}

func TestSeek_ResetsMeter(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(t, m, EngineEventMsg{Event: engine.SpectrumUpdate{Bars: []float64{1}}})
	m.Finished = true

	m, _ = update(t, m, keyRight)
	assert.Empty(t, m.Meter.Levels())
	assert.False(t, m.Finished)
}

func TestSeek_IdleIgnored(t *testing.T) {
	p := engine.NewMock()
	m := New(Options{Player: p})

	m, _ = update(t, m, keyRight)
	_, _ = update(t, m, keyRunes("0"))
	assert.Empty(t, p.SeekCalls())
}

func TestSeek_ErrorShown(t *testing.T) {
	m, p, _ := newTestModel(t)
	p.SetSeekError(errors.New("decode error: bad frame"))

	m, _ = update(t, m, keyRight)
	assert.Equal(t, "Failed to seek: decode error: bad frame", m.ErrorMsg)
	assert.False(t, m.HasProgress)

	assert.Contains(t, ansi.Strip(sized(m).View()), "Failed to seek")
}

func TestVolumeKeys(t *testing.T) {
	m, p, sm := newTestModel(t)

	m, _ = update(t, m, keyRunes("-"))
	assert.InDelta(t, 0.95, p.Volume(), 1e-9)
	v, _ := sm.GetVolume()
	assert.InDelta(t, 0.95, v.Volume, 1e-9)

	for range 20 {
		m, _ = update(t, m, keyRunes("+"))
	}
	assert.InDelta(t, maxVolume, p.Volume(), 1e-9)

	for range 40 {
		m, _ = update(t, m, keyRunes("-"))
	}
	assert.Zero(t, p.Volume())
	assert.False(t, m.Muted(), "volume zero by keys is not mute")
}

func TestMuteKey(t *testing.T) {
	m, p, sm := newTestModel(t)
	p.SetVolume(0.8)

	m, _ = update(t, m, keyRunes("m"))
	assert.Zero(t, p.Volume())
	assert.True(t, m.Muted())
	v, _ := sm.GetVolume()
	assert.Equal(t, state.VolumeState{Volume: 0.8, Muted: true}, *v)

	m, _ = update(t, m, keyRunes("m"))
	assert.InDelta(t, 0.8, p.Volume(), 1e-9)
	assert.False(t, m.Muted())
	v, _ = sm.GetVolume()
	assert.False(t, v.Muted)
}

func TestTick_DetectsEndOfTrack(t *testing.T) {
	m, p, sm := newTestModel(t)

	m, cmd := update(t, m, TickMsg(time.Now()))
	require.NotNil(t, cmd)
	assert.False(t, m.Finished)

	p.SimulateFinished()
	m, _ = update(t, m, TickMsg(time.Now()))
	assert.True(t, m.Finished)
	assert.Equal(t, "End of track", m.StatusMsg)

	s, _ := sm.GetSession()
	require.NotNil(t, s)
	assert.Zero(t, s.Position, "a finished track resumes from the start")
}

func TestTick_DecaysWithoutSpectrum(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(t, m, EngineEventMsg{Event: engine.SpectrumUpdate{Bars: []float64{1}}})

	m, _ = update(t, m, TickMsg(time.Now()))
	assert.InDelta(t, 1.0, m.Meter.Levels()[0], 1e-9, "fresh frame is kept")

	m, _ = update(t, m, TickMsg(time.Now()))
	assert.Less(t, m.Meter.Levels()[0], 1.0)
}

func TestTick_SavesPeriodically(t *testing.T) {
	m, _, sm := newTestModel(t)
	now := time.Now()

	m, _ = update(t, m, TickMsg(now))
	m, _ = update(t, m, TickMsg(now.Add(time.Second)))
	assert.Equal(t, 1, sm.Saves())

	_, _ = update(t, m, TickMsg(now.Add(sessionSaveEvery)))
	assert.Equal(t, 2, sm.Saves())
}

func TestQuit(t *testing.T) {
	m, _, sm := newTestModel(t)
	m, _ = update(t, m, EngineEventMsg{Event: engine.PlaybackProgress{Seconds: 7}})

	_, cmd := update(t, m, keyRunes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	s, _ := sm.GetSession()
	require.NotNil(t, s)
	assert.InDelta(t, 7.0, s.Position, 1e-9)
}

func TestNoStateManager(t *testing.T) {
	p := engine.NewMock()
	require.NoError(t, p.Load("/x.wav"))
	m := New(Options{Player: p})

	m, _ = update(t, m, keyRunes("+"))
	m, _ = update(t, m, keySpace)
	_, _ = update(t, m, keyRunes("q"))
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func TestView(t *testing.T) {
	m, _, _ := newTestModel(t)
	assert.Equal(t, "Terminal too small", m.View())

	m = sized(m)
	m.Degraded = true
	out := ansi.Strip(m.View())
	assert.Contains(t, out, "murmur")
	assert.Contains(t, out, "/music/a.flac")
	assert.Contains(t, out, "Intro")
	assert.Contains(t, out, "no audio device")
	assert.Contains(t, out, "play/pause")
}

func TestView_FillsTerminal(t *testing.T) {
	m, _, _ := newTestModel(t)
	lines := strings.Split(sized(m).View(), "\n")
	assert.Len(t, lines, 24)
	for _, l := range lines {
		assert.LessOrEqual(t, lipgloss.Width(l), 80)
	}
}

func TestTick_NotifiesOnceWhenTrackPlays(t *testing.T) {
	p := engine.NewMock()
	n := &notify.Mock{}
	m := New(Options{Player: p, Notifier: n})

	m, _ = update(t, m, TickMsg(time.Now()))
	assert.Empty(t, m.notifiedPath, "idle: nothing to announce")

	require.NoError(t, p.Load("/music/a.flac"))
	p.SetInfo(&decoder.Info{Path: "/music/a.flac", Title: "Intro"})
	m, _ = update(t, m, TickMsg(time.Now()))
	assert.Equal(t, "/music/a.flac", m.notifiedPath)

	// The notification is sent by the command; feed its result back.
	msg := NotifyCmd(n, notify.NowPlaying(p.Info(), 0, 0))()
	m, _ = update(t, m, msg)
	assert.Equal(t, uint32(1), m.notifyID)

	m, _ = update(t, m, TickMsg(time.Now()))
	require.NoError(t, p.Load("/music/b.flac"))
	m, _ = update(t, m, TickMsg(time.Now()))
	assert.Equal(t, "/music/b.flac", m.notifiedPath)

	sent := n.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Intro", sent[0].Title)
}

func TestNotifyTrackChange_ReplacesPrevious(t *testing.T) {
	p := engine.NewMock()
	require.NoError(t, p.Load("/music/a.flac"))
	n := &notify.Mock{}
	m := New(Options{Player: p, Notifier: n})
	m.notifyID = 9

	cmd := m.notifyTrackChange()
	require.NotNil(t, cmd)
	assert.Equal(t, NotifiedMsg{ID: 9}, cmd())
	assert.Equal(t, uint32(9), n.Sent()[0].ReplacesID)

	assert.Nil(t, m.notifyTrackChange(), "same path is announced once")
}
