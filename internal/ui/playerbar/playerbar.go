// Package playerbar renders the now-playing block: track info, transport
// status, volume and a progress bar.
package playerbar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/llehouerou/murmur/internal/engine"
	"github.com/llehouerou/murmur/internal/ui/render"
	"github.com/llehouerou/murmur/internal/ui/styles"
)

const (
	playSymbol  = "▶"
	pauseSymbol = "⏸"
	idleSymbol  = "■"
)

// Height is the number of lines Render produces, borders included.
const Height = 5

// State holds everything needed to render the player bar.
type State struct {
	Status   engine.State
	Title    string
	Artist   string
	Album    string
	Year     int
	Size     int64
	Position time.Duration
	Duration time.Duration // zero when unknown
	Volume   float64
	Degraded bool
}

// NewState snapshots the controller. Position comes from the last progress
// event when one was seen, since the controller's own position runs ahead of
// the device buffer.
func NewState(p engine.Interface, position time.Duration) State {
	s := State{
		Status:   p.State(),
		Position: position,
		Volume:   p.Volume(),
	}
	if d, ok := p.Duration(); ok {
		s.Duration = d
	}
	if info := p.Info(); info != nil {
		s.Title = info.Title
		s.Artist = info.Artist
		s.Album = info.Album
		s.Year = info.Year
		s.Size = info.Size
	}
	return s
}

// Render returns the player bar for the given total width.
func Render(s State, width int) string {
	st := styles.T().S()
	inner := max(width-4, 10) // border + padding

	var status, title string
	switch s.Status {
	case engine.Playing:
		status, title = playSymbol, s.Title
	case engine.Paused:
		status, title = pauseSymbol, s.Title
	case engine.Idle:
		status, title = idleSymbol, "Nothing playing"
	}
	if title == "" {
		title = "Unknown Track"
	}

	vol := RenderVolume(s.Volume)
	head := st.Playing.Render(status) + " " +
		st.Title.Render(render.Truncate(render.Sanitize(title), inner-lipgloss.Width(vol)-3))
	lines := []string{render.Row(head, st.Muted.Render(vol), inner)}

	var right string
	switch {
	case s.Degraded:
		right = st.Warning.Render("no audio device")
	case s.Size > 0:
		right = st.Subtle.Render(humanize.Bytes(uint64(s.Size)))
	}
	info := render.Truncate(infoLine(s), inner-lipgloss.Width(right)-1)
	lines = append(lines, render.Row(st.Muted.Render(info), right, inner))

	lines = append(lines, RenderProgressBar(s.Position, s.Duration, inner))

	return st.Panel.Padding(0, 1).Width(width - 2).Render(strings.Join(lines, "\n"))
}

func infoLine(s State) string {
	var parts []string
	if s.Artist != "" {
		parts = append(parts, render.Sanitize(s.Artist))
	}
	if s.Album != "" {
		parts = append(parts, render.Sanitize(s.Album))
	}
	if s.Year > 0 {
		parts = append(parts, strconv.Itoa(s.Year))
	}
	return strings.Join(parts, " · ")
}

// RenderProgressBar renders "1:23 ━━━━──── 4:56" into width cells. An
// unknown duration shows the elapsed time only.
func RenderProgressBar(position, duration time.Duration, width int) string {
	st := styles.T().S()
	pos := FormatDuration(position)
	if duration <= 0 {
		return st.Muted.Render(pos + " / --:--")
	}
	dur := FormatDuration(duration)

	barWidth := width - len(pos) - len(dur) - 2
	if barWidth < 3 {
		return st.Muted.Render(pos + " / " + dur)
	}

	bar := progress.New(
		progress.WithGradient(string(styles.T().SpectrumLow), string(styles.T().Primary)),
		progress.WithoutPercentage(),
		progress.WithWidth(barWidth),
		progress.WithFillCharacters('━', '─'),
	)
	ratio := min(max(float64(position)/float64(duration), 0), 1)
	return st.Muted.Render(pos) + " " + bar.ViewAs(ratio) + " " + st.Muted.Render(dur)
}

// RenderVolume renders the volume as a percentage.
func RenderVolume(volume float64) string {
	if volume <= 0 {
		return "vol mute"
	}
	return fmt.Sprintf("vol %3d%%", int(volume*100+0.5))
}

// FormatDuration formats d as m:ss.
func FormatDuration(d time.Duration) string {
	d = max(d, 0)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}
