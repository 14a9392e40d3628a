package app

import (
	"strings"

	"github.com/llehouerou/murmur/internal/ui/playerbar"
	"github.com/llehouerou/murmur/internal/ui/render"
	"github.com/llehouerou/murmur/internal/ui/styles"
)

const (
	minWidth  = 20
	minHeight = playerbar.Height + 4
)

// View implements tea.Model.
func (m Model) View() string {
	if m.Width < minWidth || m.Height < minHeight {
		return "Terminal too small"
	}
	st := styles.T().S()

	header := render.Row(
		styles.ApplyGradient("murmur", styles.T().Primary, styles.T().SpectrumLow),
		st.Subtle.Render(render.Truncate(render.Sanitize(m.Player.Path()), m.Width-8)),
		m.Width,
	)

	footer := m.Help.View(m.Keys)
	switch {
	case m.ErrorMsg != "":
		footer = st.Error.Render(render.Truncate(m.ErrorMsg, m.Width))
	case m.StatusMsg != "":
		footer = st.Muted.Render(render.Truncate(m.StatusMsg, m.Width))
	}
	footerHeight := strings.Count(footer, "\n") + 1

	ps := playerbar.NewState(m.Player, m.CurrentPosition())
	ps.Degraded = m.Degraded
	if m.Duration > 0 {
		ps.Duration = m.Duration
	}
	bar := playerbar.Render(ps, m.Width)

	// Spectrum panel fills what is left; its border takes two rows and two columns.
	specHeight := max(m.Height-1-playerbar.Height-footerHeight-2, 1)
	spectrum := st.Panel.Render(m.Meter.View(m.Width-2, specHeight))

	return strings.Join([]string{header, spectrum, bar, footer}, "\n")
}
