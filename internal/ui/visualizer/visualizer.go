// Package visualizer draws spectrum frames as a vertical bar chart.
package visualizer

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/llehouerou/murmur/internal/ui/styles"
)

// Display range of the decibel scale. Magnitudes are normalized by the
// window length, so a full-scale sine peaks near -6 dB.
const (
	FloorDB = -72.0
	CeilDB  = -6.0
)

// DefaultFalloff is how much of the full height a bar may drop per frame.
const DefaultFalloff = 0.08

var blocks = []rune(" ▁▂▃▄▅▆▇█")

// Meter holds the displayed bar levels between frames. The zero value is
// ready to use.
type Meter struct {
	levels  []float64
	Falloff float64
}

// Update folds a spectrum frame into the meter. Rising bars jump to the new
// level, falling bars decay by Falloff per frame.
func (m *Meter) Update(bars []float64) {
	falloff := m.Falloff
	if falloff <= 0 {
		falloff = DefaultFalloff
	}
	if len(m.levels) != len(bars) {
		m.levels = make([]float64, len(bars))
	}
	for i, v := range bars {
		m.levels[i] = max(Level(v), m.levels[i]-falloff)
	}
}

// Decay lowers every bar one step, for frames where no spectrum arrived.
func (m *Meter) Decay() {
	falloff := m.Falloff
	if falloff <= 0 {
		falloff = DefaultFalloff
	}
	for i := range m.levels {
		m.levels[i] = max(m.levels[i]-falloff, 0)
	}
}

// Reset clears the meter.
func (m *Meter) Reset() { m.levels = nil }

// Levels returns the displayed levels in [0, 1].
func (m *Meter) Levels() []float64 { return m.levels }

// Level maps a magnitude onto [0, 1] using the decibel display range.
func Level(magnitude float64) float64 {
	if magnitude <= 0 || math.IsNaN(magnitude) {
		return 0
	}
	db := 20 * math.Log10(magnitude)
	return min(max((db-FloorDB)/(CeilDB-FloorDB), 0), 1)
}

// View renders the meter into a width x height block.
func (m *Meter) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	cols := Columns(m.levels, width)
	colors := styles.Blend(height, styles.T().SpectrumLow, styles.T().SpectrumHigh)

	rows := make([]string, height)
	var b strings.Builder
	for r := range height {
		// Row 0 is the top line.
		fromBottom := height - 1 - r
		b.Reset()
		for _, level := range cols {
			eighths := int(math.Round(level*float64(height*8))) - fromBottom*8
			b.WriteRune(blocks[min(max(eighths, 0), 8)])
		}
		rows[r] = lipgloss.NewStyle().Foreground(colors[fromBottom]).Render(b.String())
	}
	return strings.Join(rows, "\n")
}

// Columns resamples levels onto width columns. Wider displays repeat bars,
// narrower ones keep the loudest bar of each group.
func Columns(levels []float64, width int) []float64 {
	cols := make([]float64, width)
	n := len(levels)
	if n == 0 {
		return cols
	}
	for c := range width {
		lo := c * n / width
		hi := max((c+1)*n/width, lo+1)
		for _, v := range levels[lo:min(hi, n)] {
			cols[c] = max(cols[c], v)
		}
	}
	return cols
}
