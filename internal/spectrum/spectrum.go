// Package spectrum turns sample windows into bounded spectrum frames.
package spectrum

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
)

// MaxBars is the largest frame length an Analyzer produces.
const MaxBars = 100

var (
	// ErrMalformedWindow reports a window that cannot be analyzed. The
	// window is dropped; playback is never affected.
	ErrMalformedWindow = errors.New("malformed sample window")
	// ErrInvalidConfig reports an analyzer configuration that yields no bars.
	ErrInvalidConfig = errors.New("invalid spectrum configuration")
)

// Reduction selects how bins are reduced to at most MaxBars values.
type Reduction string

const (
	// Truncate keeps the lowest-frequency bars.
	Truncate Reduction = "truncate"
	// Decimate keeps evenly spaced bars across the whole range.
	Decimate Reduction = "decimate"
)

// Config describes the windows an Analyzer receives and the frames it returns.
type Config struct {
	WindowSize int
	SampleRate int
	MinHz      float64
	MaxHz      float64
	MaxBars    int
	Reduction  Reduction
}

// DefaultConfig returns the audible-range configuration for rate.
func DefaultConfig(rate int) Config {
	return Config{
		WindowSize: 1024,
		SampleRate: rate,
		MinHz:      20,
		MaxHz:      20000,
		MaxBars:    MaxBars,
		Reduction:  Truncate,
	}
}

// Analyzer computes spectrum frames. It reuses scratch buffers and is not
// safe for concurrent use.
type Analyzer struct {
	cfg    Config
	fft    *fourier.FFT
	hann   []float64
	lo, hi int // inclusive bin range
	picks  []int

	scratch []float64
	coeffs  []complex128
}

// New validates cfg and prepares a fixed-size transform for it.
func New(cfg Config) (*Analyzer, error) {
	if cfg.MaxBars <= 0 || cfg.MaxBars > MaxBars {
		cfg.MaxBars = MaxBars
	}
	if cfg.Reduction == "" {
		cfg.Reduction = Truncate
	}
	switch {
	case cfg.WindowSize < 2:
		return nil, fmt.Errorf("%w: window size %d", ErrInvalidConfig, cfg.WindowSize)
	case cfg.SampleRate <= 0:
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, cfg.SampleRate)
	case cfg.MinHz < 0 || cfg.MaxHz <= cfg.MinHz:
		return nil, fmt.Errorf("%w: range %g-%g Hz", ErrInvalidConfig, cfg.MinHz, cfg.MaxHz)
	case cfg.Reduction != Truncate && cfg.Reduction != Decimate:
		return nil, fmt.Errorf("%w: reduction %q", ErrInvalidConfig, cfg.Reduction)
	}

	n := cfg.WindowSize
	binHz := float64(cfg.SampleRate) / float64(n)
	lo := int(math.Ceil(cfg.MinHz / binHz))
	hi := min(int(math.Floor(cfg.MaxHz/binHz)), n/2)
	if lo > hi {
		return nil, fmt.Errorf("%w: no bin between %g and %g Hz at %d Hz / %d",
			ErrInvalidConfig, cfg.MinHz, cfg.MaxHz, cfg.SampleRate, n)
	}

	a := &Analyzer{
		cfg:     cfg,
		fft:     fourier.NewFFT(n),
		hann:    window.Hann(n),
		lo:      lo,
		hi:      hi,
		scratch: make([]float64, n),
		coeffs:  make([]complex128, n/2+1),
	}
	a.picks = reduce(hi-lo+1, cfg.MaxBars, cfg.Reduction)
	return a, nil
}

// reduce returns the indices, relative to the first bin in range, that make
// up a frame. No interpolation is done.
func reduce(bins, maxBars int, r Reduction) []int {
	count := min(bins, maxBars)
	picks := make([]int, count)
	for i := range picks {
		if r == Decimate {
			picks[i] = i * bins / count
		} else {
			picks[i] = i
		}
	}
	return picks
}

// Bars returns the length of every frame this Analyzer produces.
func (a *Analyzer) Bars() int { return len(a.picks) }

// Config returns the validated configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// BinHz returns the center frequency of the i-th bar.
func (a *Analyzer) BinHz(i int) float64 {
	if i < 0 || i >= len(a.picks) {
		return 0
	}
	k := a.lo + a.picks[i]
	return float64(k) * float64(a.cfg.SampleRate) / float64(a.cfg.WindowSize)
}

// Analyze returns the magnitude spectrum of w, normalized by the window
// length and restricted to the configured range. The input is not modified.
func (a *Analyzer) Analyze(w []float64) ([]float64, error) {
	if len(w) != a.cfg.WindowSize {
		return nil, fmt.Errorf("%w: %d samples, want %d", ErrMalformedWindow, len(w), a.cfg.WindowSize)
	}
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite sample at %d", ErrMalformedWindow, i)
		}
		a.scratch[i] = v * a.hann[i]
	}

	a.coeffs = a.fft.Coefficients(a.coeffs, a.scratch)

	n := float64(a.cfg.WindowSize)
	bars := make([]float64, len(a.picks))
	for i, p := range a.picks {
		bars[i] = cmplx.Abs(a.coeffs[a.lo+p]) / n
	}
	return bars, nil
}
