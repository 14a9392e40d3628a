package engine

import (
	"time"

	"github.com/llehouerou/murmur/internal/decoder"
)

// Interface defines the controller surface used by front ends.
type Interface interface {
	Load(path string) error
	LoadAt(path string, offset float64) error
	Pause()
	Resume()
	Toggle()
	Seek(seconds float64) error
	SetVolume(level float64)
	Volume() float64
	State() State
	Path() string
	Info() *decoder.Info
	Duration() (time.Duration, bool)
	Position() time.Duration
	Done() <-chan struct{}
}

// Verify Controller implements Interface at compile time.
var _ Interface = (*Controller)(nil)
