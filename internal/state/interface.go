// internal/state/interface.go
package state

// Interface defines the state manager contract for dependency injection and testing.
type Interface interface {
	SaveSession(state SessionState)
	GetSession() (*SessionState, error)
	SaveVolume(volume float64, muted bool) error
	GetVolume() (*VolumeState, error)
	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
