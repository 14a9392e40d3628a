// internal/state/mock.go
package state

// Mock is a test double for Manager.
type Mock struct {
	session *SessionState
	volume  VolumeState
	saves   int
	closed  bool
}

// NewMock creates a new mock state manager for testing.
func NewMock() *Mock {
	return &Mock{volume: VolumeState{Volume: 1}}
}

func (m *Mock) SaveSession(state SessionState) {
	m.session = &state
	m.saves++
}

func (m *Mock) GetSession() (*SessionState, error) {
	return m.session, nil
}

func (m *Mock) SaveVolume(volume float64, muted bool) error {
	m.volume = VolumeState{Volume: volume, Muted: muted}
	return nil
}

func (m *Mock) GetVolume() (*VolumeState, error) {
	v := m.volume
	return &v, nil
}

func (m *Mock) Close() error {
	m.closed = true
	return nil
}

// Test helpers

func (m *Mock) SetSession(state *SessionState) { m.session = state }

func (m *Mock) Saves() int { return m.saves }

func (m *Mock) IsClosed() bool { return m.closed }

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
