package engine

// State is the lifecycle state of the controller.
//
//	┌──────────┐      load       ┌──────────┐
//	│   Idle   │ ───────────────▶│  Playing │◀──┐
//	└──────────┘                 └──────────┘   │ load / seek
//	                                  │  ▲  ────┘
//	                            pause │  │ resume
//	                                  ▼  │
//	                             ┌──────────┐
//	                             │  Paused  │ ── load / seek ──▶ Playing
//	                             └──────────┘
//
// Valid transitions:
//   - Idle    → Playing (via Load)
//   - any     → Paused  (via Cue, which replaces the session held at its first sample)
//   - Playing → Paused  (via Pause)
//   - Paused  → Playing (via Resume)
//   - Playing → Playing (via Load or Seek, which replace the session)
//   - Paused  → Playing (via Load or Seek)
//
// Toggle() cycles: Playing ↔ Paused (no-op if Idle)
//
// No-op transitions (handled gracefully):
//   - Idle   → Idle   (Pause, Resume, Seek)
//   - Paused → Paused (Pause)
//
// There is no stopped state reachable by command. When the stream is
// exhausted the session stays Playing and Done() is closed; Close returns
// the controller to Idle.
type State int

const (
	Idle State = iota
	Playing
	Paused
)

// String returns the state name for debugging.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// IsActive returns true if a session is loaded (Playing or Paused).
func (s State) IsActive() bool {
	return s == Playing || s == Paused
}

// CanPause returns true if the state allows pausing.
func (s State) CanPause() bool {
	return s == Playing
}

// CanResume returns true if the state allows resuming.
func (s State) CanResume() bool {
	return s == Paused
}
