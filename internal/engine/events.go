package engine

// Event is something the controller reports to its front end.
type Event interface {
	// Name is the wire name of the event.
	Name() string
}

// TrackDuration is emitted once per successful load when the file reports
// its length. Seeking does not change it.
type TrackDuration struct {
	Seconds float64
}

// SpectrumUpdate is emitted once per analyzed sample window. Bars holds at
// most 100 non-negative magnitudes, lowest frequency first.
type SpectrumUpdate struct {
	Bars []float64
}

// PlaybackProgress is emitted at most once per progress interval while
// samples flow. Seconds includes the seek offset of the session.
type PlaybackProgress struct {
	Seconds float64
}

func (TrackDuration) Name() string    { return "track-duration" }
func (SpectrumUpdate) Name() string   { return "spectrum-update" }
func (PlaybackProgress) Name() string { return "playback-progress" }

// Emitter receives controller events. Emit is called concurrently from the
// controller's worker goroutines and from command methods; it must be safe for
// concurrent use, must not block for long and must not call back into the
// controller.
type Emitter interface {
	Emit(e Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls f(e).
func (f EmitterFunc) Emit(e Event) { f(e) }

type discard struct{}

func (discard) Emit(Event) {}
