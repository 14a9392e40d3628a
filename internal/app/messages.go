// Package app contains the terminal front end of the player.
package app

import (
	"time"

	"github.com/llehouerou/murmur/internal/engine"
)

// EngineEventMsg carries one controller event into the update loop.
type EngineEventMsg struct {
	Event engine.Event
}

// EventsClosedMsg is sent when the event subscription is retired.
type EventsClosedMsg struct{}

// TickMsg drives meter decay, end-of-track detection and session saving.
type TickMsg time.Time

// StderrMsg is sent when stderr output is captured from C libraries (ALSA, faad2).
type StderrMsg struct {
	Line string
}

// NotifiedMsg reports the ID of the now-playing notification that was sent.
type NotifiedMsg struct {
	ID uint32
}
