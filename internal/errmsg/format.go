// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Playback operations
	OpLoad Op = "load track"
	OpSeek Op = "seek"

	// Output device
	OpOpenDevice Op = "open audio device"

	// Configuration and persistence
	OpConfig       Op = "load configuration"
	OpStateOpen    Op = "open player state"
	OpStateSave    Op = "save player state"
	OpSessionLoad  Op = "restore last session"
	OpLoggingSetup Op = "set up logging"

	// Initialization
	OpInitialize Op = "initialize application"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
