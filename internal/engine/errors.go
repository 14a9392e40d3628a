package engine

import (
	"errors"
	"fmt"

	"github.com/llehouerou/murmur/internal/decoder"
)

var (
	// ErrIO reports a file that is missing or unreadable.
	ErrIO = errors.New("io error")
	// ErrDecode reports an unsupported or corrupt audio file.
	ErrDecode = errors.New("decode error")
)

// classify wraps a decoder failure in the matching command error class.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, decoder.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrIO, err)
	default:
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
}
