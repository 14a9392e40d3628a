//go:build !windows

package stderr

import (
	"fmt"
	"os"
	"sync"
	"testing"
)

func TestStart_ForwardsLinesToHandler(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
	)
	err := Start(func(line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
	})
	if err != nil {
		t.Skipf("stderr capture unavailable: %v", err)
	}

	fmt.Fprintln(os.Stderr, "ALSA lib pcm.c: underrun occurred")
	fmt.Fprintln(os.Stderr, "   ")
	fmt.Fprintln(os.Stderr, "  second line  ")

	// A second Start is a no-op while capturing.
	if err := Start(nil); err != nil {
		t.Errorf("second Start() error = %v", err)
	}

	Stop()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"ALSA lib pcm.c: underrun occurred", "second line"}
	if len(lines) != len(want) {
		t.Fatalf("captured %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestStop_WithoutStart(_ *testing.T) {
	Stop()
}
