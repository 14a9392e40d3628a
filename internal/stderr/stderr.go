//go:build !windows

// Package stderr captures stderr output from C libraries (ALSA, faad2)
// that write directly to file descriptor 2, bypassing Go's os.Stderr.
// This prevents raw error messages from corrupting the TUI layout.
package stderr

import (
	"bufio"
	"os"
	"strings"
	"sync"
	"syscall"
)

// Handler receives each non-empty captured line.
type Handler func(line string)

var (
	mu         sync.Mutex
	origStderr int
	pipeRead   *os.File
	pipeWrite  *os.File
	started    bool
	readerDone chan struct{}
)

// Start begins capturing stderr output and passes every line to h.
// Must be called early in main(), before any C library initialization.
// Returns an error if capture cannot be set up, but the program can continue
// without stderr capture (errors will just go to the original stderr).
func Start(h Handler) error {
	mu.Lock()
	defer mu.Unlock()
	if started {
		return nil
	}

	// Create a pipe
	r, w, err := os.Pipe()
	if err != nil {
		return err
	}

	// Save original stderr file descriptor
	origStderr, err = syscall.Dup(int(os.Stderr.Fd()))
	if err != nil {
		r.Close()
		w.Close()
		return err
	}

	// Redirect stderr (fd 2) to the pipe's write end
	err = syscall.Dup2(int(w.Fd()), int(os.Stderr.Fd()))
	if err != nil {
		syscall.Close(origStderr)
		r.Close()
		w.Close()
		return err
	}

	pipeRead = r
	pipeWrite = w
	started = true
	readerDone = make(chan struct{})

	go forward(r, h, readerDone)

	return nil
}

func forward(r *os.File, h Handler, done chan<- struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && h != nil {
			h(line)
		}
	}
}

// WriteOriginal writes directly to the original stderr, bypassing capture.
// Useful for fatal errors that must be visible even if TUI is running.
func WriteOriginal(msg string) {
	mu.Lock()
	fd := origStderr
	mu.Unlock()
	if fd > 0 {
		_, _ = syscall.Write(fd, []byte(msg))
		return
	}
	_, _ = os.Stderr.WriteString(msg)
}

// Stop restores the original stderr and waits for captured lines to be
// handled. Should be called on program exit.
func Stop() {
	mu.Lock()
	defer mu.Unlock()
	if !started {
		return
	}

	// Restore original stderr; this drops the last reference to the pipe's
	// write end held by fd 2.
	_ = syscall.Dup2(origStderr, int(os.Stderr.Fd()))
	_ = syscall.Close(origStderr)
	origStderr = 0

	pipeWrite.Close()
	<-readerDone
	pipeRead.Close()

	started = false
}
