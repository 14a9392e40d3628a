package engine

import (
	"errors"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/murmur/internal/audiotest"
	"github.com/llehouerou/murmur/internal/decoder"
)

const (
	testRate = 44100
	waitFor  = 2 * time.Second
	tick     = 5 * time.Millisecond
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) since(i int) []Event {
	return r.all()[i:]
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func count(events []Event, name string) int {
	n := 0
	for _, e := range events {
		if e.Name() == name {
			n++
		}
	}
	return n
}

func newTestController(t *testing.T) (*Controller, *audiotest.Device, *recorder) {
	t.Helper()
	dev := audiotest.NewDevice(testRate)
	rec := &recorder{}
	c := New(dev, rec, DefaultOptions())
	t.Cleanup(c.Close)
	return c, dev, rec
}

func TestController_LoadEmitsDurationFirst(t *testing.T) {
	c, dev, rec := newTestController(t)
	path := audiotest.WriteWAV(t, t.TempDir(), "tone.wav", testRate, 1, 2*time.Second)

	require.NoError(t, c.Load(path))
	assert.Equal(t, Playing, c.State())
	assert.Equal(t, path, c.Path())

	dev.Pull(8192)
	require.Eventually(t, func() bool {
		ev := rec.all()
		return count(ev, "spectrum-update") > 0 && count(ev, "playback-progress") > 0
	}, waitFor, tick)

	events := rec.all()
	assert.Equal(t, TrackDuration{Seconds: 2}, events[0])
	assert.Equal(t, 1, count(events, "track-duration"))
}

func TestController_SpectrumFramesAreBounded(t *testing.T) {
	c, dev, rec := newTestController(t)
	path := audiotest.WriteWAV(t, t.TempDir(), "tone.wav", testRate, 2, time.Second)
	require.NoError(t, c.Load(path))

	dev.Pull(4096)
	require.Eventually(t, func() bool {
		return count(rec.all(), "spectrum-update") >= 4
	}, waitFor, tick)

	for _, e := range rec.all() {
		if u, ok := e.(SpectrumUpdate); ok {
			assert.Len(t, u.Bars, 100)
			for _, v := range u.Bars {
				assert.GreaterOrEqual(t, v, 0.0)
			}
		}
	}
}

func TestController_ProgressIsMonotonicAndExact(t *testing.T) {
	c, dev, rec := newTestController(t)
	path := audiotest.WriteWAV(t, t.TempDir(), "tone.wav", testRate, 2, 2*time.Second)
	require.NoError(t, c.Load(path))

	// One stereo window is 512 frames; the first publish is immediate.
	dev.Pull(512)
	require.Eventually(t, func() bool {
		return count(rec.all(), "playback-progress") == 1
	}, waitFor, tick)

	var got PlaybackProgress
	for _, e := range rec.all() {
		if p, ok := e.(PlaybackProgress); ok {
			got = p
		}
	}
	assert.InDelta(t, 512.0/testRate, got.Seconds, 1e-12)
	assert.InDelta(t, 512.0/testRate, c.Position().Seconds(), 1e-6)

	time.Sleep(300 * time.Millisecond)
	dev.Pull(512)
	require.Eventually(t, func() bool {
		return count(rec.all(), "playback-progress") == 2
	}, waitFor, tick)

	last := -1.0
	for _, e := range rec.all() {
		if p, ok := e.(PlaybackProgress); ok {
			assert.Greater(t, p.Seconds, last)
			last = p.Seconds
		}
	}
	assert.InDelta(t, 1024.0/testRate, last, 1e-12)
}

func TestController_SeekScenario(t *testing.T) {
	c, dev, rec := newTestController(t)
	path := audiotest.WriteWAV(t, t.TempDir(), "ten.wav", testRate, 1, 10*time.Second)

	require.NoError(t, c.Load(path))
	mark := rec.len()
	require.NoError(t, c.Seek(5.0))

	after := rec.since(mark)
	require.NotEmpty(t, after)
	assert.Equal(t, TrackDuration{Seconds: 10}, after[0])
	d, ok := c.Duration()
	assert.True(t, ok)
	assert.Equal(t, 10*time.Second, d)
	assert.Equal(t, 5*time.Second, c.Position())

	dev.Pull(2048)
	require.Eventually(t, func() bool {
		return count(rec.since(mark), "playback-progress") > 0
	}, waitFor, tick)

	for _, e := range rec.since(mark) {
		if p, ok := e.(PlaybackProgress); ok {
			assert.GreaterOrEqual(t, p.Seconds, 5.0)
			assert.Less(t, p.Seconds, 5.25)
			break
		}
	}
}

func TestController_SeekReplacesSinkAndCarriesVolume(t *testing.T) {
	c, dev, _ := newTestController(t)
	path := audiotest.WriteWAV(t, t.TempDir(), "tone.wav", testRate, 1, 3*time.Second)

	require.NoError(t, c.Load(path))
	c.SetVolume(0.5)
	dev.Pull(1000)
	c.Pause()

	require.NoError(t, c.Seek(1))

	assert.Equal(t, Playing, c.State(), "seek resumes playback")
	assert.Equal(t, 1, dev.Active(), "old queue discarded")
	assert.Equal(t, 1, dev.Clears())
	assert.InDelta(t, 0.5, c.Volume(), 0)

	dev.Pull(2000)
	peak := 0.0
	for _, f := range dev.Last() {
		peak = max(peak, math.Abs(f[0]))
	}
	// The fixture tone peaks at 0.5; half volume leaves 0.25.
	assert.InDelta(t, 0.25, peak, 0.01)
}

func TestController_PauseResumeKeepsSamplePosition(t *testing.T) {
	c, dev, _ := newTestController(t)
	path := audiotest.WriteWAV(t, t.TempDir(), "tone.wav", testRate, 1, time.Second)

	ref, err := decoder.Open(path)
	require.NoError(t, err)
	want := make([][2]float64, 1200)
	for read := 0; read < len(want); {
		n, ok := ref.Stream(want[read:])
		read += n
		require.True(t, ok)
	}
	ref.Close()

	require.NoError(t, c.Load(path))
	dev.Pull(1000)

	c.Pause()
	c.Pause()
	assert.Equal(t, Paused, c.State())
	pos := c.Position()

	dev.Pull(700)
	assert.Equal(t, pos, c.Position(), "no samples consumed while paused")
	for _, f := range dev.Last() {
		assert.Zero(t, f[0])
	}

	c.Resume()
	assert.Equal(t, Playing, c.State())
	dev.Pull(200)
	assert.Equal(t, want[1000:1200], dev.Last(), "output resumes at the paused sample")
}

func TestController_ToggleCycles(t *testing.T) {
	c, _, _ := newTestController(t)
	c.Toggle()
	assert.Equal(t, Idle, c.State())

	path := audiotest.WriteWAV(t, t.TempDir(), "tone.wav", testRate, 1, time.Second)
	require.NoError(t, c.Load(path))
	c.Toggle()
	assert.Equal(t, Paused, c.State())
	c.Toggle()
	assert.Equal(t, Playing, c.State())
}

func TestController_ToggleIsAtomic(t *testing.T) {
	c, _, _ := newTestController(t)
	path := audiotest.WriteWAV(t, t.TempDir(), "tone.wav", testRate, 1, time.Second)
	require.NoError(t, c.Load(path))

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(c.Toggle)
	}
	wg.Wait()

	assert.Equal(t, Playing, c.State(), "an even number of toggles must cancel out")
}

func TestController_CueStartsSilent(t *testing.T) {
	c, dev, rec := newTestController(t)
	path := audiotest.WriteWAV(t, t.TempDir(), "tone.wav", testRate, 1, 2*time.Second)

	require.NoError(t, c.Cue(path, 1))
	assert.Equal(t, Paused, c.State())
	assert.Equal(t, TrackDuration{Seconds: 2}, rec.all()[0])

	dev.Pull(2048)
	for _, f := range dev.Last() {
		assert.Zero(t, f[0], "a cued session must not be audible")
	}
	assert.Equal(t, time.Second, c.Position())

	c.Resume()
	assert.Equal(t, Playing, c.State())
	dev.Pull(1024)
	assert.InDelta(t, 1+1024.0/testRate, c.Position().Seconds(), 1e-6)
}

func TestController_ProgressExactWithSlowSpectrumConsumer(t *testing.T) {
	dev := audiotest.NewDevice(testRate)
	rec := &recorder{}
	slow := EmitterFunc(func(e Event) {
		if _, ok := e.(SpectrumUpdate); ok {
			time.Sleep(20 * time.Millisecond)
		}
		rec.Emit(e)
	})
	opts := DefaultOptions()
	opts.Backlog = 2
	c := New(dev, slow, opts)
	t.Cleanup(c.Close)

	path := audiotest.WriteWAV(t, t.TempDir(), "tone.wav", testRate, 1, 2*time.Second)
	require.NoError(t, c.Load(path))

	// 40 mono windows in one pull overflow both subscriptions.
	dev.Pull(40 * opts.WindowSize)
	time.Sleep(2 * opts.ProgressInterval)
	dev.Pull(opts.WindowSize)

	want := float64(41*opts.WindowSize) / testRate
	assert.InDelta(t, want, c.Position().Seconds(), 1e-6)
	require.Eventually(t, func() bool {
		last := -1.0
		for _, e := range rec.all() {
			if p, ok := e.(PlaybackProgress); ok {
				last = p.Seconds
			}
		}
		return math.Abs(last-want) < 1e-9
	}, waitFor, tick, "progress must count dropped windows")
}

func TestController_IdleCommandsAreNoops(t *testing.T) {
	c, dev, rec := newTestController(t)

	c.Pause()
	c.Resume()
	require.NoError(t, c.Seek(3))
	c.SetVolume(0.3)

	assert.Equal(t, Idle, c.State())
	assert.Empty(t, c.Path())
	assert.Nil(t, c.Info())
	assert.Nil(t, c.Done())
	assert.Zero(t, c.Position())
	_, ok := c.Duration()
	assert.False(t, ok)
	assert.Zero(t, dev.Active())
	assert.Zero(t, rec.len())
	assert.InDelta(t, 0.3, c.Volume(), 0)
}

func TestController_FailedLoadKeepsSession(t *testing.T) {
	c, dev, rec := newTestController(t)
	dir := t.TempDir()
	good := audiotest.WriteWAV(t, dir, "tone.wav", testRate, 1, 2*time.Second)
	empty := audiotest.WriteFile(t, dir, "empty.flac", nil)
	text := audiotest.WriteFile(t, dir, "readme.mp3", []byte("definitely not audio data"))

	require.NoError(t, c.Load(good))
	dev.Pull(1000)
	mark := rec.len()

	tests := []struct {
		name string
		path string
		want error
	}{
		{"empty file", empty, ErrDecode},
		{"non-audio file", text, ErrDecode},
		{"missing file", dir + "/missing.wav", ErrIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Load(tt.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, Playing, c.State())
	assert.Equal(t, good, c.Path())
	assert.Equal(t, 1, dev.Active())
	assert.Zero(t, dev.Clears())
	assert.Zero(t, count(rec.since(mark), "track-duration"))

	// The first session still produces audio and events.
	dev.Pull(4096)
	require.Eventually(t, func() bool {
		return count(rec.since(mark), "spectrum-update") > 0
	}, waitFor, tick)
}

func TestController_FailedSeekTargetKeepsSession(t *testing.T) {
	c, dev, _ := newTestController(t)
	path := audiotest.WriteWAV(t, t.TempDir(), "tone.wav", testRate, 1, time.Second)
	require.NoError(t, c.Load(path))

	// Replace the file with garbage; the reload must fail and leave playback.
	// The playing session keeps its open descriptor on the old inode.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.WriteFile(path, []byte("garbage!garbage!"), 0o600))

	err := c.Seek(0.5)
	require.ErrorIs(t, err, ErrDecode)
	assert.Equal(t, Playing, c.State())
	assert.Equal(t, 1, dev.Active())
}

func TestController_SeekPastEndExhausts(t *testing.T) {
	c, dev, rec := newTestController(t)
	path := audiotest.WriteWAV(t, t.TempDir(), "tone.wav", testRate, 1, time.Second)
	require.NoError(t, c.Load(path))

	mark := rec.len()
	require.NoError(t, c.Seek(30))
	done := c.Done()

	dev.Drain(1024, 10*testRate)
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("exhausted session did not finish")
	}

	c.Close()
	after := rec.since(mark)
	assert.Zero(t, count(after, "spectrum-update"))
	assert.Equal(t, 1, count(after, "track-duration"))
}

func TestController_DoneAfterNaturalEnd(t *testing.T) {
	c, dev, _ := newTestController(t)
	path := audiotest.WriteWAV(t, t.TempDir(), "short.wav", testRate, 2, 100*time.Millisecond)
	require.NoError(t, c.Load(path))
	done := c.Done()

	dev.Drain(1024, testRate)

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Done() not closed")
	}
	assert.Equal(t, Playing, c.State(), "no stopped state after exhaustion")
}

func TestController_CloseRetiresSession(t *testing.T) {
	c, dev, rec := newTestController(t)
	path := audiotest.WriteWAV(t, t.TempDir(), "tone.wav", testRate, 1, time.Second)
	require.NoError(t, c.Load(path))

	c.Close()
	mark := rec.len()

	assert.Equal(t, Idle, c.State())
	assert.Zero(t, dev.Active())
	dev.Pull(4096)
	assert.Equal(t, mark, rec.len())
}

func TestController_LoadReplacesSession(t *testing.T) {
	c, dev, rec := newTestController(t)
	dir := t.TempDir()
	first := audiotest.WriteWAV(t, dir, "first.wav", testRate, 1, 3*time.Second)
	second := audiotest.WriteWAV(t, dir, "second.wav", 22050, 2, time.Second)

	require.NoError(t, c.Load(first))
	dev.Pull(4096)
	require.NoError(t, c.Load(second))
	mark := rec.len()

	assert.Equal(t, second, c.Path())
	assert.Equal(t, 1, dev.Active())
	assert.Equal(t, TrackDuration{Seconds: 1}, rec.all()[mark-1])

	// The second file is resampled from 22.05 kHz to the device rate.
	dev.Pull(4096)
	require.Eventually(t, func() bool {
		return count(rec.since(mark), "playback-progress") > 0
	}, waitFor, tick)
}

func TestController_DegradedMode(t *testing.T) {
	rec := &recorder{}
	c := New(nil, rec, DefaultOptions())
	t.Cleanup(c.Close)
	path := audiotest.WriteWAV(t, t.TempDir(), "tone.wav", testRate, 1, 4*time.Second)

	assert.True(t, c.Degraded())
	require.NoError(t, c.Load(path))
	assert.Equal(t, Playing, c.State())
	assert.Equal(t, []Event{TrackDuration{Seconds: 4}}, rec.all())

	c.Pause()
	assert.Equal(t, Paused, c.State())
	c.SetVolume(0.7)
	assert.InDelta(t, 0.7, c.Volume(), 0)

	require.NoError(t, c.Seek(2))
	assert.Equal(t, 2*time.Second, c.Position())
	assert.Nil(t, c.Done())

	err := New(nil, nil, Options{}).Load(t.TempDir() + "/none.wav")
	assert.ErrorIs(t, err, ErrIO)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(decoder.ErrNotFound), ErrIO)
	assert.ErrorIs(t, classify(decoder.ErrUnsupportedFormat), ErrDecode)
	assert.ErrorIs(t, classify(errors.New("boom")), ErrDecode)

	err := classify(decoder.ErrNotFound)
	assert.ErrorIs(t, err, decoder.ErrNotFound, "cause stays reachable")
}
