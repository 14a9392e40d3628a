package main

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/murmur/internal/decoder"
	"github.com/llehouerou/murmur/internal/progress"
	"github.com/llehouerou/murmur/internal/spectrum"
	"github.com/llehouerou/murmur/internal/tap"
	"github.com/llehouerou/murmur/internal/ui/playerbar"
)

const pullFrames = 512

type probeOptions struct {
	Offset     float64
	WindowSize int
	MaxBars    int
	Reduction  spectrum.Reduction
	Every      int
	Interval   time.Duration
}

type summary struct {
	Windows  int64
	Frames   int
	Progress []float64
	Dropped  uint64
	Peak     float64 // frequency of the loudest bar over the whole track
}

// probe pulls the whole track through a tap and feeds the windows to an
// analyzer and a reporter synchronously. Progress is throttled on media time
// rather than wall time, so the output does not depend on decode speed.
func probe(w io.Writer, path string, opts probeOptions) (summary, error) {
	var sum summary

	track, err := decoder.Open(path)
	if err != nil {
		return sum, err
	}
	defer track.Close()

	info, _ := decoder.ReadInfo(path)
	fmt.Fprintf(w, "file:     %s\n", path)
	if info != nil {
		fmt.Fprintf(w, "title:    %s\n", info.Label())
		fmt.Fprintf(w, "size:     %s\n", humanize.Bytes(uint64(info.Size)))
	}
	fmt.Fprintf(w, "codec:    %s %d Hz, %d ch\n", track.Codec(), track.SampleRate(), track.Channels())
	if d, ok := track.Duration(); ok {
		fmt.Fprintf(w, "duration: %.3fs (%s)\n", d.Seconds(), playerbar.FormatDuration(d))
	} else {
		fmt.Fprintln(w, "duration: unknown")
	}

	if opts.Offset > 0 {
		skipped := track.Skip(time.Duration(opts.Offset * float64(time.Second)))
		log.Debug().Int("frames", skipped).Float64("offset", opts.Offset).Msg("Skipped")
	}

	cfg := spectrum.DefaultConfig(int(track.SampleRate()))
	cfg.WindowSize = opts.WindowSize
	if opts.MaxBars > 0 {
		cfg.MaxBars = opts.MaxBars
	}
	if opts.Reduction != "" {
		cfg.Reduction = opts.Reduction
	}
	analyzer, err := spectrum.New(cfg)
	if err != nil {
		return sum, err
	}

	rep := progress.New(int(track.SampleRate()), track.Channels(), opts.Offset, opts.Interval)
	epoch := time.Unix(0, 0)
	rep.SetClock(func() time.Time {
		return epoch.Add(time.Duration(rep.Elapsed() * float64(time.Second)))
	})

	bus := tap.NewBus()
	defer bus.Close()
	// One pull fills at most 2*pullFrames/WindowSize windows and the queue
	// is drained after every pull, so nothing is dropped.
	windows := bus.Subscribe(max(tap.DefaultBacklog, 2*pullFrames/cfg.WindowSize+1))
	tp := tap.New(track, track.Channels(), cfg.WindowSize, bus)

	loudest := -1.0
	drain := func() {
		for {
			select {
			case win := <-windows.C:
				sum.Windows++
				if secs, ok := rep.Observe(len(win)); ok {
					sum.Progress = append(sum.Progress, secs)
					fmt.Fprintf(w, "progress  %8.3fs\n", secs)
				}
				bars, err := analyzer.Analyze(win)
				if err != nil {
					log.Debug().Err(err).Msg("Dropped window")
					continue
				}
				idx, mag := argmax(bars)
				if mag > loudest {
					loudest, sum.Peak = mag, analyzer.BinHz(idx)
				}
				if opts.Every > 0 && sum.Frames%opts.Every == 0 {
					fmt.Fprintf(w, "spectrum  #%-6d %3d bars  peak %7.1f Hz  %6.1f dB\n",
						sum.Frames, len(bars), analyzer.BinHz(idx), decibels(mag))
				}
				sum.Frames++
			default:
				return
			}
		}
	}

	buf := make([][2]float64, pullFrames)
	for {
		_, ok := tp.Stream(buf)
		drain()
		if !ok {
			break
		}
	}
	if err := tp.Err(); err != nil {
		return sum, err
	}

	sum.Dropped = bus.Dropped()
	fmt.Fprintf(w, "windows:  %d (%d dropped), spectrum frames: %d, progress events: %d\n",
		sum.Windows, sum.Dropped, sum.Frames, len(sum.Progress))
	fmt.Fprintf(w, "elapsed:  %.3fs, loudest bar at %.1f Hz\n", rep.Elapsed(), sum.Peak)
	return sum, nil
}

func argmax(v []float64) (int, float64) {
	best, idx := -1.0, 0
	for i, x := range v {
		if x > best {
			best, idx = x, i
		}
	}
	return idx, best
}

func decibels(mag float64) float64 {
	if mag <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(mag)
}
