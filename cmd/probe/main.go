// Command probe decodes an audio file without an output device and prints
// the events the player would emit for it: the track duration, throttled
// progress and spectrum frames.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/murmur/internal/logging"
	"github.com/llehouerou/murmur/internal/spectrum"
)

func main() {
	var opts probeOptions
	flag.Float64Var(&opts.Offset, "offset", 0, "start `seconds` into the track")
	flag.IntVar(&opts.WindowSize, "window", 1024, "interleaved samples per analysis window")
	flag.IntVar(&opts.MaxBars, "bars", spectrum.MaxBars, "bars per spectrum frame (1-100)")
	decimate := flag.Bool("decimate", false, "spread bars over the whole range instead of keeping the lowest")
	flag.IntVar(&opts.Every, "every", 50, "print every `n`th spectrum frame (0 prints none)")
	flag.DurationVar(&opts.Interval, "interval", 250*time.Millisecond, "progress interval in media time")
	verbose := flag.Bool("v", false, "debug logging on stderr")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: probe [flags] file\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if *decimate {
		opts.Reduction = spectrum.Decimate
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logging.Configure(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}, level)

	if _, err := probe(os.Stdout, flag.Arg(0), opts); err != nil {
		fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		os.Exit(1)
	}
}
