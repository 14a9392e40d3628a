package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/murmur/internal/app"
	"github.com/llehouerou/murmur/internal/config"
	"github.com/llehouerou/murmur/internal/engine"
	"github.com/llehouerou/murmur/internal/errmsg"
	"github.com/llehouerou/murmur/internal/logging"
	"github.com/llehouerou/murmur/internal/mpris"
	"github.com/llehouerou/murmur/internal/notify"
	"github.com/llehouerou/murmur/internal/sink"
	"github.com/llehouerou/murmur/internal/spectrum"
	"github.com/llehouerou/murmur/internal/state"
	"github.com/llehouerou/murmur/internal/stderr"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) > 1 {
		return errors.New("usage: murmur [file]")
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpConfig, err))
	}

	logCfg := cfg.GetLogConfig()
	if logFile, err := logging.Setup(logCfg.File, logCfg.Level); err != nil {
		logging.Discard()
		fmt.Fprintln(os.Stderr, errmsg.Format(errmsg.OpLoggingSetup, err))
	} else {
		defer logFile.Close()
	}

	// C audio libraries write to fd 2, which would corrupt the TUI.
	var program atomic.Pointer[tea.Program]
	if err := stderr.Start(func(line string) {
		if p := program.Load(); p != nil {
			p.Send(app.StderrMsg{Line: line})
			return
		}
		log.Warn().Str("line", line).Msg("stderr")
	}); err != nil {
		log.Warn().Err(err).Msg("Stderr capture unavailable")
	}
	defer stderr.Stop()

	var status string

	var store state.Interface
	if mgr, err := state.Open(); err != nil {
		log.Error().Err(err).Msg("Open state database")
		status = errmsg.Format(errmsg.OpStateOpen, err)
	} else {
		store = mgr
		defer store.Close()
	}

	audioCfg := cfg.GetAudioConfig()
	var dev sink.Device
	if d, err := sink.OpenSpeaker(
		beep.SampleRate(audioCfg.SampleRate),
		time.Duration(audioCfg.BufferMs)*time.Millisecond,
	); err != nil {
		log.Warn().Err(err).Msg("Open audio device")
		status = errmsg.Format(errmsg.OpOpenDevice, err)
	} else {
		dev = d
	}

	opts := engineOptions(cfg)
	var muted bool
	if store != nil {
		if v, err := store.GetVolume(); err == nil {
			opts.Volume = v.Volume
			muted = v.Muted
		}
	}

	hub := engine.NewHub()
	defer hub.Close()
	events := hub.Subscribe()

	ctrl := engine.New(dev, hub, opts)
	defer ctrl.Close()

	if msg := openInitial(ctrl, store, args); msg != "" {
		status = msg
	}

	if cfg.MPRISEnabled() {
		if adapter, err := mpris.New(ctrl); err != nil {
			log.Warn().Err(err).Msg("Start MPRIS")
		} else {
			defer adapter.Close()
		}
	}

	var notifier notify.Notifier
	if cfg.NotificationsEnabled() {
		if n, err := notify.New(); err != nil {
			log.Warn().Err(err).Msg("Desktop notifications unavailable")
		} else {
			notifier = n
		}
	}

	m := app.New(app.Options{
		Player:   ctrl,
		Events:   events,
		StateMgr: store,
		Notifier: notifier,
		Degraded: ctrl.Degraded(),
		Muted:    muted,
		Status:   status,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	program.Store(p)
	if _, err := p.Run(); err != nil {
		return errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}
	return nil
}

// openInitial loads the file given on the command line, or the last session
// paused at its saved position. It returns a status line on failure.
func openInitial(ctrl *engine.Controller, store state.Interface, args []string) string {
	if len(args) == 1 {
		path, err := filepath.Abs(args[0])
		if err != nil {
			path = args[0]
		}
		if err := ctrl.Load(path); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Load track")
			return errmsg.FormatWith(errmsg.OpLoad, filepath.Base(path), err)
		}
		return ""
	}

	if store == nil {
		return ""
	}
	session, err := store.GetSession()
	if err != nil {
		return errmsg.Format(errmsg.OpSessionLoad, err)
	}
	if session == nil || session.Path == "" {
		return ""
	}
	if err := ctrl.Cue(session.Path, session.Position); err != nil {
		log.Warn().Err(err).Str("path", session.Path).Msg("Restore session")
		return errmsg.Format(errmsg.OpSessionLoad, err)
	}
	return ""
}

func engineOptions(cfg *config.Config) engine.Options {
	audioCfg := cfg.GetAudioConfig()
	analysis := cfg.GetAnalysisConfig()

	opts := engine.DefaultOptions()
	opts.WindowSize = analysis.WindowSize
	opts.Backlog = analysis.Backlog
	opts.Spectrum = spectrum.Config{
		MinHz:     analysis.MinHz,
		MaxHz:     analysis.MaxHz,
		MaxBars:   analysis.MaxBars,
		Reduction: spectrum.Reduction(analysis.Reduction),
	}
	opts.ProgressInterval = time.Duration(cfg.GetProgressConfig().IntervalMs) * time.Millisecond
	opts.ResampleQuality = audioCfg.ResampleQuality
	return opts
}
