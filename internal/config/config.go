package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const appName = "murmur"

type Config struct {
	Audio    AudioConfig    `koanf:"audio"`
	Analysis AnalysisConfig `koanf:"analysis"`
	Progress ProgressConfig `koanf:"progress"`
	Log      LogConfig      `koanf:"log"`
	MPRIS    MPRISConfig    `koanf:"mpris"`

	Notifications NotificationsConfig `koanf:"notifications"`
}

// AudioConfig holds output device settings.
type AudioConfig struct {
	SampleRate      int `koanf:"sample_rate"`      // device rate in Hz (default: 44100)
	BufferMs        int `koanf:"buffer_ms"`        // speaker buffer length (default: 100)
	ResampleQuality int `koanf:"resample_quality"` // beep resampler quality 1-64 (default: 4)
}

// AnalysisConfig holds sample window and spectrum settings.
type AnalysisConfig struct {
	WindowSize int     `koanf:"window_size"` // interleaved samples per window (default: 1024)
	Backlog    int     `koanf:"backlog"`     // windows queued per consumer before dropping (default: 32)
	MinHz      float64 `koanf:"min_hz"`      // lowest reported frequency (default: 20)
	MaxHz      float64 `koanf:"max_hz"`      // highest reported frequency (default: 20000)
	MaxBars    int     `koanf:"max_bars"`    // bars per frame, 1-100 (default: 100)
	Reduction  string  `koanf:"reduction"`   // "truncate" or "decimate" (default: "truncate")
}

// ProgressConfig holds progress event settings.
type ProgressConfig struct {
	IntervalMs int `koanf:"interval_ms"` // minimum time between progress events (default: 250)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `koanf:"level"` // "debug", "info", "warn", "error" (default: "info")
	File  string `koanf:"file"`  // log file path (default: $XDG_STATE_HOME/murmur/murmur.log)
}

// MPRISConfig holds the D-Bus media player bridge settings.
type MPRISConfig struct {
	Enabled *bool `koanf:"enabled"` // expose org.mpris.MediaPlayer2 (default: true)
}

// NotificationsConfig holds desktop notification settings.
type NotificationsConfig struct {
	Enabled *bool `koanf:"enabled"` // announce each new track (default: true)
}

func Load() (*Config, error) {
	return LoadFrom(getConfigPaths()...)
}

// LoadFrom reads the given TOML files in order; later files override earlier
// ones and missing files are skipped.
func LoadFrom(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	// Expand ~ in log file
	if cfg.Log.File != "" {
		cfg.Log.File = expandPath(cfg.Log.File)
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Analysis.Reduction = strings.ToLower(strings.TrimSpace(cfg.Analysis.Reduction))

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/murmur/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName, "config.toml"))
	}

	// 2. $XDG_CONFIG_HOME/murmur/config.toml, when it differs from the above
	if xdgPath := filepath.Join(xdg.ConfigHome, appName, "config.toml"); len(paths) == 0 || paths[0] != xdgPath {
		paths = append(paths, xdgPath)
	}

	// 3. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetAudioConfig returns the audio configuration with defaults applied.
func (c *Config) GetAudioConfig() AudioConfig {
	cfg := c.Audio

	// Apply defaults
	if cfg.SampleRate < 8000 || cfg.SampleRate > 192000 {
		cfg.SampleRate = 44100
	}
	if cfg.BufferMs <= 0 || cfg.BufferMs > 2000 {
		cfg.BufferMs = 100
	}
	if cfg.ResampleQuality <= 0 || cfg.ResampleQuality > 64 {
		cfg.ResampleQuality = 4
	}

	return cfg
}

// GetAnalysisConfig returns the analysis configuration with defaults applied.
func (c *Config) GetAnalysisConfig() AnalysisConfig {
	cfg := c.Analysis

	if cfg.WindowSize < 2 || cfg.WindowSize > 65536 {
		cfg.WindowSize = 1024
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = 32
	}
	if cfg.MinHz <= 0 {
		cfg.MinHz = 20
	}
	if cfg.MaxHz <= cfg.MinHz {
		cfg.MaxHz = 20000
	}
	if cfg.MaxBars <= 0 || cfg.MaxBars > 100 {
		cfg.MaxBars = 100
	}
	if cfg.Reduction != "truncate" && cfg.Reduction != "decimate" {
		cfg.Reduction = "truncate"
	}

	return cfg
}

// GetProgressConfig returns the progress configuration with defaults applied.
func (c *Config) GetProgressConfig() ProgressConfig {
	cfg := c.Progress
	if cfg.IntervalMs <= 0 {
		cfg.IntervalMs = 250
	}
	return cfg
}

// GetLogConfig returns the log configuration with defaults applied.
func (c *Config) GetLogConfig() LogConfig {
	cfg := c.Log
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		cfg.Level = "info"
	}
	if cfg.File == "" {
		cfg.File = filepath.Join(xdg.StateHome, appName, appName+".log")
	}
	return cfg
}

// MPRISEnabled returns true unless the bridge was disabled explicitly.
func (c *Config) MPRISEnabled() bool {
	return c.MPRIS.Enabled == nil || *c.MPRIS.Enabled
}

// NotificationsEnabled returns true unless notifications were disabled explicitly.
func (c *Config) NotificationsEnabled() bool {
	return c.Notifications.Enabled == nil || *c.Notifications.Enabled
}
