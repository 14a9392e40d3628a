//go:build linux

package mpris

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/murmur/internal/engine"
)

// Adapter exposes an engine controller over MPRIS on the session bus.
type Adapter struct {
	server *server.Server
}

// New creates and starts a new MPRIS adapter.
func New(player engine.Interface) (*Adapter, error) {
	a := &Adapter{
		server: server.NewServer("murmur", &rootAdapter{}, &playerAdapter{player: player}),
	}

	go func() {
		if err := a.server.Listen(); err != nil {
			log.Warn().Err(err).Msg("MPRIS server stopped")
		}
	}()

	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error { return nil }

func (r *rootAdapter) Quit() error { return nil }

func (r *rootAdapter) CanQuit() (bool, error) { return false, nil }

func (r *rootAdapter) CanRaise() (bool, error) { return false, nil }

func (r *rootAdapter) HasTrackList() (bool, error) { return false, nil }

func (r *rootAdapter) Identity() (string, error) { return "Murmur", nil }

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{
		"audio/mpeg", "audio/mp3", "audio/flac", "audio/wav",
		"audio/ogg", "audio/opus", "audio/mp4",
	}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter.
type playerAdapter struct {
	player engine.Interface
}

// Single-track player.
func (p *playerAdapter) Next() error { return nil }

func (p *playerAdapter) Previous() error { return nil }

func (p *playerAdapter) Pause() error {
	p.player.Pause()
	return nil
}

func (p *playerAdapter) PlayPause() error {
	p.player.Toggle()
	return nil
}

// Stop pauses: the controller has no stopped state that keeps the track.
func (p *playerAdapter) Stop() error {
	p.player.Pause()
	return nil
}

func (p *playerAdapter) Play() error {
	p.player.Resume()
	return nil
}

// Seek moves relative to the current position.
func (p *playerAdapter) Seek(offset types.Microseconds) error {
	if p.player.State() == engine.Idle {
		return nil
	}
	target := p.player.Position() + time.Duration(offset)*time.Microsecond
	return p.player.Seek(max(target, 0).Seconds())
}

func (p *playerAdapter) SetPosition(_ string, position types.Microseconds) error {
	if position < 0 {
		return nil
	}
	if d, ok := p.player.Duration(); ok && time.Duration(position)*time.Microsecond > d {
		return nil
	}
	return p.player.Seek((time.Duration(position) * time.Microsecond).Seconds())
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return err
	}
	if u.Scheme != "file" {
		return fmt.Errorf("unsupported uri scheme %q", u.Scheme)
	}
	return p.player.Load(u.Path)
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.player.State() {
	case engine.Playing:
		return types.PlaybackStatusPlaying, nil
	case engine.Paused:
		return types.PlaybackStatusPaused, nil
	case engine.Idle:
		return types.PlaybackStatusStopped, nil
	}
	return types.PlaybackStatusStopped, nil
}

func (p *playerAdapter) Rate() (float64, error) { return 1.0, nil }

func (p *playerAdapter) SetRate(_ float64) error { return nil }

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	info := p.player.Info()
	if info == nil {
		return types.Metadata{}, nil
	}

	meta := types.Metadata{
		TrackId:     dbus.ObjectPath(formatTrackID(info.Path)),
		Title:       info.Title,
		Album:       info.Album,
		TrackNumber: info.Track,
		Url:         (&url.URL{Scheme: "file", Path: info.Path}).String(),
	}
	if info.Artist != "" {
		meta.Artist = []string{info.Artist}
	}
	if d, ok := p.player.Duration(); ok {
		meta.Length = types.Microseconds(d.Microseconds())
	}
	if artPath := FindAlbumArt(info.Path); artPath != "" {
		meta.ArtUrl = "file://" + artPath
	}

	return meta, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return p.player.Volume(), nil
}

func (p *playerAdapter) SetVolume(v float64) error {
	p.player.SetVolume(max(v, 0))
	return nil
}

func (p *playerAdapter) Position() (int64, error) {
	return p.player.Position().Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) { return 1.0, nil }

func (p *playerAdapter) MaximumRate() (float64, error) { return 1.0, nil }

func (p *playerAdapter) CanGoNext() (bool, error) { return false, nil }

func (p *playerAdapter) CanGoPrevious() (bool, error) { return false, nil }

func (p *playerAdapter) CanPlay() (bool, error) {
	return p.player.State() != engine.Idle, nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return p.player.State() != engine.Idle, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return p.player.State() != engine.Idle, nil
}

func (p *playerAdapter) CanControl() (bool, error) { return true, nil }

func formatTrackID(path string) string {
	h := fnv.New64a()
	h.Write([]byte(path))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
