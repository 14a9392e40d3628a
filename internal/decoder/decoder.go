// Package decoder opens audio files as finite, pull-based sample streams.
//
// A Track exposes its sample rate, channel count and (when the container
// carries it) total duration before any sample is pulled. Tracks are consumed
// once, front to back, by a single reader.
package decoder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/wav"
)

var (
	// ErrNotFound reports a file that cannot be opened or read.
	ErrNotFound = errors.New("file not found or unreadable")
	// ErrUnsupportedFormat reports a container or codec that cannot be parsed.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Codec identifies the decoded audio codec.
type Codec string

const (
	CodecMP3    Codec = "MP3"
	CodecFLAC   Codec = "FLAC"
	CodecWAV    Codec = "WAV"
	CodecVorbis Codec = "Vorbis"
	CodecOpus   Codec = "Opus"
	CodecAAC    Codec = "AAC"
	CodecALAC   Codec = "ALAC"
)

// container is the file layout detected before picking a codec.
type container int

const (
	containerUnknown container = iota
	containerMP3
	containerFLAC
	containerWAV
	containerOgg
	containerMP4
)

const skipChunk = 1024

// source is what every codec backend hands back to a Track.
type source interface {
	beep.Streamer
	Len() int
	Close() error
}

// Track is an opened audio file producing normalized stereo frames.
// Mono tracks carry the same value in both slots of a frame.
type Track struct {
	path     string
	codec    Codec
	src      source
	format   beep.Format
	channels int
	length   int
}

// Open opens path and prepares a decoder for it.
func Open(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	kind, err := detect(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}

	var (
		src    source
		format beep.Format
		codec  Codec
	)
	switch kind {
	case containerMP3:
		codec = CodecMP3
		src, format, err = decodeMP3(f)
	case containerFLAC:
		codec = CodecFLAC
		if err = skipID3v2(f); err == nil {
			src, format, err = flac.Decode(f)
		}
	case containerWAV:
		codec = CodecWAV
		src, format, err = wav.Decode(f)
	case containerOgg:
		src, format, codec, err = decodeOgg(f)
	case containerMP4:
		src, format, codec, err = decodeM4A(f)
	case containerUnknown:
		err = errors.New("unrecognized container")
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedFormat, filepath.Base(path), err)
	}

	channels := format.NumChannels
	if channels <= 0 || channels > 2 {
		channels = 2
	}

	return &Track{
		path:     path,
		codec:    codec,
		src:      src,
		format:   format,
		channels: channels,
		length:   src.Len(),
	}, nil
}

// Stream implements beep.Streamer.
func (t *Track) Stream(samples [][2]float64) (int, bool) {
	return t.src.Stream(samples)
}

// Err implements beep.Streamer.
func (t *Track) Err() error { return t.src.Err() }

// Path returns the file the track was opened from.
func (t *Track) Path() string { return t.path }

// Codec returns the detected codec.
func (t *Track) Codec() Codec { return t.codec }

// SampleRate returns the decoder-reported sample rate.
func (t *Track) SampleRate() beep.SampleRate { return t.format.SampleRate }

// Channels returns how many distinct channels each frame carries (1 or 2).
func (t *Track) Channels() int { return t.channels }

// Format returns the beep format of the stream.
func (t *Track) Format() beep.Format { return t.format }

// Duration returns the total length of the track. The second result is false
// when the container does not report a length.
func (t *Track) Duration() (time.Duration, bool) {
	if t.length <= 0 || t.format.SampleRate <= 0 {
		return 0, false
	}
	return t.format.SampleRate.D(t.length), true
}

// Skip decodes and discards d worth of frames from the front of the stream.
// Skipping past the end leaves the track exhausted. It returns the number of
// frames actually discarded.
func (t *Track) Skip(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	remaining := t.format.SampleRate.N(d)
	buf := make([][2]float64, skipChunk)
	skipped := 0
	for remaining > 0 {
		n, ok := t.src.Stream(buf[:min(remaining, len(buf))])
		skipped += n
		remaining -= n
		if !ok || n == 0 {
			break
		}
	}
	return skipped
}

// Close releases the decoder and the underlying file.
func (t *Track) Close() error {
	return t.src.Close()
}

var extensions = map[string]container{
	".mp3":  containerMP3,
	".flac": containerFLAC,
	".wav":  containerWAV,
	".wave": containerWAV,
	".ogg":  containerOgg,
	".oga":  containerOgg,
	".opus": containerOgg,
	".m4a":  containerMP4,
	".m4b":  containerMP4,
	".mp4":  containerMP4,
}

// IsAudioFile reports whether path has an extension the decoder handles.
func IsAudioFile(path string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// detect sniffs the leading bytes of r and falls back to the file extension.
// The reader is rewound before returning.
func detect(r io.ReadSeeker, path string) (container, error) {
	var head [12]byte
	n, err := io.ReadFull(r, head[:])
	switch {
	case n == 0 && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)):
		return containerUnknown, fmt.Errorf("%w: %s: empty file", ErrUnsupportedFormat, filepath.Base(path))
	case err != nil && !errors.Is(err, io.ErrUnexpectedEOF):
		return containerUnknown, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	kind := sniff(head[:n])
	if kind == containerMP3 && string(head[:3]) == "ID3" && n >= 10 {
		// FLAC files sometimes carry an ID3v2 tag in front of the stream marker.
		size := int64(head[6])<<21 | int64(head[7])<<14 | int64(head[8])<<7 | int64(head[9])
		if _, err := r.Seek(10+size, io.SeekStart); err == nil {
			var marker [4]byte
			if _, err := io.ReadFull(r, marker[:]); err == nil && string(marker[:]) == "fLaC" {
				kind = containerFLAC
			}
		}
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return containerUnknown, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	if kind == containerUnknown {
		kind = extensions[strings.ToLower(filepath.Ext(path))]
	}
	if kind == containerUnknown {
		return containerUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
	return kind, nil
}

func sniff(b []byte) container {
	switch {
	case len(b) >= 4 && string(b[:4]) == "fLaC":
		return containerFLAC
	case len(b) >= 4 && string(b[:4]) == "OggS":
		return containerOgg
	case len(b) >= 12 && string(b[:4]) == "RIFF" && string(b[8:12]) == "WAVE":
		return containerWAV
	case len(b) >= 8 && string(b[4:8]) == "ftyp":
		return containerMP4
	case len(b) >= 3 && string(b[:3]) == "ID3":
		return containerMP3
	case len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0 && b[1]&0x06 != 0:
		// MPEG frame sync with a non-zero layer (ADTS AAC uses layer 0).
		return containerMP3
	}
	return containerUnknown
}

// skipID3v2 positions r after a leading ID3v2 tag, or at the start when there is none.
func skipID3v2(r io.ReadSeeker) error {
	var header [10]byte
	n, err := io.ReadFull(r, header[:])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	if n < len(header) || string(header[:3]) != "ID3" {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}
	// Syncsafe integer: 7 bits per byte.
	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
