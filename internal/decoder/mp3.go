package decoder

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/llehouerou/go-mp3"
)

// go-mp3 always yields 16-bit little-endian stereo.
const mp3BytesPerFrame = 4

type mp3Stream struct {
	dec    *mp3.Decoder
	closer io.Closer
	buf    []byte
	err    error
}

func decodeMP3(rc io.ReadCloser) (source, beep.Format, error) {
	dec, err := mp3.NewDecoder(rc)
	if err != nil {
		return nil, beep.Format{}, err
	}
	if dec.SampleRate() == 0 {
		return nil, beep.Format{}, errors.New("mp3: invalid sample rate")
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(dec.SampleRate()),
		NumChannels: 2,
		Precision:   2,
	}
	return &mp3Stream{
		dec:    dec,
		closer: rc,
		buf:    make([]byte, 8192),
	}, format, nil
}

func (s *mp3Stream) Stream(samples [][2]float64) (int, bool) {
	if s.err != nil {
		return 0, false
	}

	want := len(samples) * mp3BytesPerFrame
	if len(s.buf) < want {
		s.buf = make([]byte, want)
	}

	read, err := io.ReadFull(s.dec, s.buf[:want])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		s.err = err
		return 0, false
	}

	frames := read / mp3BytesPerFrame
	if frames == 0 {
		return 0, false
	}
	for i := range frames {
		off := i * mp3BytesPerFrame
		left := int16(binary.LittleEndian.Uint16(s.buf[off:]))    //nolint:gosec // PCM sample
		right := int16(binary.LittleEndian.Uint16(s.buf[off+2:])) //nolint:gosec // PCM sample
		samples[i][0] = float64(left) / 32768
		samples[i][1] = float64(right) / 32768
	}
	return frames, true
}

func (s *mp3Stream) Err() error { return s.err }

func (s *mp3Stream) Len() int {
	if n := s.dec.SampleCount(); n > 0 {
		return int(n)
	}
	return 0
}

func (s *mp3Stream) Close() error { return s.closer.Close() }
