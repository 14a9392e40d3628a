package decoder

import (
	"context"
	"errors"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/llehouerou/alac"
	"github.com/llehouerou/go-faad2"
	"github.com/llehouerou/go-m4a"
)

const alacFrameSize = 4096

var errM4ACodec = errors.New("m4a: unsupported codec in container")

// m4aStream decodes AAC or ALAC samples out of an MP4 container.
type m4aStream struct {
	box      *m4a.Reader
	closer   io.Closer
	codec    m4a.CodecType
	aac      *faad2.Decoder
	alac     *alac.Alac
	channels int
	depth    int
	next     int
	length   int
	frames   [][2]float64
	pos      int
	err      error
}

func decodeM4A(rc io.ReadSeekCloser) (source, beep.Format, Codec, error) {
	box, err := m4a.Open(rc)
	if err != nil {
		return nil, beep.Format{}, "", err
	}

	rate := int(box.SampleRate())
	s := &m4aStream{
		box:      box,
		closer:   rc,
		codec:    box.Codec(),
		channels: int(box.Channels()),
		depth:    int(box.SampleSize()),
		length:   int(box.Duration().Seconds() * float64(rate)),
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(rate),
		NumChannels: min(s.channels, 2),
		Precision:   2,
	}

	var codec Codec
	switch s.codec {
	case m4a.CodecAAC:
		codec = CodecAAC
		ctx := context.Background()
		dec, err := faad2.NewDecoder(ctx)
		if err != nil {
			return nil, beep.Format{}, "", err
		}
		if err := dec.Init(ctx, box.CodecConfig()); err != nil {
			dec.Close(ctx)
			return nil, beep.Format{}, "", err
		}
		s.aac = dec
	case m4a.CodecALAC:
		codec = CodecALAC
		if s.depth == 24 {
			format.Precision = 3
		}
		dec, err := alac.NewWithConfig(alac.Config{
			SampleRate:  rate,
			SampleSize:  s.depth,
			NumChannels: s.channels,
			FrameSize:   alacFrameSize,
		})
		if err != nil {
			return nil, beep.Format{}, "", err
		}
		s.alac = dec
	case m4a.CodecUnknown:
		return nil, beep.Format{}, "", errM4ACodec
	}

	return s, format, codec, nil
}

func (s *m4aStream) Stream(samples [][2]float64) (n int, ok bool) {
	if s.err != nil {
		return 0, false
	}

	for n < len(samples) {
		if s.pos < len(s.frames) {
			c := copy(samples[n:], s.frames[s.pos:])
			s.pos += c
			n += c
			continue
		}
		if s.next >= s.box.SampleCount() {
			return n, n > 0
		}

		data, err := s.box.ReadSample(s.next)
		if err != nil {
			s.err = err
			return n, n > 0
		}
		s.next++

		switch s.codec {
		case m4a.CodecAAC:
			pcm, err := s.aac.Decode(context.Background(), data)
			if err != nil {
				s.err = err
				return n, n > 0
			}
			s.frames = s.int16Frames(pcm)
		case m4a.CodecALAC:
			s.frames = s.packedFrames(s.alac.Decode(data))
		case m4a.CodecUnknown:
			s.err = errM4ACodec
			return n, n > 0
		}
		s.pos = 0
	}
	return n, true
}

func (s *m4aStream) int16Frames(pcm []int16) [][2]float64 {
	ch := max(s.channels, 1)
	frames := s.frames[:0]
	for i := 0; i+ch <= len(pcm); i += ch {
		left := float64(pcm[i]) / 32768
		right := left
		if ch > 1 {
			right = float64(pcm[i+1]) / 32768
		}
		frames = append(frames, [2]float64{left, right})
	}
	return frames
}

// packedFrames converts little-endian 16 or 24-bit ALAC output to frames.
func (s *m4aStream) packedFrames(data []byte) [][2]float64 {
	width := 2
	scale := 32768.0
	if s.depth == 24 {
		width = 3
		scale = 8388608
	}
	ch := max(s.channels, 1)
	stride := width * ch

	sample := func(off int) float64 {
		if width == 3 {
			v := int32(data[off]) | int32(data[off+1])<<8 | int32(data[off+2])<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}
			return float64(v) / scale
		}
		return float64(int16(data[off])|int16(data[off+1])<<8) / scale
	}

	frames := s.frames[:0]
	for off := 0; off+stride <= len(data); off += stride {
		left := sample(off)
		right := left
		if ch > 1 {
			right = sample(off + width)
		}
		frames = append(frames, [2]float64{left, right})
	}
	return frames
}

func (s *m4aStream) Err() error { return s.err }

func (s *m4aStream) Len() int { return s.length }

func (s *m4aStream) Close() error {
	if s.aac != nil {
		s.aac.Close(context.Background())
	}
	return s.closer.Close()
}
