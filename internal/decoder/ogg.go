package decoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/jfreymuth/vorbis"
	"github.com/jj11hh/opus"
)

const (
	oggHeaderSize    = 27
	oggFlagContinued = 0x01
	oggTailScan      = 64 * 1024

	opusSampleRate   = 48000
	opusMaxFrameSize = 5760 // 120 ms at 48 kHz
)

var (
	errOggCapture      = errors.New("ogg: invalid capture pattern")
	errOggVersion      = errors.New("ogg: unsupported stream structure version")
	errOggUnknownCodec = errors.New("ogg: stream is neither Vorbis nor Opus")
	errOggNoHeaders    = errors.New("ogg: missing codec headers")
	errOpusHead        = errors.New("opus: invalid OpusHead packet")
)

// oggPackets reassembles the packets of the first logical stream in an Ogg file.
type oggPackets struct {
	r       io.Reader
	serial  uint32
	started bool
	queue   [][]byte
	partial []byte
}

func newOggPackets(r io.Reader) *oggPackets {
	return &oggPackets{r: r}
}

// next returns the next complete packet, or io.EOF at the end of the stream.
func (p *oggPackets) next() ([]byte, error) {
	for len(p.queue) == 0 {
		if err := p.readPage(); err != nil {
			return nil, err
		}
	}
	pkt := p.queue[0]
	p.queue = p.queue[1:]
	return pkt, nil
}

func (p *oggPackets) readPage() error {
	var hdr [oggHeaderSize]byte
	if _, err := io.ReadFull(p.r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return err
	}
	if string(hdr[:4]) != "OggS" {
		return errOggCapture
	}
	if hdr[4] != 0 {
		return errOggVersion
	}
	flags := hdr[5]
	serial := binary.LittleEndian.Uint32(hdr[14:18])

	lacing := make([]byte, hdr[26])
	if _, err := io.ReadFull(p.r, lacing); err != nil {
		return err
	}
	bodyLen := 0
	for _, l := range lacing {
		bodyLen += int(l)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(p.r, body); err != nil {
		return err
	}

	if !p.started {
		p.serial = serial
		p.started = true
	}
	if serial != p.serial {
		return nil
	}
	if flags&oggFlagContinued == 0 {
		// A dangling partial packet without a continuation page is corrupt.
		p.partial = nil
	}

	// A lacing value below 255 terminates a packet; a trailing 255 means the
	// last packet continues on the next page.
	off := 0
	segStart := 0
	for _, l := range lacing {
		off += int(l)
		if l < 255 {
			pkt := append(p.partial, body[segStart:off]...)
			p.partial = nil
			p.queue = append(p.queue, pkt)
			segStart = off
		}
	}
	if segStart < off || (len(lacing) > 0 && lacing[len(lacing)-1] == 255) {
		p.partial = append(p.partial, body[segStart:off]...)
	}
	return nil
}

// lastGranule scans the tail of rs for the final page's granule position.
// The read offset of rs is restored.
func lastGranule(rs io.ReadSeeker) (int64, error) {
	cur, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	defer rs.Seek(cur, io.SeekStart) //nolint:errcheck // best effort restore

	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	start := max(size-oggTailScan, 0)
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return 0, err
	}
	tail := make([]byte, size-start)
	if _, err := io.ReadFull(rs, tail); err != nil {
		return 0, err
	}

	for i := bytes.LastIndex(tail, []byte("OggS")); i >= 0; i = bytes.LastIndex(tail[:i], []byte("OggS")) {
		if i+oggHeaderSize > len(tail) {
			continue
		}
		granule := int64(binary.LittleEndian.Uint64(tail[i+6 : i+14])) //nolint:gosec // granule is signed on the wire
		if granule >= 0 {
			return granule, nil
		}
	}
	return 0, nil
}

// oggCodec decodes the audio packets of one logical Ogg stream.
type oggCodec interface {
	codec() Codec
	sampleRate() int
	channels() int
	preSkip() int
	decode(packet []byte) ([]float32, error)
}

type vorbisCodec struct {
	dec vorbis.Decoder
}

func newVorbisCodec(packets *oggPackets, ident []byte) (*vorbisCodec, error) {
	c := &vorbisCodec{}
	if err := c.dec.ReadHeader(ident); err != nil {
		return nil, err
	}
	// Comment and setup headers follow the identification header.
	for range 2 {
		pkt, err := packets.next()
		if err != nil {
			return nil, errOggNoHeaders
		}
		if err := c.dec.ReadHeader(pkt); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *vorbisCodec) codec() Codec    { return CodecVorbis }
func (c *vorbisCodec) sampleRate() int { return c.dec.SampleRate() }
func (c *vorbisCodec) channels() int   { return c.dec.Channels() }
func (c *vorbisCodec) preSkip() int    { return 0 }

func (c *vorbisCodec) decode(packet []byte) ([]float32, error) {
	return c.dec.Decode(packet)
}

type opusCodec struct {
	dec  *opus.Decoder
	ch   int
	skip int
	pcm  []float32
}

func newOpusCodec(packets *oggPackets, head []byte) (*opusCodec, error) {
	if len(head) < 19 || head[8] != 1 {
		return nil, errOpusHead
	}
	ch := int(head[9])
	dec, err := opus.NewDecoder(opusSampleRate, ch)
	if err != nil {
		return nil, err
	}
	// OpusTags carries no audio.
	if _, err := packets.next(); err != nil {
		return nil, errOggNoHeaders
	}
	return &opusCodec{
		dec:  dec,
		ch:   ch,
		skip: int(binary.LittleEndian.Uint16(head[10:12])),
		pcm:  make([]float32, opusMaxFrameSize*ch),
	}, nil
}

func (c *opusCodec) codec() Codec    { return CodecOpus }
func (c *opusCodec) sampleRate() int { return opusSampleRate }
func (c *opusCodec) channels() int   { return c.ch }
func (c *opusCodec) preSkip() int    { return c.skip }

func (c *opusCodec) decode(packet []byte) ([]float32, error) {
	n, err := c.dec.DecodeFloat32(packet, c.pcm)
	if err != nil {
		return nil, err
	}
	return c.pcm[:n*c.ch], nil
}

func decodeOgg(rs io.ReadSeekCloser) (source, beep.Format, Codec, error) {
	granule, err := lastGranule(rs)
	if err != nil {
		return nil, beep.Format{}, "", err
	}

	packets := newOggPackets(rs)
	first, err := packets.next()
	if err != nil {
		return nil, beep.Format{}, "", errOggNoHeaders
	}

	var codec oggCodec
	switch {
	case len(first) >= 8 && string(first[:8]) == "OpusHead":
		codec, err = newOpusCodec(packets, first)
	case len(first) >= 7 && first[0] == 0x01 && string(first[1:7]) == "vorbis":
		codec, err = newVorbisCodec(packets, first)
	default:
		err = errOggUnknownCodec
	}
	if err != nil {
		return nil, beep.Format{}, "", err
	}

	length := int(granule) - codec.preSkip()
	format := beep.Format{
		SampleRate:  beep.SampleRate(codec.sampleRate()),
		NumChannels: min(codec.channels(), 2),
		Precision:   2,
	}
	return &oggStream{
		packets: packets,
		codec:   codec,
		closer:  rs,
		skip:    codec.preSkip(),
		length:  max(length, 0),
	}, format, codec.codec(), nil
}

// oggStream turns decoded Ogg packets into beep frames.
type oggStream struct {
	packets *oggPackets
	codec   oggCodec
	closer  io.Closer
	pcm     []float32
	pos     int
	skip    int
	length  int
	err     error
}

func (s *oggStream) Stream(samples [][2]float64) (n int, ok bool) {
	if s.err != nil {
		return 0, false
	}
	ch := s.codec.channels()

	for n < len(samples) {
		if s.pos < len(s.pcm) {
			for n < len(samples) && s.pos+ch <= len(s.pcm) {
				left := float64(s.pcm[s.pos])
				right := left
				if ch > 1 {
					right = float64(s.pcm[s.pos+1])
				}
				samples[n] = [2]float64{left, right}
				s.pos += ch
				n++
			}
			continue
		}

		packet, err := s.packets.next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
			}
			return n, n > 0
		}
		pcm, err := s.codec.decode(packet)
		if err != nil {
			// Corrupt packets are skipped, as players usually do.
			continue
		}
		s.pcm = pcm
		s.pos = 0
		if s.skip > 0 {
			drop := min(s.skip, len(pcm)/max(ch, 1))
			s.pos = drop * ch
			s.skip -= drop
		}
	}
	return n, true
}

func (s *oggStream) Err() error   { return s.err }
func (s *oggStream) Len() int     { return s.length }
func (s *oggStream) Close() error { return s.closer.Close() }
