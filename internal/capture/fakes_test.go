package capture

import (
	"errors"
	"io"
	"log/slog"
	"sync"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackend simulates a source of decodable frames, a converter and an
// encoder with a fixed reorder lag. It tracks live allocations so tests can
// assert that every exit path releases what it acquired.
type fakeBackend struct {
	mu sync.Mutex

	failAt ErrorCode
	frames int // decodable frames before EOF, -1 for endless
	lag    int // frames buffered by the encoder before it emits
	srcW   int
	srcH   int

	// audioEvery interleaves a non-video packet after every n video packets.
	audioEvery int
	// neverDrained makes Flush report pending output forever.
	neverDrained bool

	allocs      int
	sources     int
	reads       int
	submits     int
	converts    int
	encodes     int
	flushes     int
	releases    []string
	lastConvDst Geometry
	onRead      func(n int)
}

func newFakeBackend(frames int) *fakeBackend {
	return &fakeBackend{frames: frames, srcW: 1920, srcH: 1080}
}

func (b *fakeBackend) alloc(n int) {
	b.mu.Lock()
	b.allocs += n
	b.mu.Unlock()
}

func (b *fakeBackend) released(name string) {
	b.mu.Lock()
	b.releases = append(b.releases, name)
	b.mu.Unlock()
}

func (b *fakeBackend) NewSource() (Source, error) {
	b.sources++
	return &fakeSource{b: b}, nil
}

func (b *fakeBackend) NewConverter(_ StreamInfo, dst Geometry, format PixelFormat) (Converter, error) {
	if b.failAt == CodeConverterInitFailed {
		return nil, errors.New("scale context unavailable")
	}
	b.lastConvDst = dst
	b.alloc(1)
	return &fakeConverter{b: b, dst: dst, format: format}, nil
}

func (b *fakeBackend) NewEncoder(_ EncoderKind) (Encoder, error) {
	b.alloc(1)
	return &fakeEncoder{b: b}, nil
}

type fakePacket struct{ index int }

func (p fakePacket) StreamIndex() int { return p.index }
func (p fakePacket) Size() int        { return 128 }

type fakeFrame struct{ w, h int }

func (f fakeFrame) Width() int  { return f.w }
func (f fakeFrame) Height() int { return f.h }

type fakeSource struct {
	b        *fakeBackend
	input    bool
	decoder  bool
	pending  int
	produced int
	sinceAux int
	closed   bool
}

func (s *fakeSource) Open(_, _ string, _ int) error {
	switch s.b.failAt {
	case CodeInputFormatNotFound:
		return NewError(CodeInputFormatNotFound, "find input format", nil)
	case CodeOpenInputFailed:
		return NewError(CodeOpenInputFailed, "open input", errors.New("device busy"))
	}
	s.input = true
	s.b.alloc(1)
	return nil
}

func (s *fakeSource) ProbeStreams() error {
	switch s.b.failAt {
	case CodeStreamInfoUnavailable:
		return NewError(CodeStreamInfoUnavailable, "find stream info", errors.New("probe timeout"))
	case CodeNoMediaStreamFound:
		return NewError(CodeNoMediaStreamFound, "select streams", nil)
	}
	return nil
}

func (s *fakeSource) OpenDecoder() error {
	if s.b.failAt == CodeDecoderNotFound {
		return NewError(CodeDecoderNotFound, "find decoder", nil)
	}
	s.decoder = true
	s.b.alloc(1)
	switch s.b.failAt {
	case CodeDecoderParameterCopyFailed:
		return NewError(CodeDecoderParameterCopyFailed, "copy parameters", errors.New("invalid argument"))
	case CodeDecoderOpenFailed:
		return NewError(CodeDecoderOpenFailed, "open decoder", errors.New("invalid argument"))
	}
	return nil
}

func (s *fakeSource) VideoStream() StreamInfo {
	return StreamInfo{Index: 0, CodecName: "bmp", Width: s.b.srcW, Height: s.b.srcH, PixelFormat: "bgra"}
}

func (s *fakeSource) ReadPacket() (Packet, error) {
	s.b.reads++
	if s.b.onRead != nil {
		s.b.onRead(s.b.reads)
	}
	if s.b.failAt == CodePacketReadFailed && s.b.reads > 1 {
		return nil, errors.New("i/o error")
	}
	if s.b.audioEvery > 0 && s.sinceAux == s.b.audioEvery {
		s.sinceAux = 0
		return fakePacket{index: 1}, nil
	}
	if s.b.frames >= 0 && s.produced >= s.b.frames {
		return nil, io.EOF
	}
	s.sinceAux++
	s.produced++
	return fakePacket{index: 0}, nil
}

func (s *fakeSource) Submit(pkt Packet) error {
	if pkt.StreamIndex() != 0 {
		return errors.New("submitted a non-video packet")
	}
	s.b.submits++
	s.pending++
	return nil
}

func (s *fakeSource) PollFrame() (Frame, error) {
	if s.b.failAt == CodeDecodeFailed {
		return nil, errors.New("corrupt packet")
	}
	if s.pending == 0 {
		return nil, ErrNotReady
	}
	s.pending--
	return fakeFrame{w: s.b.srcW, h: s.b.srcH}, nil
}

func (s *fakeSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.decoder {
		s.b.alloc(-1)
	}
	if s.input {
		s.b.alloc(-1)
	}
	s.b.released("source")
	return nil
}

type fakeConverter struct {
	b      *fakeBackend
	dst    Geometry
	format PixelFormat
}

func (c *fakeConverter) Convert(_ Frame) (*ConvertedFrame, error) {
	c.b.converts++
	strides, _ := Packed420Layout(c.dst.Width, c.dst.Height)
	return &ConvertedFrame{
		Width:   c.dst.Width,
		Height:  c.dst.Height,
		Format:  c.format,
		Strides: strides,
	}, nil
}

func (c *fakeConverter) Close() error {
	c.b.alloc(-1)
	c.b.released("converter")
	return nil
}

type fakeEncoder struct {
	b      *fakeBackend
	queued int
	seq    int64
}

func (e *fakeEncoder) Setup(_, _, _ int) error {
	if e.b.failAt == CodeEncoderInitFailed {
		return errors.New("encoder rejected parameters")
	}
	return nil
}

func (e *fakeEncoder) Encode(f *ConvertedFrame) ([]EncodedUnit, error) {
	if e.b.failAt == CodeUnsupportedColorSubsampling {
		return nil, NewError(CodeUnsupportedColorSubsampling, "encode", nil)
	}
	if err := CheckPacking(f.Width, f.Height, f.Strides); err != nil {
		return nil, err
	}
	e.b.encodes++
	e.queued++
	if e.queued <= e.b.lag {
		return nil, nil
	}
	e.queued--
	return []EncodedUnit{e.unit()}, nil
}

func (e *fakeEncoder) Flush() ([]EncodedUnit, bool, error) {
	e.b.flushes++
	if e.b.neverDrained {
		return nil, false, nil
	}
	if e.queued == 0 {
		return nil, true, nil
	}
	e.queued--
	return []EncodedUnit{e.unit()}, false, nil
}

func (e *fakeEncoder) unit() EncodedUnit {
	u := EncodedUnit{Data: make([]byte, 10), PTS: e.seq, Keyframe: e.seq == 0}
	e.seq++
	return u
}

func (e *fakeEncoder) Close() error {
	e.b.alloc(-1)
	e.b.released("encoder")
	return nil
}
