package encoder

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/asticode/go-astiav"

	"github.com/smazurov/deskcap/internal/capture"
	"github.com/smazurov/deskcap/internal/libav"
)

// X265Params are passed to libx265. Headers are repeated on every keyframe
// so a consumer can join mid-stream, and x265 runs single threaded.
const X265Params = "repeat-headers=1:log-level=none:frame-threads=1:pools=1"

// X265 encodes planar 4:2:0 frames to HEVC through libavcodec's libx265
// wrapper. Frames are numbered in submission order starting at 0.
type X265 struct {
	logger *slog.Logger

	ctx     *astiav.CodecContext
	picture *astiav.Frame
	packet  *astiav.Packet

	width    int
	height   int
	pts      int64
	flushing bool
	done     bool
}

// NewX265 creates an encoder. Setup must be called before Encode.
func NewX265(logger *slog.Logger) *X265 {
	return &X265{logger: logger}
}

// Setup opens the codec for width x height at fps and allocates the reusable
// picture.
func (e *X265) Setup(width, height, fps int) error {
	if e.ctx != nil {
		return capture.NewError(capture.CodeEncoderInitFailed, "setup encoder", errors.New("already set up"))
	}
	if fps <= 0 {
		return capture.NewError(capture.CodeEncoderInitFailed, "setup encoder", fmt.Errorf("invalid frame rate %d", fps))
	}

	codec := astiav.FindEncoderByName("libx265")
	if codec == nil {
		return capture.NewError(capture.CodeEncoderInitFailed, "find encoder", errors.New("libx265 is not available in this libavcodec build"))
	}

	e.ctx = astiav.AllocCodecContext(codec)
	if e.ctx == nil {
		return capture.NewError(capture.CodeEncoderInitFailed, "allocate encoder", errors.New("allocation failed"))
	}
	e.ctx.SetWidth(width)
	e.ctx.SetHeight(height)
	e.ctx.SetPixelFormat(astiav.PixelFormatYuv420P)
	e.ctx.SetTimeBase(astiav.NewRational(1, fps))
	e.ctx.SetFramerate(astiav.NewRational(fps, 1))
	e.ctx.SetThreadCount(1)

	opts := libav.Dictionary(e.logger, map[string]string{"x265-params": X265Params})
	defer opts.Free()
	if err := e.ctx.Open(codec, opts); err != nil {
		return capture.NewError(capture.CodeEncoderInitFailed, "open libx265", err)
	}

	e.picture = astiav.AllocFrame()
	e.picture.SetWidth(width)
	e.picture.SetHeight(height)
	e.picture.SetPixelFormat(astiav.PixelFormatYuv420P)
	if err := e.picture.AllocBuffer(0); err != nil {
		return capture.NewError(capture.CodeEncoderInitFailed, "allocate picture", err)
	}
	e.packet = astiav.AllocPacket()

	e.width, e.height = width, height
	e.logger.Debug("Encoder ready", "width", width, "height", height, "fps", fps, "params", X265Params)
	return nil
}

// Encode submits one frame and returns whatever packets the encoder has
// ready, possibly none while its lookahead fills.
func (e *X265) Encode(f *capture.ConvertedFrame) ([]capture.EncodedUnit, error) {
	if e.ctx == nil {
		return nil, errors.New("encoder not set up")
	}
	if err := checkFrame(f, e.width, e.height); err != nil {
		return nil, err
	}
	if e.flushing {
		return nil, errors.New("encoder is flushing")
	}

	if err := e.picture.MakeWritable(); err != nil {
		return nil, fmt.Errorf("make picture writable: %w", err)
	}
	if err := e.picture.Data().SetBytes(f.Data, 1); err != nil {
		return nil, fmt.Errorf("fill picture: %w", err)
	}
	e.picture.SetPts(e.pts)
	e.pts++

	if err := e.ctx.SendFrame(e.picture); err != nil {
		return nil, fmt.Errorf("send frame: %w", err)
	}
	return e.receive(-1)
}

// Flush drains one packet per call after signalling end of stream on the
// first call. done is true once nothing is left.
func (e *X265) Flush() ([]capture.EncodedUnit, bool, error) {
	if e.ctx == nil || e.done {
		return nil, true, nil
	}
	if !e.flushing {
		e.flushing = true
		if err := e.ctx.SendFrame(nil); err != nil && !libav.IsEOF(err) {
			return nil, false, fmt.Errorf("signal end of stream: %w", err)
		}
	}

	units, err := e.receive(1)
	if err != nil {
		return nil, false, err
	}
	return units, e.done, nil
}

// receive collects up to limit packets, or all ready ones when limit < 0.
func (e *X265) receive(limit int) ([]capture.EncodedUnit, error) {
	var units []capture.EncodedUnit
	for limit < 0 || len(units) < limit {
		err := e.ctx.ReceivePacket(e.packet)
		switch {
		case libav.IsAgain(err):
			return units, nil
		case libav.IsEOF(err):
			e.done = true
			return units, nil
		case err != nil:
			return units, fmt.Errorf("receive packet: %w", err)
		}
		units = append(units, e.unit())
		e.packet.Unref()
	}
	return units, nil
}

func (e *X265) unit() capture.EncodedUnit {
	data := slices.Clone(e.packet.Data())
	types := NALTypes(data)
	return capture.EncodedUnit{
		Data:     data,
		PTS:      e.packet.Pts(),
		Keyframe: e.packet.Flags().Has(astiav.PacketFlagKey) || slices.ContainsFunc(types, IsIRAP),
		NALTypes: types,
	}
}

// Close frees the picture, packet and codec context.
func (e *X265) Close() error {
	if e.picture != nil {
		e.picture.Free()
		e.picture = nil
	}
	if e.packet != nil {
		e.packet.Free()
		e.packet = nil
	}
	if e.ctx != nil {
		e.ctx.Free()
		e.ctx = nil
	}
	return nil
}
