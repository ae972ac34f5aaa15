// Package convert scales decoded frames to the destination geometry and
// pixel format with swscale.
package convert

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/asticode/go-astiav"

	"github.com/smazurov/deskcap/internal/capture"
	"github.com/smazurov/deskcap/internal/libav"
)

// Converter is a capture.Converter. It owns one scale context, one
// destination frame and one packed buffer, all sized at construction.
type Converter struct {
	logger *slog.Logger

	srcWidth  int
	srcHeight int
	dst       capture.Geometry
	format    capture.PixelFormat

	ssc   *astiav.SoftwareScaleContext
	frame *astiav.Frame
	buf   []byte
	out   capture.ConvertedFrame
}

// New builds a bicubic converter from the source stream to dst in format.
// 4:2:0 destinations must have even dimensions so the chroma planes pack
// without padding.
func New(src capture.StreamInfo, dst capture.Geometry, format capture.PixelFormat, logger *slog.Logger) (*Converter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if format.Is420Planar() {
		strides, _ := capture.Packed420Layout(dst.Width, dst.Height)
		if err := capture.CheckPacking(dst.Width, dst.Height, strides); err != nil {
			return nil, err
		}
	}

	srcFormat, err := libav.PixelFormat(capture.PixelFormat(src.PixelFormat))
	if err != nil {
		return nil, capture.NewError(capture.CodeConverterInitFailed, "resolve source format", err)
	}
	dstFormat, err := libav.PixelFormat(format)
	if err != nil {
		return nil, capture.NewError(capture.CodeConverterInitFailed, "resolve destination format", err)
	}

	c := &Converter{
		logger:    logger,
		srcWidth:  src.Width,
		srcHeight: src.Height,
		dst:       dst,
		format:    format,
	}

	flags := astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBicubic)
	c.ssc, err = astiav.CreateSoftwareScaleContext(src.Width, src.Height, srcFormat, dst.Width, dst.Height, dstFormat, flags)
	if err != nil {
		return nil, capture.NewError(capture.CodeConverterInitFailed, "create scale context", err)
	}

	c.frame = astiav.AllocFrame()
	c.frame.SetWidth(dst.Width)
	c.frame.SetHeight(dst.Height)
	c.frame.SetPixelFormat(dstFormat)
	if err := c.frame.AllocBuffer(1); err != nil {
		c.Close()
		return nil, capture.NewError(capture.CodeConverterInitFailed, "allocate destination frame", err)
	}

	size, err := c.frame.ImageBufferSize(1)
	if err != nil {
		c.Close()
		return nil, capture.NewError(capture.CodeConverterInitFailed, "size destination buffer", err)
	}
	c.buf = make([]byte, size)

	if err := c.layout(); err != nil {
		c.Close()
		return nil, err
	}

	logger.Debug("Converter ready",
		"src_width", src.Width,
		"src_height", src.Height,
		"src_format", src.PixelFormat,
		"dst_width", dst.Width,
		"dst_height", dst.Height,
		"dst_format", format,
		"buffer_bytes", size)
	return c, nil
}

// layout checks that the packed buffer holds exactly the three 4:2:0 planes
// and records their strides.
func (c *Converter) layout() error {
	c.out = capture.ConvertedFrame{
		Width:  c.dst.Width,
		Height: c.dst.Height,
		Format: c.format,
		Data:   c.buf,
	}
	if !c.format.Is420Planar() {
		return nil
	}

	strides, sizes := capture.Packed420Layout(c.dst.Width, c.dst.Height)
	if total := sizes[0] + sizes[1] + sizes[2]; total != len(c.buf) {
		return capture.NewError(capture.CodeFrameLayoutInvalid, "layout destination buffer",
			fmt.Errorf("buffer is %d bytes, packed 4:2:0 needs %d", len(c.buf), total))
	}
	c.out.Strides = strides
	return nil
}

// Convert scales frame into the shared buffer. The result is overwritten by
// the next call.
func (c *Converter) Convert(frame capture.Frame) (*capture.ConvertedFrame, error) {
	src, ok := frame.(*astiav.Frame)
	if !ok {
		return nil, fmt.Errorf("unexpected frame type %T", frame)
	}
	if c.ssc == nil {
		return nil, errors.New("converter is closed")
	}
	if src.Width() != c.srcWidth || src.Height() != c.srcHeight {
		return nil, fmt.Errorf("source size changed from %dx%d to %dx%d", c.srcWidth, c.srcHeight, src.Width(), src.Height())
	}

	if err := c.ssc.ScaleFrame(src, c.frame); err != nil {
		return nil, fmt.Errorf("scale frame: %w", err)
	}
	if _, err := c.frame.ImageCopyToBuffer(c.buf, 1); err != nil {
		return nil, fmt.Errorf("copy frame to buffer: %w", err)
	}

	c.out.PTS = src.Pts()
	return &c.out, nil
}

// Close frees the scale context and destination frame.
func (c *Converter) Close() error {
	if c.frame != nil {
		c.frame.Free()
		c.frame = nil
	}
	if c.ssc != nil {
		c.ssc.Free()
		c.ssc = nil
	}
	return nil
}
