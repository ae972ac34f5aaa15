package capture

import "fmt"

// StreamInfo describes the selected video stream once its decoder is open.
type StreamInfo struct {
	Index       int         `json:"index"`
	CodecName   string      `json:"codec"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	PixelFormat PixelFormat `json:"pixel_format"`
}

// Packet is one demuxed, still compressed unit. Sources reuse a single
// packet, so it is only valid until the next ReadPacket call.
type Packet interface {
	StreamIndex() int
	Size() int
}

// Frame is a decoded picture owned by the source. It is only valid until the
// next PollFrame call.
type Frame interface {
	Width() int
	Height() int
}

// Source demuxes the capture input and decodes its video stream.
type Source interface {
	// Open looks up the input device and opens url with the requested rate.
	Open(format, url string, frameRate int) error
	// ProbeStreams reads stream info and selects the video and audio streams.
	ProbeStreams() error
	// OpenDecoder finds, configures and opens the video decoder.
	OpenDecoder() error
	// VideoStream reports the selected stream. Valid after OpenDecoder.
	VideoStream() StreamInfo
	// ReadPacket blocks for the next packet. It returns io.EOF at the end
	// of input.
	ReadPacket() (Packet, error)
	// Submit feeds a packet to the decoder.
	Submit(pkt Packet) error
	// PollFrame returns the next decoded frame, ErrNotReady when more
	// packets are needed, or io.EOF once the decoder is drained.
	PollFrame() (Frame, error)
	// Close releases everything acquired so far. Safe after partial setup
	// and safe to call twice.
	Close() error
}

// ConvertedFrame is a tightly packed destination image. For 4:2:0 the Y, U
// and V planes follow each other in Data as laid out by Packed420Layout. The
// converter reuses Data for every frame.
type ConvertedFrame struct {
	Width   int
	Height  int
	Format  PixelFormat
	Data    []byte
	Strides [3]int
	PTS     int64
}

// Packed420Layout returns the strides and plane sizes of a 4:2:0 image with
// no row padding.
func Packed420Layout(width, height int) (strides, sizes [3]int) {
	cw, ch := width/2, (height+1)/2
	strides = [3]int{width, cw, cw}
	sizes = [3]int{width * height, cw * ch, cw * ch}
	return strides, sizes
}

// CheckPacking verifies the invariant the encoder depends on: luma stride
// equals the width and both chroma strides equal half of it.
func CheckPacking(width, height int, strides [3]int) error {
	if width <= 0 || height <= 0 {
		return NewError(CodeFrameLayoutInvalid, "check packing", fmt.Errorf("empty frame %dx%d", width, height))
	}
	if width%2 != 0 || height%2 != 0 {
		return NewError(CodeFrameLayoutInvalid, "check packing", fmt.Errorf("odd size %dx%d cannot be packed as 4:2:0", width, height))
	}
	want, _ := Packed420Layout(width, height)
	if strides != want {
		return NewError(CodeFrameLayoutInvalid, "check packing", fmt.Errorf("strides %v, want %v", strides, want))
	}
	return nil
}

// Converter scales and converts decoded frames into one reusable buffer.
type Converter interface {
	Convert(frame Frame) (*ConvertedFrame, error)
	Close() error
}

// EncodedUnit is one compressed output unit. It is handed to the unit sink
// and not retained afterwards.
type EncodedUnit struct {
	Data     []byte
	PTS      int64
	Keyframe bool
	NALTypes []uint8
}

// Encoder turns converted frames into compressed units.
type Encoder interface {
	// Setup configures the encoder for a fixed size and rate.
	Setup(width, height, frameRate int) error
	// Encode submits one frame and returns the units that became ready,
	// which may belong to earlier frames.
	Encode(frame *ConvertedFrame) ([]EncodedUnit, error)
	// Flush performs one no-input encode call. done is true once the
	// encoder has nothing left to emit.
	Flush() (units []EncodedUnit, done bool, err error)
	Close() error
}

// Backend constructs the native components of a pipeline.
type Backend interface {
	NewSource() (Source, error)
	NewConverter(src StreamInfo, dst Geometry, format PixelFormat) (Converter, error)
	NewEncoder(kind EncoderKind) (Encoder, error)
}
