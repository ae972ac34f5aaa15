// Package source opens a libav input device and decodes its video stream.
package source

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/asticode/go-astiav"

	"github.com/smazurov/deskcap/internal/capture"
	"github.com/smazurov/deskcap/internal/libav"
)

// Source is a capture.Source backed by an avformat input and an avcodec
// decoder. The packet and frame it returns are reused by the next call.
type Source struct {
	logger *slog.Logger

	input  *astiav.FormatContext
	opened bool

	video      *astiav.Stream
	audioIndex int

	decoder *astiav.CodecContext
	packet  *astiav.Packet
	frame   *astiav.Frame
	info    capture.StreamInfo
}

// New creates an unopened source.
func New(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{logger: logger, audioIndex: -1}
}

// Open looks up the input device and opens url on it at frameRate.
func (s *Source) Open(format, url string, frameRate int) error {
	inputFormat := astiav.FindInputFormat(format)
	if inputFormat == nil {
		return capture.NewError(capture.CodeInputFormatNotFound, "find input format", fmt.Errorf("no input device named %q", format))
	}

	s.input = astiav.AllocFormatContext()
	if s.input == nil {
		return capture.NewError(capture.CodeOpenInputFailed, "allocate format context", errors.New("allocation failed"))
	}

	opts := libav.Dictionary(s.logger, map[string]string{
		"framerate": strconv.Itoa(frameRate),
	})
	defer opts.Free()

	if err := s.input.OpenInput(url, inputFormat, opts); err != nil {
		return capture.NewError(capture.CodeOpenInputFailed, "open input "+url, err)
	}
	s.opened = true

	s.logger.Debug("Input opened", "format", format, "url", url, "frame_rate", frameRate)
	return nil
}

// ProbeStreams reads stream information and selects the video and audio
// streams. When several streams share a type the last one wins.
func (s *Source) ProbeStreams() error {
	if !s.opened {
		return capture.NewError(capture.CodeStreamInfoUnavailable, "find stream info", errors.New("input not open"))
	}
	if err := s.input.FindStreamInfo(nil); err != nil {
		return capture.NewError(capture.CodeStreamInfoUnavailable, "find stream info", err)
	}

	s.video = nil
	s.audioIndex = -1
	for _, st := range s.input.Streams() {
		switch st.CodecParameters().MediaType() {
		case astiav.MediaTypeVideo:
			s.video = st
		case astiav.MediaTypeAudio:
			s.audioIndex = st.Index()
		}
	}

	if s.video == nil && s.audioIndex < 0 {
		return capture.NewError(capture.CodeNoMediaStreamFound, "select streams", fmt.Errorf("%d streams, none audio or video", len(s.input.Streams())))
	}

	videoIndex := -1
	if s.video != nil {
		videoIndex = s.video.Index()
	}
	s.logger.Debug("Streams selected", "video", videoIndex, "audio", s.audioIndex)
	return nil
}

// OpenDecoder builds and opens a decoder for the selected video stream.
func (s *Source) OpenDecoder() error {
	if s.video == nil {
		return capture.NewError(capture.CodeDecoderNotFound, "find decoder", errors.New("input has no video stream"))
	}

	params := s.video.CodecParameters()
	codec := astiav.FindDecoder(params.CodecID())
	if codec == nil {
		return capture.NewError(capture.CodeDecoderNotFound, "find decoder", fmt.Errorf("no decoder for codec %s", params.CodecID()))
	}

	s.decoder = astiav.AllocCodecContext(codec)
	if s.decoder == nil {
		return capture.NewError(capture.CodeDecoderParameterCopyFailed, "allocate decoder", errors.New("allocation failed"))
	}
	if err := params.ToCodecContext(s.decoder); err != nil {
		return capture.NewError(capture.CodeDecoderParameterCopyFailed, "copy codec parameters", err)
	}
	if err := s.decoder.Open(codec, nil); err != nil {
		return capture.NewError(capture.CodeDecoderOpenFailed, "open decoder "+codec.Name(), err)
	}

	s.packet = astiav.AllocPacket()
	s.frame = astiav.AllocFrame()
	s.info = capture.StreamInfo{
		Index:       s.video.Index(),
		CodecName:   codec.Name(),
		Width:       s.decoder.Width(),
		Height:      s.decoder.Height(),
		PixelFormat: capture.PixelFormat(s.decoder.PixelFormat().String()),
	}

	s.logger.Debug("Decoder opened",
		"codec", s.info.CodecName,
		"width", s.info.Width,
		"height", s.info.Height,
		"pixel_format", s.info.PixelFormat)
	return nil
}

// VideoStream describes the decoded video stream. Zero before OpenDecoder.
func (s *Source) VideoStream() capture.StreamInfo {
	return s.info
}

// AudioIndex returns the selected audio stream index, or -1. Audio is
// recorded but never decoded.
func (s *Source) AudioIndex() int {
	return s.audioIndex
}

// ReadPacket reads the next packet of any stream. It returns io.EOF at the
// end of input.
func (s *Source) ReadPacket() (capture.Packet, error) {
	s.packet.Unref()
	if err := s.input.ReadFrame(s.packet); err != nil {
		if libav.IsEOF(err) {
			return nil, io.EOF
		}
		return nil, err
	}
	return s.packet, nil
}

// Submit sends a packet returned by ReadPacket to the decoder.
func (s *Source) Submit(pkt capture.Packet) error {
	p, ok := pkt.(*astiav.Packet)
	if !ok {
		return fmt.Errorf("unexpected packet type %T", pkt)
	}
	if err := s.decoder.SendPacket(p); err != nil {
		if libav.IsEOF(err) {
			return io.EOF
		}
		return err
	}
	return nil
}

// PollFrame receives the next decoded frame.
func (s *Source) PollFrame() (capture.Frame, error) {
	err := s.decoder.ReceiveFrame(s.frame)
	switch {
	case err == nil:
		return s.frame, nil
	case libav.IsAgain(err):
		return nil, capture.ErrNotReady
	case libav.IsEOF(err):
		return nil, io.EOF
	default:
		return nil, err
	}
}

// Close releases everything Open and OpenDecoder acquired. It is safe on a
// partially opened source and on repeated calls.
func (s *Source) Close() error {
	if s.frame != nil {
		s.frame.Free()
		s.frame = nil
	}
	if s.packet != nil {
		s.packet.Free()
		s.packet = nil
	}
	if s.decoder != nil {
		s.decoder.Free()
		s.decoder = nil
	}
	if s.input != nil {
		if s.opened {
			s.input.CloseInput()
			s.opened = false
		}
		s.input.Free()
		s.input = nil
	}
	s.video = nil
	return nil
}
