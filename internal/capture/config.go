package capture

import (
	"fmt"
	"os"
	"runtime"
)

// EncoderKind selects the encoder variant. It is fixed for the lifetime of a
// pipeline.
type EncoderKind string

// Encoder variants.
const (
	EncoderX265 EncoderKind = "x265"
	EncoderX264 EncoderKind = "x264" // selectable, produces no output
)

// PixelFormat is a libav pixel format name such as "yuv420p".
type PixelFormat string

// PixelFormatYUV420P is the default destination format.
const PixelFormatYUV420P PixelFormat = "yuv420p"

// DefaultFrameRate is the capture rate requested from the input device.
const DefaultFrameRate = 25

// Is420Planar reports whether p stores full resolution luma followed by two
// quarter resolution chroma planes.
func (p PixelFormat) Is420Planar() bool {
	switch p {
	case "yuv420p", "yuvj420p":
		return true
	}
	return false
}

// Config holds the tunables of a capture session. It is copied when the
// pipeline is created; later changes by the caller have no effect.
type Config struct {
	// InputFormat is the libav input device, e.g. gdigrab, x11grab, avfoundation.
	InputFormat string
	// InputURL is the logical input name passed to the device, e.g. "desktop".
	InputURL string

	Width       int // 0 keeps the source width
	Height      int // 0 keeps the source height
	PixelFormat PixelFormat
	FrameRate   int
	Encoder     EncoderKind
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	format, url := DefaultInput()
	return Config{
		InputFormat: format,
		InputURL:    url,
		PixelFormat: PixelFormatYUV420P,
		FrameRate:   DefaultFrameRate,
		Encoder:     EncoderX265,
	}
}

// DefaultInput returns the screen grabbing device for the current platform.
func DefaultInput() (format, url string) {
	switch runtime.GOOS {
	case "windows":
		return "gdigrab", "desktop"
	case "darwin":
		return "avfoundation", "Capture screen 0:none"
	default:
		display := os.Getenv("DISPLAY")
		if display == "" {
			display = ":0.0"
		}
		return "x11grab", display
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InputFormat == "" {
		c.InputFormat = def.InputFormat
	}
	if c.InputURL == "" {
		c.InputURL = def.InputURL
	}
	if c.PixelFormat == "" {
		c.PixelFormat = def.PixelFormat
	}
	if c.FrameRate == 0 {
		c.FrameRate = def.FrameRate
	}
	if c.Encoder == "" {
		c.Encoder = def.Encoder
	}
	return c
}

// Validate checks the configuration for values no session could run with.
func (c Config) Validate() error {
	switch {
	case c.Width < 0 || c.Height < 0:
		return NewError(CodeInvalidConfig, "validate", fmt.Errorf("negative destination size %dx%d", c.Width, c.Height))
	case c.FrameRate <= 0:
		return NewError(CodeInvalidConfig, "validate", fmt.Errorf("frame rate must be positive, got %d", c.FrameRate))
	case c.InputFormat == "":
		return NewError(CodeInvalidConfig, "validate", fmt.Errorf("input format is required"))
	}

	switch c.Encoder {
	case EncoderX265, EncoderX264:
	default:
		return NewError(CodeInvalidConfig, "validate", fmt.Errorf("unknown encoder %q", c.Encoder))
	}
	return nil
}
