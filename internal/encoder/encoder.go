// Package encoder provides the capture.Encoder variants: HEVC through
// libx265, and an x264 placeholder that accepts frames and emits nothing.
package encoder

import (
	"fmt"
	"log/slog"

	"github.com/smazurov/deskcap/internal/capture"
)

// New returns the encoder for kind. The variant cannot change afterwards.
func New(kind capture.EncoderKind, logger *slog.Logger) (capture.Encoder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("encoder", string(kind))

	switch kind {
	case capture.EncoderX265:
		return NewX265(logger), nil
	case capture.EncoderX264:
		return NewX264(logger), nil
	default:
		return nil, capture.NewError(capture.CodeEncoderInitFailed, "select encoder", fmt.Errorf("unknown encoder %q", kind))
	}
}

// checkFrame enforces what every encoder expects from the converter:
// planar 4:2:0 of the configured size with no row padding.
func checkFrame(f *capture.ConvertedFrame, width, height int) error {
	if !f.Format.Is420Planar() {
		return capture.NewError(capture.CodeUnsupportedColorSubsampling, "check frame", fmt.Errorf("pixel format %s is not planar 4:2:0", f.Format))
	}
	if f.Width != width || f.Height != height {
		return capture.NewError(capture.CodeFrameLayoutInvalid, "check frame", fmt.Errorf("frame is %dx%d, encoder expects %dx%d", f.Width, f.Height, width, height))
	}
	return capture.CheckPacking(f.Width, f.Height, f.Strides)
}
