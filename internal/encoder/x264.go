package encoder

import (
	"log/slog"

	"github.com/smazurov/deskcap/internal/capture"
)

// X264 is selectable but not implemented. It validates frames like the real
// encoder and produces no output.
type X264 struct {
	logger *slog.Logger
	width  int
	height int
}

// NewX264 creates the placeholder encoder.
func NewX264(logger *slog.Logger) *X264 {
	return &X264{logger: logger}
}

// Setup records the geometry and warns that no output will be produced.
func (e *X264) Setup(width, height, _ int) error {
	e.width, e.height = width, height
	e.logger.Warn("x264 encoding is not implemented, frames will be discarded")
	return nil
}

// Encode checks the frame and drops it.
func (e *X264) Encode(f *capture.ConvertedFrame) ([]capture.EncodedUnit, error) {
	if err := checkFrame(f, e.width, e.height); err != nil {
		return nil, err
	}
	return nil, nil
}

// Flush has nothing buffered.
func (e *X264) Flush() ([]capture.EncodedUnit, bool, error) {
	return nil, true, nil
}

// Close is a no-op.
func (e *X264) Close() error {
	return nil
}
