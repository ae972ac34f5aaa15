// Package backend implements capture.Backend on top of libav.
package backend

import (
	"github.com/smazurov/deskcap/internal/capture"
	"github.com/smazurov/deskcap/internal/convert"
	"github.com/smazurov/deskcap/internal/encoder"
	"github.com/smazurov/deskcap/internal/libav"
	"github.com/smazurov/deskcap/internal/logging"
	"github.com/smazurov/deskcap/internal/source"
)

// Libav builds sources, converters and encoders backed by go-astiav. Each
// component logs to its own module.
type Libav struct{}

// New initializes libav once and returns the backend.
func New() *Libav {
	libav.Init()
	return &Libav{}
}

// NewSource implements capture.Backend.
func (*Libav) NewSource() (capture.Source, error) {
	return source.New(logging.GetLogger("source")), nil
}

// NewConverter implements capture.Backend.
func (*Libav) NewConverter(src capture.StreamInfo, dst capture.Geometry, format capture.PixelFormat) (capture.Converter, error) {
	c, err := convert.New(src, dst, format, logging.GetLogger("convert"))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewEncoder implements capture.Backend.
func (*Libav) NewEncoder(kind capture.EncoderKind) (capture.Encoder, error) {
	return encoder.New(kind, logging.GetLogger("encoder"))
}

var _ capture.Backend = (*Libav)(nil)
