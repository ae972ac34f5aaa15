// Package libav holds the process wide libav setup shared by the source,
// converter and encoder: device registration, the log bridge and a few
// lookups.
package libav

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/asticode/go-astiav"

	"github.com/smazurov/deskcap/internal/capture"
	"github.com/smazurov/deskcap/internal/logging"
)

var initOnce sync.Once

// Init registers the input devices (gdigrab, x11grab, avfoundation, ...) and
// routes libav's log output to the "libav" module logger. Only the first call
// has an effect.
func Init() {
	initOnce.Do(func() {
		logger := logging.GetLogger("libav")
		astiav.RegisterAllDevices()
		installLogBridge(logger)
		logger.Info("libav initialized", "version", Version())
	})
}

// Version returns the version string of the linked FFmpeg libraries, e.g.
// "n7.1".
func Version() string {
	return astiav.FfmpegVersion()
}

// PixelFormat resolves a pixel format name.
func PixelFormat(name capture.PixelFormat) (astiav.PixelFormat, error) {
	pf := astiav.FindPixelFormatByName(string(name))
	if pf == astiav.PixelFormatNone {
		return pf, fmt.Errorf("unknown pixel format %q", name)
	}
	return pf, nil
}

// IsAgain reports whether err means the codec wants more input or has no
// output yet.
func IsAgain(err error) bool {
	return errors.Is(err, astiav.ErrEagain)
}

// IsEOF reports whether err is libav's end of stream marker.
func IsEOF(err error) bool {
	return errors.Is(err, astiav.ErrEof)
}

// Dictionary builds an option dictionary from key/value pairs. The caller
// frees it.
func Dictionary(logger *slog.Logger, opts map[string]string) *astiav.Dictionary {
	d := astiav.NewDictionary()
	for k, v := range opts {
		if err := d.Set(k, v, 0); err != nil {
			logger.Warn("Failed to set libav option", "key", k, "value", v, "error", err)
		}
	}
	return d
}
