package capture

// Geometry is a frame size in pixels.
type Geometry struct {
	Width  int
	Height int
}

// ComputeDestinationGeometry bounds the configured size by the source size.
// Each axis is handled on its own: an unset (0) target, or one at least as
// large as the source, keeps the source dimension. Frames are never upscaled.
func ComputeDestinationGeometry(cfg Config, srcWidth, srcHeight int) Geometry {
	return Geometry{
		Width:  clampAxis(cfg.Width, srcWidth),
		Height: clampAxis(cfg.Height, srcHeight),
	}
}

func clampAxis(target, source int) int {
	if target <= 0 || target >= source {
		return source
	}
	return target
}

// ResolveDestinationFormat returns the configured pixel format, or planar
// 4:2:0 when none is set.
func ResolveDestinationFormat(cfg Config) PixelFormat {
	if cfg.PixelFormat == "" {
		return PixelFormatYUV420P
	}
	return cfg.PixelFormat
}
