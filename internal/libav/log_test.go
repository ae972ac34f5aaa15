package libav

import (
	"io"
	"log/slog"
	"testing"

	"github.com/asticode/go-astiav"
)

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   astiav.LogLevel
		want slog.Level
	}{
		{astiav.LogLevelPanic, slog.LevelError},
		{astiav.LogLevelFatal, slog.LevelError},
		{astiav.LogLevelError, slog.LevelError},
		{astiav.LogLevelWarning, slog.LevelWarn},
		{astiav.LogLevelInfo, slog.LevelInfo},
		{astiav.LogLevelVerbose, slog.LevelDebug},
		{astiav.LogLevelDebug, slog.LevelDebug},
		{astiav.LogLevelTrace, slog.LevelDebug},
	}

	for _, tt := range tests {
		if got := slogLevel(tt.in); got != tt.want {
			t.Errorf("slogLevel(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestThresholdFor(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  astiav.LogLevel
	}{
		{slog.LevelDebug, astiav.LogLevelVerbose},
		{slog.LevelInfo, astiav.LogLevelInfo},
		{slog.LevelWarn, astiav.LogLevelWarning},
		{slog.LevelError, astiav.LogLevelError},
	}

	for _, tt := range tests {
		logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: tt.level}))
		if got := thresholdFor(logger); got != tt.want {
			t.Errorf("thresholdFor(%v) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestPixelFormat(t *testing.T) {
	pf, err := PixelFormat("yuv420p")
	if err != nil {
		t.Fatalf("PixelFormat(yuv420p) error = %v", err)
	}
	if pf != astiav.PixelFormatYuv420P {
		t.Errorf("PixelFormat(yuv420p) = %v", pf)
	}
	if _, err := PixelFormat("not-a-format"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
