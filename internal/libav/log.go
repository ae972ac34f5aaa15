package libav

import (
	"context"
	"log/slog"
	"strings"

	"github.com/asticode/go-astiav"
)

func installLogBridge(logger *slog.Logger) {
	astiav.SetLogLevel(thresholdFor(logger))
	astiav.SetLogCallback(func(c astiav.Classer, l astiav.LogLevel, _, msg string) {
		msg = strings.TrimRight(msg, "\r\n")
		if msg == "" {
			return
		}
		level := slogLevel(l)
		if !logger.Enabled(context.Background(), level) {
			return
		}
		if component := className(c); component != "" {
			logger.Log(context.Background(), level, msg, "component", component)
			return
		}
		logger.Log(context.Background(), level, msg)
	})
}

func className(c astiav.Classer) string {
	if c == nil {
		return ""
	}
	if cl := c.Class(); cl != nil {
		return cl.Name()
	}
	return ""
}

// slogLevel maps libav log levels onto slog. Verbose and below are debug.
func slogLevel(l astiav.LogLevel) slog.Level {
	switch {
	case l <= astiav.LogLevelError:
		return slog.LevelError
	case l <= astiav.LogLevelWarning:
		return slog.LevelWarn
	case l <= astiav.LogLevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// thresholdFor picks the most verbose libav level the logger would accept,
// so libav does not format messages that are dropped anyway.
func thresholdFor(logger *slog.Logger) astiav.LogLevel {
	ctx := context.Background()
	switch {
	case logger.Enabled(ctx, slog.LevelDebug):
		return astiav.LogLevelVerbose
	case logger.Enabled(ctx, slog.LevelInfo):
		return astiav.LogLevelInfo
	case logger.Enabled(ctx, slog.LevelWarn):
		return astiav.LogLevelWarning
	default:
		return astiav.LogLevelError
	}
}
