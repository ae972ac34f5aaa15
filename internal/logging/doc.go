// Package logging provides structured logging with per-module log levels.
//
// Records go to stdout when something is attached to it and to the systemd
// journal when journald is running, or to both through a [MultiHandler].
//
// Initialize once at startup, then ask for a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"capture": "debug",
//			"libav":   "warn",
//		},
//	})
//
//	logger := logging.GetLogger("capture")
//	logger.Info("Starting capture", "input", url)
//
// Loggers obtained before Initialize are cached and follow later level
// changes, so package level loggers are safe.
//
// Module names used by deskcap: capture, source, convert, encoder, libav,
// api, metrics, events, systemd, config.
//
// Journal entries carry SYSLOG_IDENTIFIER=deskcap and one upper-case field
// per attribute:
//
//	journalctl -t deskcap MODULE=encoder
//	journalctl -t deskcap SESSION_ID=<uuid> -p err
//
// TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	libav = "error"
package logging
