package main

import (
	"context"
	"log/slog"
	"maps"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/google/uuid"

	"github.com/smazurov/deskcap/cmd"
	"github.com/smazurov/deskcap/internal/api"
	"github.com/smazurov/deskcap/internal/backend"
	"github.com/smazurov/deskcap/internal/capture"
	"github.com/smazurov/deskcap/internal/config"
	"github.com/smazurov/deskcap/internal/events"
	"github.com/smazurov/deskcap/internal/logging"
	"github.com/smazurov/deskcap/internal/metrics"
	"github.com/smazurov/deskcap/internal/systemd"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"deskcap.toml"`

	// Capture settings
	InputFormat string `help:"libav input device, empty picks the platform grabber" toml:"capture.input_format" env:"CAPTURE_INPUT_FORMAT"`
	InputURL    string `help:"Input name passed to the device, e.g. desktop or :0.0" toml:"capture.input_url" env:"CAPTURE_INPUT_URL"`
	Width       int    `help:"Maximum output width, 0 keeps the source width" default:"0" toml:"capture.width" env:"CAPTURE_WIDTH"`
	Height      int    `help:"Maximum output height, 0 keeps the source height" default:"0" toml:"capture.height" env:"CAPTURE_HEIGHT"`
	PixelFormat string `help:"Output pixel format" default:"yuv420p" toml:"capture.pixel_format" env:"CAPTURE_PIXEL_FORMAT"`
	FrameRate   int    `help:"Capture frame rate" default:"25" toml:"capture.frame_rate" env:"CAPTURE_FRAME_RATE"`
	Encoder     string `help:"Encoder (x265, x264)" default:"x265" toml:"capture.encoder" env:"CAPTURE_ENCODER"`

	// Server settings
	Port string `help:"Status API listen address, empty disables it" short:"p" default:":8091" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username, auth is off unless both are set" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (trace, debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCapture string `help:"Pipeline logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingLibav   string `help:"libav logging level" default:"warn" toml:"logging.libav" env:"LOGGING_LIBAV"`
	LoggingEncoder string `help:"Encoder logging level" default:"info" toml:"logging.encoder" env:"LOGGING_ENCODER"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func (o *Options) captureConfig() capture.Config {
	return capture.Config{
		InputFormat: o.InputFormat,
		InputURL:    o.InputURL,
		Width:       o.Width,
		Height:      o.Height,
		PixelFormat: capture.PixelFormat(o.PixelFormat),
		FrameRate:   o.FrameRate,
		Encoder:     capture.EncoderKind(o.Encoder),
	}
}

// loggingConfig starts from the [logging] table of the config file, so
// [logging.modules] can set any module, then applies the named flags.
func (o *Options) loggingConfig() logging.Config {
	cfg := config.LoadLoggingConfig(o.Config)
	cfg.Level = o.LoggingLevel
	cfg.Format = o.LoggingFormat
	maps.Copy(cfg.Modules, map[string]string{
		"capture": o.LoggingCapture,
		"libav":   o.LoggingLibav,
		"encoder": o.LoggingEncoder,
		"api":     o.LoggingAPI,
	})
	return cfg
}

func main() {
	exitCode := 0

	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")

		eventBus := events.New()

		sessionID := uuid.NewString()
		observe := events.StateObserver(eventBus, sessionID)

		pipeline, err := capture.NewPipeline(opts.captureConfig(), &capture.Options{
			Backend: backend.New(),
			ID:      sessionID,
			Logger:  logging.GetLogger("capture"),
			OnStateChange: func(from, to capture.State, err error) {
				metrics.SetState(sessionID, to)
				observe(from, to, err)
			},
			OnUnits: func(units []capture.EncodedUnit) {
				metrics.RecordUnits(sessionID, units)
			},
		})
		if err != nil {
			logger.Error("Invalid capture configuration", "error", err)
			hooks.OnStart(func() {
				exitCode = capture.CodeOf(err, capture.CodeInvalidConfig).ExitCode()
			})
			return
		}

		unregister, err := metrics.Register(pipeline)
		if err != nil {
			logger.Warn("Failed to register pipeline collector", "error", err)
			unregister = func() {}
		}

		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
		unsubscribe := notifier.Subscribe(eventBus)

		var server *api.Server
		if opts.Port != "" {
			server = api.NewServer(&api.Options{
				AuthUsername:      opts.AuthUsername,
				AuthPassword:      opts.AuthPassword,
				Session:           pipeline,
				EventBus:          eventBus,
				PrometheusHandler: metrics.Handler(),
			})
		}

		done := make(chan struct{})

		hooks.OnStart(func() {
			if server != nil {
				go func() {
					if startErr := server.Start(opts.Port); startErr != nil {
						logger.Error("Failed to start HTTP server", "error", startErr)
					}
				}()
			}

			code := pipeline.Run(context.Background())
			eventBus.Publish(events.Finished(pipeline, code))
			metrics.RecordResult(sessionID, code)

			exitCode = code.ExitCode()

			shutdown(logger, server, unsubscribe, notifier, unregister, eventBus)
			close(done)
		})

		hooks.OnStop(func() {
			logger.Info("Stop requested, draining encoder")
			pipeline.Stop()
			<-done
		})
	})

	cli.Root().Use = "deskcap"
	cli.Root().Short = "Capture the desktop and encode it to HEVC"
	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	cli.Run()
	os.Exit(exitCode)
}

func shutdown(logger *slog.Logger, server *api.Server, unsubscribe func(), notifier *systemd.Notifier, unregister func(), bus *events.Bus) {
	if server != nil {
		if err := server.Stop(); err != nil {
			logger.Error("Error stopping HTTP server", "error", err)
		}
	}
	unsubscribe()
	notifier.Close()
	unregister()
	if err := bus.Close(); err != nil {
		logger.Debug("Event bus close", "error", err)
	}
}
