package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultMaxDrainIterations bounds the number of flush calls made while
// draining the encoder.
const DefaultMaxDrainIterations = 512

// UnitHandler receives the units produced by a single encode or flush call.
// The slices are only valid for the duration of the call.
type UnitHandler func(units []EncodedUnit)

// StateChangeCallback is called on every state transition, on the worker
// goroutine. err is set when entering StateFailed.
type StateChangeCallback func(oldState, newState State, err error)

// Options configures a new Pipeline.
type Options struct {
	// Backend constructs the source, converter and encoder (required).
	Backend Backend

	// ID identifies the session in logs and events. Generated when empty.
	ID string

	// OnStateChange is called when the pipeline state transitions (optional).
	OnStateChange StateChangeCallback

	// OnUnits receives encoded output (optional). Units are dropped when nil.
	OnUnits UnitHandler

	// MaxDrainIterations bounds encoder flushing. Defaults to
	// DefaultMaxDrainIterations.
	MaxDrainIterations int

	// Logger for pipeline operations. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Packets       uint64 `json:"packets"`
	FramesDecoded uint64 `json:"frames_decoded"`
	FramesEncoded uint64 `json:"frames_encoded"`
	Units         uint64 `json:"units"`
	Bytes         uint64 `json:"bytes"`
	Keyframes     uint64 `json:"keyframes"`
	DrainCalls    uint64 `json:"drain_calls"`
}

type counters struct {
	packets       atomic.Uint64
	framesDecoded atomic.Uint64
	framesEncoded atomic.Uint64
	units         atomic.Uint64
	bytes         atomic.Uint64
	keyframes     atomic.Uint64
	drainCalls    atomic.Uint64
}

// Pipeline is one capture session. It owns at most one source, converter and
// encoder, and runs at most once.
type Pipeline struct {
	id     string
	cfg    Config
	opts   Options
	logger *slog.Logger

	stop  StopFlag
	once  sync.Once
	code  ErrorCode
	stats counters

	mu    sync.RWMutex
	state State
	err   *Error

	dst    Geometry
	format PixelFormat
}

// NewPipeline validates cfg and creates an idle pipeline.
func NewPipeline(cfg Config, opts *Options) (*Pipeline, error) {
	if opts == nil || opts.Backend == nil {
		return nil, NewError(CodeInvalidConfig, "new pipeline", errors.New("options with a backend are required"))
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := *opts
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.MaxDrainIterations <= 0 {
		o.MaxDrainIterations = DefaultMaxDrainIterations
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		id:     o.ID,
		cfg:    cfg,
		opts:   o,
		logger: logger.With("session_id", o.ID),
		state:  StateIdle,
	}, nil
}

// ID returns the session identifier.
func (p *Pipeline) ID() string {
	return p.id
}

// Config returns the configuration the pipeline runs with.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Err returns the failure that ended the session, or nil.
func (p *Pipeline) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.err == nil {
		return nil
	}
	return p.err
}

// Destination returns the realized output size and format. Zero until the
// source has been opened.
func (p *Pipeline) Destination() (Geometry, PixelFormat) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dst, p.format
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Packets:       p.stats.packets.Load(),
		FramesDecoded: p.stats.framesDecoded.Load(),
		FramesEncoded: p.stats.framesEncoded.Load(),
		Units:         p.stats.units.Load(),
		Bytes:         p.stats.bytes.Load(),
		Keyframes:     p.stats.keyframes.Load(),
		DrainCalls:    p.stats.drainCalls.Load(),
	}
}

// Stop asks the worker to finish. It returns immediately and releases
// nothing itself; Run drains the encoder and tears down.
func (p *Pipeline) Stop() {
	p.stop.Set()
}

// Run executes the session and returns its terminal code. Cancelling ctx
// behaves like Stop. Calling Run again returns the first result.
func (p *Pipeline) Run(ctx context.Context) ErrorCode {
	p.once.Do(func() {
		p.code = p.run(ctx)
	})
	return p.code
}

func (p *Pipeline) run(ctx context.Context) ErrorCode {
	if ctx.Err() != nil {
		p.Stop()
	}
	unwatch := context.AfterFunc(ctx, p.Stop)
	defer unwatch()

	p.setState(StateInitializing, nil)
	p.logger.Info("Starting capture",
		"input_format", p.cfg.InputFormat,
		"input", p.cfg.InputURL,
		"frame_rate", p.cfg.FrameRate,
		"encoder", p.cfg.Encoder)

	if err := p.execute(); err != nil {
		p.logger.Error("Capture failed", "code", err.Code, "op", err.Op, "error", err.Err)
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		p.setState(StateFailed, err)
		return err.Code
	}

	p.setState(StateStopped, nil)
	p.logger.Info("Capture finished", "frames", p.stats.framesEncoded.Load(), "units", p.stats.units.Load())
	return CodeOK
}

// execute acquires each component and defers its release right away, so
// whatever was acquired is released in reverse order on every return path.
func (p *Pipeline) execute() *Error {
	src, err := p.opts.Backend.NewSource()
	if err != nil {
		return wrap(err, CodeOpenInputFailed, "create source")
	}
	defer p.release("source", src)

	if cerr := p.openSource(src); cerr != nil {
		return cerr
	}

	info := src.VideoStream()
	dst := ComputeDestinationGeometry(p.cfg, info.Width, info.Height)
	format := ResolveDestinationFormat(p.cfg)
	p.mu.Lock()
	p.dst, p.format = dst, format
	p.mu.Unlock()
	p.logger.Info("Source opened",
		"stream", info.Index,
		"codec", info.CodecName,
		"source_size", [2]int{info.Width, info.Height},
		"source_format", info.PixelFormat,
		"dst_width", dst.Width,
		"dst_height", dst.Height,
		"dst_format", format)

	conv, err := p.opts.Backend.NewConverter(info, dst, format)
	if err != nil {
		return wrap(err, CodeConverterInitFailed, "create converter")
	}
	defer p.release("converter", conv)

	enc, err := p.opts.Backend.NewEncoder(p.cfg.Encoder)
	if err != nil {
		return wrap(err, CodeEncoderInitFailed, "create encoder")
	}
	defer p.release("encoder", enc)

	if err := enc.Setup(dst.Width, dst.Height, p.cfg.FrameRate); err != nil {
		return wrap(err, CodeEncoderInitFailed, "setup encoder")
	}

	p.setState(StateRunning, nil)
	if cerr := p.pump(src, conv, enc); cerr != nil {
		return cerr
	}

	p.setState(StateDraining, nil)
	return p.drain(enc)
}

// openSource runs the initialization steps in order and stops at the first
// failure.
func (p *Pipeline) openSource(src Source) *Error {
	steps := []struct {
		op   string
		code ErrorCode
		run  func() error
	}{
		{"open input", CodeOpenInputFailed, func() error {
			return src.Open(p.cfg.InputFormat, p.cfg.InputURL, p.cfg.FrameRate)
		}},
		{"probe streams", CodeStreamInfoUnavailable, src.ProbeStreams},
		{"open decoder", CodeDecoderOpenFailed, src.OpenDecoder},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			return wrap(err, step.code, step.op)
		}
	}
	return nil
}

// pump reads packets until the stop flag is raised, the input ends or a
// step fails.
func (p *Pipeline) pump(src Source, conv Converter, enc Encoder) *Error {
	video := src.VideoStream().Index

	for !p.stop.IsSet() {
		pkt, err := src.ReadPacket()
		if errors.Is(err, io.EOF) {
			p.logger.Info("End of input")
			return nil
		}
		if err != nil {
			return wrap(err, CodePacketReadFailed, "read packet")
		}
		p.stats.packets.Add(1)

		if pkt.StreamIndex() != video {
			continue
		}

		if err := src.Submit(pkt); err != nil {
			if errors.Is(err, io.EOF) {
				p.logger.Info("Decoder reached end of stream")
				return nil
			}
			return wrap(err, CodeDecodeFailed, "submit packet")
		}

		eof, cerr := p.decodeReady(src, conv, enc)
		if cerr != nil {
			return cerr
		}
		if eof {
			return nil
		}
	}

	p.logger.Info("Stop requested")
	return nil
}

// decodeReady converts and encodes every frame the decoder can produce from
// the packets submitted so far. It reports true when the decoder is drained.
func (p *Pipeline) decodeReady(src Source, conv Converter, enc Encoder) (bool, *Error) {
	for {
		frame, err := src.PollFrame()
		switch {
		case errors.Is(err, ErrNotReady):
			return false, nil
		case errors.Is(err, io.EOF):
			return true, nil
		case err != nil:
			return false, wrap(err, CodeDecodeFailed, "decode frame")
		}
		p.stats.framesDecoded.Add(1)

		converted, err := conv.Convert(frame)
		if err != nil {
			return false, wrap(err, CodeConvertFailed, "convert frame")
		}

		units, err := enc.Encode(converted)
		if err != nil {
			return false, wrap(err, CodeEncodeFailed, "encode frame")
		}
		p.stats.framesEncoded.Add(1)
		p.emit(units)
	}
}

// drain flushes the encoder until it reports that nothing is buffered.
func (p *Pipeline) drain(enc Encoder) *Error {
	for i := 0; i < p.opts.MaxDrainIterations; i++ {
		units, done, err := enc.Flush()
		p.stats.drainCalls.Add(1)
		if err != nil {
			return wrap(err, CodeEncodeFailed, "flush encoder")
		}
		p.emit(units)
		if done {
			p.logger.Debug("Encoder drained", "calls", i+1)
			return nil
		}
	}

	p.logger.Warn("Encoder drain limit reached, dropping remaining output", "limit", p.opts.MaxDrainIterations)
	return nil
}

func (p *Pipeline) emit(units []EncodedUnit) {
	if len(units) == 0 {
		return
	}
	for _, u := range units {
		p.stats.units.Add(1)
		p.stats.bytes.Add(uint64(len(u.Data)))
		if u.Keyframe {
			p.stats.keyframes.Add(1)
		}
	}
	if p.opts.OnUnits != nil {
		p.opts.OnUnits(units)
	}
}

func (p *Pipeline) release(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		p.logger.Warn("Failed to release "+name, "error", err)
		return
	}
	p.logger.Debug("Released " + name)
}

func (p *Pipeline) setState(s State, err error) {
	p.mu.Lock()
	old := p.state
	p.state = s
	p.mu.Unlock()

	p.logger.Debug("State changed", "from", old, "to", s)
	if p.opts.OnStateChange != nil {
		p.opts.OnStateChange(old, s, err)
	}
}
