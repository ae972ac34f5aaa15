// Package capture drives a single desktop capture session.
//
// A Pipeline sequences source discovery, decoder setup, frame conversion and
// encoding on one goroutine, then drains the encoder and releases every
// resource in reverse acquisition order:
//
//	idle → initializing → running → draining → stopped
//	                 ↘           ↘
//	                   failed      failed
//
// The package holds no libav code. Native components are reached through the
// Backend interface so the orchestration can be exercised with fakes:
//
//	p, err := capture.NewPipeline(capture.DefaultConfig(), &capture.Options{
//	    Backend: backend,
//	    OnUnits: func(units []capture.EncodedUnit) { ... },
//	})
//	code := p.Run(ctx)
//
// Stop may be called from any goroutine. It only sets a flag that the worker
// checks once per loop iteration, so the session ends after at most one more
// read→decode→convert→encode cycle.
package capture
