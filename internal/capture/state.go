package capture

import "sync/atomic"

// State represents the lifecycle position of a pipeline.
type State string

// Pipeline states.
const (
	StateIdle         State = "idle"         // Created, Run not called
	StateInitializing State = "initializing" // Opening source, converter and encoder
	StateRunning      State = "running"      // Pumping frames
	StateDraining     State = "draining"     // Flushing encoder output
	StateStopped      State = "stopped"      // Finished cleanly
	StateFailed       State = "failed"       // Finished with an error
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}

// StopFlag is a one-way latch shared between the worker and whoever asks it
// to stop. Setting it is a single atomic store, so it may be called from any
// goroutine, including one that is reacting to an OS signal.
type StopFlag struct {
	set atomic.Bool
}

// Set raises the flag. It never blocks and cannot be undone.
func (f *StopFlag) Set() {
	f.set.Store(true)
}

// IsSet reports whether Set has been called.
func (f *StopFlag) IsSet() bool {
	return f.set.Load()
}
