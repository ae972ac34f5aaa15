package events

import (
	"time"

	"github.com/smazurov/deskcap/internal/capture"
)

// Event type constants for kelindar/event.
const (
	TypeCaptureStateChanged uint32 = iota + 1
	TypeCaptureFinished
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CaptureStateChangedEvent is published on every pipeline state transition.
type CaptureStateChangedEvent struct {
	SessionID string `json:"session_id" example:"5f0c3c1e-8d5e-4d2b-9a57-1f1d0c2b9e11" doc:"Capture session identifier"`
	From      string `json:"from" example:"initializing" doc:"Previous state"`
	To        string `json:"to" example:"running" doc:"New state"`
	Code      string `json:"code,omitempty" example:"OPEN_INPUT_FAILED" doc:"Error code when entering failed"`
	Error     string `json:"error,omitempty" doc:"Failure description when entering failed"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureStateChangedEvent.
func (e CaptureStateChangedEvent) Type() uint32 { return TypeCaptureStateChanged }

// CaptureFinishedEvent is published once when Run returns.
type CaptureFinishedEvent struct {
	SessionID string        `json:"session_id" doc:"Capture session identifier"`
	Code      string        `json:"code" example:"OK" doc:"Terminal error code"`
	Error     string        `json:"error,omitempty" doc:"Failure description"`
	Stats     capture.Stats `json:"stats" doc:"Final pipeline counters"`
	Timestamp string        `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureFinishedEvent.
func (e CaptureFinishedEvent) Type() uint32 { return TypeCaptureFinished }

// Timestamp formats the current time the way event payloads carry it.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
