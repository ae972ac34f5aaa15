package events

import (
	"github.com/smazurov/deskcap/internal/capture"
)

// StateObserver returns a capture.StateChangeCallback that publishes a
// CaptureStateChangedEvent for sessionID on every transition.
func StateObserver(bus *Bus, sessionID string) capture.StateChangeCallback {
	return func(from, to capture.State, err error) {
		ev := CaptureStateChangedEvent{
			SessionID: sessionID,
			From:      string(from),
			To:        string(to),
			Timestamp: Timestamp(),
		}
		if err != nil {
			ev.Code = string(capture.CodeOf(err, capture.CodeOK))
			ev.Error = err.Error()
		}
		bus.Publish(ev)
	}
}

// Finished builds the CaptureFinishedEvent for a pipeline that has returned
// from Run.
func Finished(p *capture.Pipeline, code capture.ErrorCode) CaptureFinishedEvent {
	ev := CaptureFinishedEvent{
		SessionID: p.ID(),
		Code:      string(code),
		Stats:     p.Stats(),
		Timestamp: Timestamp(),
	}
	if err := p.Err(); err != nil {
		ev.Error = err.Error()
	}
	return ev
}
