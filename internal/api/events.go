package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/deskcap/internal/events"
)

// registerSSERoutes registers the capture event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time capture state transitions and the final session result",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, map[string]any{
		"state-changed":    events.CaptureStateChangedEvent{},
		"capture-finished": events.CaptureFinishedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		if s.eventBus == nil {
			return
		}

		eventCh := make(chan any, 10)
		unsubscribers := []func(){
			events.SubscribeToChannel[events.CaptureStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CaptureFinishedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Late subscribers see where the session is before the next transition.
		if s.session != nil {
			state := s.session.State()
			if err := send.Data(events.CaptureStateChangedEvent{
				SessionID: s.session.ID(),
				From:      string(state),
				To:        string(state),
				Timestamp: events.Timestamp(),
			}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
