package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/deskcap/internal/api/models"
	"github.com/smazurov/deskcap/internal/capture"
	"github.com/smazurov/deskcap/internal/metrics"
)

func (s *Server) registerCaptureRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Capture status",
		Description: "Current state, terminal code and counters of the capture session",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		if s.session == nil {
			return nil, huma.Error503ServiceUnavailable("no capture session")
		}
		return &models.StatusResponse{Body: s.status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "stop-capture",
		Method:        http.MethodPost,
		Path:          "/api/stop",
		Summary:       "Stop capture",
		Description:   "Request the capture session to drain and stop. Returns immediately.",
		Tags:          []string{"capture"},
		Security:      withAuth(),
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401, 409, 503},
	}, func(_ context.Context, _ *struct{}) (*models.StopResponse, error) {
		if s.session == nil {
			return nil, huma.Error503ServiceUnavailable("no capture session")
		}

		state := s.session.State()
		if state.Terminal() {
			return nil, huma.Error409Conflict("capture session already " + string(state))
		}

		s.session.Stop()
		s.logger.Info("Stop requested via API", "session_id", s.session.ID(), "state", state)

		return &models.StopResponse{
			Body: models.StopData{
				Status:  "stopping",
				State:   string(state),
				Message: "stop requested",
			},
		}, nil
	})
}

func (s *Server) status() models.StatusData {
	cfg := s.session.Config()
	data := models.StatusData{
		SessionID:   s.session.ID(),
		State:       string(s.session.State()),
		Encoder:     string(cfg.Encoder),
		InputFormat: cfg.InputFormat,
		InputURL:    cfg.InputURL,
		Stats:       s.session.Stats(),
	}

	if err := s.session.Err(); err != nil {
		data.Code = string(capture.CodeOf(err, capture.CodeOK))
		data.Error = err.Error()
	}

	if dst, format := s.session.Destination(); dst.Width > 0 && dst.Height > 0 {
		data.Destination = &models.GeometryData{
			Width:       dst.Width,
			Height:      dst.Height,
			PixelFormat: string(format),
		}
	}

	if m := metrics.GetSessionMetrics(s.session.ID()); m != nil {
		data.Keyframes = m.Keyframes
	}
	return data
}
