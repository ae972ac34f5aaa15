// Package models holds request and response bodies for the status API.
package models

import (
	"github.com/smazurov/deskcap/internal/capture"
	"github.com/smazurov/deskcap/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionResponse struct {
	Body version.Info
}

// Status models
type GeometryData struct {
	Width       int    `json:"width" example:"1280" doc:"Output width in pixels"`
	Height      int    `json:"height" example:"720" doc:"Output height in pixels"`
	PixelFormat string `json:"pixel_format" example:"yuv420p" doc:"Output pixel format"`
}

type StatusData struct {
	SessionID   string        `json:"session_id" doc:"Capture session identifier"`
	State       string        `json:"state" example:"running" doc:"Pipeline state"`
	Code        string        `json:"code,omitempty" example:"OPEN_INPUT_FAILED" doc:"Terminal error code, set once the session has failed"`
	Error       string        `json:"error,omitempty" doc:"Failure description"`
	Encoder     string        `json:"encoder" example:"x265" doc:"Active encoder"`
	InputFormat string        `json:"input_format" example:"x11grab" doc:"Capture input format"`
	InputURL    string        `json:"input_url" example:":0.0" doc:"Capture input URL"`
	Destination *GeometryData `json:"destination,omitempty" doc:"Realized output geometry, absent until the source is open"`
	Stats       capture.Stats `json:"stats" doc:"Pipeline counters"`
	Keyframes   uint64        `json:"keyframes" doc:"Keyframes observed by the metrics sink"`
}

type StatusResponse struct {
	Body StatusData
}

// Stop models
type StopData struct {
	Status  string `json:"status" example:"stopping" doc:"Stop request outcome"`
	State   string `json:"state" example:"running" doc:"Pipeline state when the request was accepted"`
	Message string `json:"message" doc:"Human readable outcome"`
}

type StopResponse struct {
	Body StopData
}

// Logging models
type LogLevelData struct {
	Level string `json:"level" example:"debug" doc:"New level for the module: trace, debug, info, warn or error"`
}

type LogLevelRequest struct {
	Module string `path:"module" example:"capture" doc:"Logger module, e.g. capture, libav, encoder, api"`
	Body   LogLevelData
}

type LogLevelResponse struct {
	Body struct {
		Module string `json:"module" example:"capture" doc:"Logger module"`
		Level  string `json:"level" example:"debug" doc:"Level now in effect"`
	}
}
