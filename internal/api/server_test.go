package api

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/deskcap/internal/api/models"
	"github.com/smazurov/deskcap/internal/capture"
	"github.com/smazurov/deskcap/internal/events"
	"github.com/smazurov/deskcap/internal/metrics"
	"github.com/smazurov/deskcap/internal/version"
)

type fakeSession struct {
	id      string
	state   capture.State
	err     error
	dst     capture.Geometry
	stopped atomic.Bool
}

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) Config() capture.Config {
	return capture.Config{InputFormat: "x11grab", InputURL: ":0.0", Encoder: capture.EncoderX265}
}

func (f *fakeSession) State() capture.State { return f.state }
func (f *fakeSession) Err() error           { return f.err }

func (f *fakeSession) Stats() capture.Stats {
	return capture.Stats{FramesEncoded: 30, Units: 31, Bytes: 4096}
}

func (f *fakeSession) Destination() (capture.Geometry, capture.PixelFormat) {
	return f.dst, capture.PixelFormatYUV420P
}

func (f *fakeSession) Stop() { f.stopped.Store(true) }

func doRequest(t *testing.T, s *Server, method, path string, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(auth)))
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndVersionSkipAuth(t *testing.T) {
	s := NewServer(&Options{AuthUsername: "admin", AuthPassword: "secret"})

	rec := doRequest(t, s, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	var health models.HealthData
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("health status = %q", health.Status)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/version", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("version: expected 200, got %d", rec.Code)
	}
	var info version.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if info.Version != version.Version {
		t.Errorf("version = %q, want %q", info.Version, version.Version)
	}
}

func TestStatusRequiresAuth(t *testing.T) {
	s := NewServer(&Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
		Session:      &fakeSession{id: "s1", state: capture.StateRunning},
	})

	tests := []struct {
		name string
		auth string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong password", "admin:nope", http.StatusUnauthorized},
		{"no separator", "admin", http.StatusUnauthorized},
		{"valid", "admin:secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodGet, "/api/status", tt.auth)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}

func TestStatusReportsSession(t *testing.T) {
	sess := &fakeSession{
		id:    "status-session",
		state: capture.StateFailed,
		err:   capture.NewError(capture.CodeOpenInputFailed, "open input", errors.New("no display")),
		dst:   capture.Geometry{Width: 1280, Height: 720},
	}
	metrics.RecordUnits(sess.id, []capture.EncodedUnit{{Data: []byte{1, 2}, Keyframe: true}})
	defer metrics.DeleteSessionMetrics(sess.id)

	s := NewServer(&Options{Session: sess})
	rec := doRequest(t, s, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got models.StatusData
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.State != "failed" || got.Code != "OPEN_INPUT_FAILED" {
		t.Errorf("state/code = %s/%s", got.State, got.Code)
	}
	if got.Destination == nil || got.Destination.Width != 1280 || got.Destination.PixelFormat != "yuv420p" {
		t.Errorf("destination = %+v", got.Destination)
	}
	if got.Stats.FramesEncoded != 30 || got.Encoder != "x265" {
		t.Errorf("stats/encoder = %+v/%s", got.Stats, got.Encoder)
	}
	if got.Keyframes != 1 {
		t.Errorf("keyframes = %d, want 1", got.Keyframes)
	}
}

func TestStatusWithoutDestination(t *testing.T) {
	s := NewServer(&Options{Session: &fakeSession{id: "idle", state: capture.StateIdle}})
	rec := doRequest(t, s, http.MethodGet, "/api/status", "")
	if strings.Contains(rec.Body.String(), `"destination"`) {
		t.Errorf("destination should be omitted before the source opens: %s", rec.Body.String())
	}
}

func TestStatusWithoutSession(t *testing.T) {
	s := NewServer(&Options{})
	if rec := doRequest(t, s, http.MethodGet, "/api/status", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestStop(t *testing.T) {
	running := &fakeSession{id: "run", state: capture.StateRunning}
	s := NewServer(&Options{Session: running})

	rec := doRequest(t, s, http.MethodPost, "/api/stop", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if !running.stopped.Load() {
		t.Error("Stop was not called")
	}

	done := &fakeSession{id: "done", state: capture.StateStopped}
	s = NewServer(&Options{Session: done})
	if rec := doRequest(t, s, http.MethodPost, "/api/stop", ""); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for a finished session, got %d", rec.Code)
	}
	if done.stopped.Load() {
		t.Error("Stop called on a finished session")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer(&Options{
		AuthUsername:      "admin",
		AuthPassword:      "secret",
		PrometheusHandler: metrics.Handler(),
	})
	rec := doRequest(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without auth, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := NewServer(&Options{})
	rec := doRequest(t, s, http.MethodOptions, "/api/status", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestSSEStreamsCaptureEvents(t *testing.T) {
	bus := events.New()
	defer bus.Close()

	s := NewServer(&Options{
		AuthUsername: "test",
		AuthPassword: "test",
		Session:      &fakeSession{id: "sse", state: capture.StateRunning},
		EventBus:     bus,
	})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	credentials := base64.StdEncoding.EncodeToString([]byte("test:test"))
	resp, err := http.Get(fmt.Sprintf("%s/api/events?auth=%s", ts.URL, credentials))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("unexpected content type %s", resp.Header.Get("Content-Type"))
	}

	messages := make(chan string, 10)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data:") {
				messages <- line
			}
		}
	}()

	select {
	case msg := <-messages:
		if !strings.Contains(msg, `"to":"running"`) {
			t.Errorf("expected current state first, got %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for initial state")
	}

	bus.Publish(events.CaptureStateChangedEvent{
		SessionID: "sse",
		From:      "running",
		To:        "draining",
		Timestamp: events.Timestamp(),
	})

	select {
	case msg := <-messages:
		if !strings.Contains(msg, `"to":"draining"`) {
			t.Errorf("expected draining transition, got %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for published event")
	}
}
