// Package metrics provides Prometheus metrics for capture sessions.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/deskcap/internal/capture"
)

const namespace = "deskcap"

var allStates = []capture.State{
	capture.StateIdle,
	capture.StateInitializing,
	capture.StateRunning,
	capture.StateDraining,
	capture.StateStopped,
	capture.StateFailed,
}

var (
	captureState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "state",
		Help:      "1 for the current pipeline state, 0 otherwise",
	}, []string{"session_id", "state"})

	captureResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "results_total",
		Help:      "Finished capture sessions by terminal code",
	}, []string{"code"})

	encoderUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "units_total",
		Help:      "Encoded units emitted",
	}, []string{"session_id"})

	encoderBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "bytes_total",
		Help:      "Encoded bytes emitted",
	}, []string{"session_id"})

	encoderKeyframes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "keyframes_total",
		Help:      "Encoded keyframes emitted",
	}, []string{"session_id"})

	encoderUnitSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "unit_size_bytes",
		Help:      "Size of encoded units",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
	})

	// Local cache for the status API.
	sessionCache   = make(map[string]*SessionMetrics)
	sessionCacheMu sync.RWMutex
)

// SessionMetrics holds the current metric values for a session.
type SessionMetrics struct {
	State     string
	Code      string
	Units     uint64
	Bytes     uint64
	Keyframes uint64
}

// SetState marks state as the current state of a session.
func SetState(sessionID string, state capture.State) {
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1
		}
		captureState.WithLabelValues(sessionID, string(s)).Set(v)
	}
	updateCache(sessionID, func(m *SessionMetrics) { m.State = string(state) })
}

// RecordUnits counts the units produced by one encode or flush call.
func RecordUnits(sessionID string, units []capture.EncodedUnit) {
	if len(units) == 0 {
		return
	}

	var bytes, keyframes uint64
	for _, u := range units {
		bytes += uint64(len(u.Data))
		if u.Keyframe {
			keyframes++
		}
		encoderUnitSize.Observe(float64(len(u.Data)))
	}

	encoderUnits.WithLabelValues(sessionID).Add(float64(len(units)))
	encoderBytes.WithLabelValues(sessionID).Add(float64(bytes))
	if keyframes > 0 {
		encoderKeyframes.WithLabelValues(sessionID).Add(float64(keyframes))
	}

	updateCache(sessionID, func(m *SessionMetrics) {
		m.Units += uint64(len(units))
		m.Bytes += bytes
		m.Keyframes += keyframes
	})
}

// RecordResult counts a finished session by its terminal code.
func RecordResult(sessionID string, code capture.ErrorCode) {
	captureResults.WithLabelValues(string(code)).Inc()
	updateCache(sessionID, func(m *SessionMetrics) { m.Code = string(code) })
}

// DeleteSessionMetrics removes all per-session series and the cache entry.
func DeleteSessionMetrics(sessionID string) {
	for _, s := range allStates {
		captureState.DeleteLabelValues(sessionID, string(s))
	}
	encoderUnits.DeleteLabelValues(sessionID)
	encoderBytes.DeleteLabelValues(sessionID)
	encoderKeyframes.DeleteLabelValues(sessionID)

	sessionCacheMu.Lock()
	delete(sessionCache, sessionID)
	sessionCacheMu.Unlock()
}

// GetSessionMetrics returns a copy of the cached values, or nil.
func GetSessionMetrics(sessionID string) *SessionMetrics {
	sessionCacheMu.RLock()
	defer sessionCacheMu.RUnlock()
	if m, ok := sessionCache[sessionID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// Handler returns the Prometheus metrics HTTP handler for the default
// registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func updateCache(sessionID string, update func(*SessionMetrics)) {
	sessionCacheMu.Lock()
	defer sessionCacheMu.Unlock()
	m, ok := sessionCache[sessionID]
	if !ok {
		m = &SessionMetrics{}
		sessionCache[sessionID] = m
	}
	update(m)
}
