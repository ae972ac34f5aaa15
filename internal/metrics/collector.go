package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smazurov/deskcap/internal/capture"
)

// StatsSource is satisfied by *capture.Pipeline.
type StatsSource interface {
	ID() string
	Stats() capture.Stats
}

// PipelineCollector exposes the pipeline's own counters at scrape time, so
// the hot loop does not touch Prometheus for every packet and frame.
type PipelineCollector struct {
	src StatsSource

	packets       *prometheus.Desc
	framesDecoded *prometheus.Desc
	framesEncoded *prometheus.Desc
	drainCalls    *prometheus.Desc
}

// NewPipelineCollector creates a collector for src.
func NewPipelineCollector(src StatsSource) *PipelineCollector {
	labels := prometheus.Labels{"session_id": src.ID()}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pipeline", name), help, nil, labels)
	}
	return &PipelineCollector{
		src:           src,
		packets:       desc("packets_total", "Packets read from the input"),
		framesDecoded: desc("frames_decoded_total", "Frames produced by the decoder"),
		framesEncoded: desc("frames_encoded_total", "Frames submitted to the encoder"),
		drainCalls:    desc("drain_calls_total", "Encoder flush calls made while draining"),
	}
}

// Describe implements prometheus.Collector.
func (c *PipelineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.packets
	ch <- c.framesDecoded
	ch <- c.framesEncoded
	ch <- c.drainCalls
}

// Collect implements prometheus.Collector.
func (c *PipelineCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.packets, prometheus.CounterValue, float64(s.Packets))
	ch <- prometheus.MustNewConstMetric(c.framesDecoded, prometheus.CounterValue, float64(s.FramesDecoded))
	ch <- prometheus.MustNewConstMetric(c.framesEncoded, prometheus.CounterValue, float64(s.FramesEncoded))
	ch <- prometheus.MustNewConstMetric(c.drainCalls, prometheus.CounterValue, float64(s.DrainCalls))
}

// Register adds a collector for src to the default registry and returns a
// function that removes it together with the session's other series.
func Register(src StatsSource) (func(), error) {
	c := NewPipelineCollector(src)
	if err := prometheus.Register(c); err != nil {
		return nil, err
	}
	return func() {
		prometheus.Unregister(c)
		DeleteSessionMetrics(src.ID())
	}, nil
}
