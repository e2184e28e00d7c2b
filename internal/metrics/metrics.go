package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the mock recognition server
type Metrics struct {
	// Connection metrics
	ConnectionsTotal prometheus.Counter
	RejectedUpgrades prometheus.Counter
	ActiveSessions   prometheus.Gauge
	SessionDuration  prometheus.Histogram

	// Frame metrics
	FramesReceived prometheus.Counter
	FramesSent     prometheus.Counter
	FrameErrors    prometheus.Counter
	AudioChunks    prometheus.Counter
	AudioBytes     prometheus.Counter

	// Fault injection metrics
	ErrorsInjected prometheus.Counter
}

// New creates the metric set and registers it with the given registerer,
// typically one private registry per server instance so parallel tests
// do not collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Connection metrics
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "mockasr_connections_total",
			Help: "Total number of websocket connections accepted",
		}),
		RejectedUpgrades: factory.NewCounter(prometheus.CounterOpts{
			Name: "mockasr_rejected_upgrades_total",
			Help: "Total number of connections rejected before the upgrade",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mockasr_active_sessions",
			Help: "Current number of live recognition sessions",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mockasr_session_duration_seconds",
			Help:    "Duration of recognition sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),

		// Frame metrics
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "mockasr_frames_received_total",
			Help: "Total number of client frames decoded",
		}),
		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "mockasr_frames_sent_total",
			Help: "Total number of server frames written",
		}),
		FrameErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "mockasr_frame_errors_total",
			Help: "Total number of client frames that failed to decode",
		}),
		AudioChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "mockasr_audio_chunks_total",
			Help: "Total number of audio-only frames received",
		}),
		AudioBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "mockasr_audio_bytes_total",
			Help: "Total compressed audio payload bytes received",
		}),

		// Fault injection metrics
		ErrorsInjected: factory.NewCounter(prometheus.CounterOpts{
			Name: "mockasr_errors_injected_total",
			Help: "Total number of scripted error frames sent to clients",
		}),
	}
}

// RecordSessionStart marks a session as live
func (m *Metrics) RecordSessionStart() {
	m.ConnectionsTotal.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionEnd marks a session as finished and records its duration
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordAudioChunk records one received audio frame and its payload size
func (m *Metrics) RecordAudioChunk(payloadBytes int) {
	m.AudioChunks.Inc()
	m.AudioBytes.Add(float64(payloadBytes))
}
