// Package metrics exposes Prometheus instrumentation for the voice
// session pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice daemon.
type Metrics struct {
	// Session lifecycle
	SessionActive   prometheus.Gauge
	SessionsStarted *prometheus.CounterVec
	SessionsEnded   *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Outbound audio
	FramesForwarded prometheus.Counter
	BytesForwarded  prometheus.Counter
	FramesDropped   *prometheus.CounterVec

	// Inbound conversation events
	ConversationEvents  *prometheus.CounterVec
	TranscriptFragments *prometheus.CounterVec

	// Tool dispatch
	ToolDispatches  *prometheus.CounterVec
	ToolDuplicates  prometheus.Counter
	ToolResultsLost prometheus.Counter

	// Generative API
	GenerativeRequests *prometheus.HistogramVec

	// Agent audio playback
	PlaybackFrames  prometheus.Counter
	PlaybackFlushes prometheus.Counter
}

// NewMetrics creates all metrics against the given registerer. Tests
// pass a fresh registry so parallel cases never collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pixie_session_active",
			Help: "Whether a voice session is currently active (0 or 1)",
		}),
		SessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixie_sessions_started_total",
			Help: "Total number of sessions started, by mode",
		}, []string{"mode"}),
		SessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixie_sessions_ended_total",
			Help: "Total number of sessions ended, by reason",
		}, []string{"reason"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pixie_session_duration_seconds",
			Help:    "Duration of completed sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),

		FramesForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "pixie_audio_frames_forwarded_total",
			Help: "Total number of microphone frames forwarded to the voice provider",
		}),
		BytesForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "pixie_audio_bytes_forwarded_total",
			Help: "Total PCM bytes forwarded to the voice provider",
		}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixie_audio_frames_dropped_total",
			Help: "Total number of microphone frames dropped, by reason",
		}, []string{"reason"}),

		ConversationEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixie_conversation_events_total",
			Help: "Total inbound conversation events, by kind",
		}, []string{"kind"}),
		TranscriptFragments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixie_transcript_fragments_total",
			Help: "Total transcript fragments observed, by outcome",
		}, []string{"outcome"}),

		ToolDispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixie_tool_dispatches_total",
			Help: "Total tool invocations dispatched, by outcome",
		}, []string{"outcome"}),
		ToolDuplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "pixie_tool_duplicates_total",
			Help: "Total tool invocations dropped as duplicate call ids",
		}),
		ToolResultsLost: factory.NewCounter(prometheus.CounterOpts{
			Name: "pixie_tool_results_discarded_total",
			Help: "Total tool results discarded because the session had closed",
		}),

		GenerativeRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixie_generative_request_seconds",
			Help:    "Latency of generative API calls, by outcome",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"outcome"}),

		PlaybackFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "pixie_playback_frames_total",
			Help: "Total agent audio frames queued for playback",
		}),
		PlaybackFlushes: factory.NewCounter(prometheus.CounterOpts{
			Name: "pixie_playback_flushes_total",
			Help: "Total playback queue flushes caused by interruptions",
		}),
	}
}

func (m *Metrics) RecordSessionStarted(mode string) {
	m.SessionsStarted.WithLabelValues(mode).Inc()
	m.SessionActive.Set(1)
}

func (m *Metrics) RecordSessionEnded(reason string, durationSeconds float64) {
	m.SessionsEnded.WithLabelValues(reason).Inc()
	m.SessionDuration.Observe(durationSeconds)
	m.SessionActive.Set(0)
}

func (m *Metrics) RecordFrameForwarded(sizeBytes int) {
	m.FramesForwarded.Inc()
	m.BytesForwarded.Add(float64(sizeBytes))
}

func (m *Metrics) RecordFrameDropped(reason string) {
	m.FramesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordConversationEvent(kind string) {
	m.ConversationEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordTranscriptFragment(accepted bool) {
	outcome := "accepted"
	if !accepted {
		outcome = "ignored"
	}
	m.TranscriptFragments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordToolDispatch(outcome string) {
	m.ToolDispatches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordToolDuplicate() {
	m.ToolDuplicates.Inc()
}

func (m *Metrics) RecordToolResultDiscarded() {
	m.ToolResultsLost.Inc()
}

func (m *Metrics) RecordGenerativeRequest(outcome string, durationSeconds float64) {
	m.GenerativeRequests.WithLabelValues(outcome).Observe(durationSeconds)
}

func (m *Metrics) RecordPlaybackFrame() {
	m.PlaybackFrames.Inc()
}

func (m *Metrics) RecordPlaybackFlush() {
	m.PlaybackFlushes.Inc()
}
