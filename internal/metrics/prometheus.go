package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the dictation service
type Metrics struct {
	// Session metrics
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsCancelled prometheus.Counter
	SessionsFailed    prometheus.Counter
	SessionActive     prometheus.Gauge
	SessionDuration   prometheus.Histogram
	CompletionLatency prometheus.Histogram

	// Capture feed metrics
	FramesReceived prometheus.Counter
	FramesDropped  prometheus.Counter
	ParseErrors    prometheus.Counter

	// VAD metrics
	VADWindowsProcessed prometheus.Counter
	VADSpeechDetected   prometheus.Counter
	VADProcessingTime   prometheus.Histogram
	VADFailures         prometheus.Counter

	// Chunk metrics
	ChunksDispatched prometheus.Counter
	ChunkDuration    prometheus.Histogram
	ChunkSize        prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionRetries   prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_sessions_completed_total",
			Help: "Total number of recording sessions completed successfully",
		}),
		SessionsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_sessions_cancelled_total",
			Help: "Total number of recording sessions cancelled",
		}),
		SessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_sessions_failed_total",
			Help: "Total number of recording sessions ended by an error",
		}),
		SessionActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dictation_session_active",
			Help: "Whether a recording session is currently active",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictation_session_duration_seconds",
			Help:    "Duration of recording sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),
		CompletionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictation_completion_latency_seconds",
			Help:    "Time between stop and session completion",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8), // 50ms to ~6s
		}),

		FramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_frames_received_total",
			Help: "Total number of audio frame packets received",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_frames_dropped_total",
			Help: "Total number of audio frame packets dropped",
		}),
		ParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_parse_errors_total",
			Help: "Total number of capture packet parsing errors",
		}),

		VADWindowsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_vad_windows_processed_total",
			Help: "Total number of VAD frame windows processed",
		}),
		VADSpeechDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_vad_speech_detected_total",
			Help: "Total number of VAD windows classified as speech",
		}),
		VADProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictation_vad_processing_duration_seconds",
			Help:    "Time spent processing VAD windows",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 10), // 0.1ms to ~0.1s
		}),
		VADFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_vad_failures_total",
			Help: "Total number of transient VAD processing failures",
		}),

		ChunksDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_chunks_dispatched_total",
			Help: "Total number of audio chunks dispatched for transcription",
		}),
		ChunkDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictation_chunk_duration_seconds",
			Help:    "Duration of dispatched audio chunks",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 0.25s to ~1 minute
		}),
		ChunkSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictation_chunk_size_bytes",
			Help:    "Size of dispatched audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_transcription_retries_total",
			Help: "Total number of transcription request retries",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictation_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dictation_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dictation_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dictation_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordSessionStarted marks a new active session
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.SessionActive.Set(1)
}

// RecordSessionCompleted records a successful session end
func (m *Metrics) RecordSessionCompleted(durationSeconds, completionLatencySeconds float64) {
	m.SessionsCompleted.Inc()
	m.SessionDuration.Observe(durationSeconds)
	m.CompletionLatency.Observe(completionLatencySeconds)
	m.SessionActive.Set(0)
}

// RecordSessionCancelled records a cancelled session
func (m *Metrics) RecordSessionCancelled(durationSeconds float64) {
	m.SessionsCancelled.Inc()
	m.SessionDuration.Observe(durationSeconds)
	m.SessionActive.Set(0)
}

// RecordSessionFailed records a session ended by an error
func (m *Metrics) RecordSessionFailed() {
	m.SessionsFailed.Inc()
	m.SessionActive.Set(0)
}

// RecordFrameReceived increments the frames received counter
func (m *Metrics) RecordFrameReceived() {
	m.FramesReceived.Inc()
}

// RecordFrameDropped increments the frames dropped counter
func (m *Metrics) RecordFrameDropped() {
	m.FramesDropped.Inc()
}

// RecordParseError increments the parse errors counter
func (m *Metrics) RecordParseError() {
	m.ParseErrors.Inc()
}

// RecordVADWindow records one processed VAD window
func (m *Metrics) RecordVADWindow(isSpeech bool, processingTimeSeconds float64) {
	m.VADWindowsProcessed.Inc()
	if isSpeech {
		m.VADSpeechDetected.Inc()
	}
	m.VADProcessingTime.Observe(processingTimeSeconds)
}

// RecordVADFailure increments the transient VAD failure counter
func (m *Metrics) RecordVADFailure() {
	m.VADFailures.Inc()
}

// RecordChunkDispatched records one dispatched chunk
func (m *Metrics) RecordChunkDispatched(durationSeconds float64, sizeBytes int) {
	m.ChunksDispatched.Inc()
	m.ChunkDuration.Observe(durationSeconds)
	m.ChunkSize.Observe(float64(sizeBytes))
}

// RecordTranscriptionRequest increments the transcription request counter
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionRetry increments the retry counter
func (m *Metrics) RecordTranscriptionRetry() {
	m.TranscriptionRetries.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
