package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rezkam/SpeakFlow-sub002/internal/config"
	"github.com/rezkam/SpeakFlow-sub002/internal/metrics"
	"github.com/rezkam/SpeakFlow-sub002/internal/session"
)

// HTTPServer provides HTTP API endpoints for monitoring and session control
type HTTPServer struct {
	server        *http.Server
	logger        *slog.Logger
	config        *config.Config
	controller    *session.Controller
	captureServer *CaptureServer
	metrics       *metrics.Metrics

	startTime time.Time
	mu        sync.RWMutex
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, controller *session.Controller, captureServer *CaptureServer, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:        logger,
		config:        appConfig,
		controller:    controller,
		captureServer: captureServer,
		metrics:       m,
		startTime:     time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Session status endpoint
	mux.HandleFunc("/status", h.withMetrics("/status", h.handleStatus))

	// Session control endpoints
	mux.HandleFunc("/recording/start", h.withMetrics("/recording/start", h.handleStart))
	mux.HandleFunc("/recording/stop", h.withMetrics("/recording/stop", h.handleStop))
	mux.HandleFunc("/recording/cancel", h.withMetrics("/recording/cancel", h.handleCancel))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	captureStats := h.captureServer.GetStatistics()
	dispatchStats := h.controller.DispatcherStats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "speakflow-dictation",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"capture_server": map[string]interface{}{
				"status":            "running",
				"packets_received":  captureStats.PacketsReceived,
				"packets_processed": captureStats.PacketsProcessed,
				"parse_errors":      captureStats.ParseErrors,
				"queue_size":        captureStats.QueueSize,
			},
			"session": map[string]interface{}{
				"state": h.controller.State().String(),
			},
			"transcription": map[string]interface{}{
				"total_requests":  dispatchStats.TotalRequests,
				"success_rate":    dispatchStats.SuccessRate,
				"active_requests": dispatchStats.ActiveRequests,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStatus implements the /status endpoint
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.controller.SessionInfo())
}

// handleStart implements the POST /recording/start endpoint
func (h *HTTPServer) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.controller.StartRecording(); err != nil {
		h.writeControlError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.controller.SessionInfo())
}

// handleStop implements the POST /recording/stop endpoint
func (h *HTTPServer) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.controller.StopRecording("http api"); err != nil {
		h.writeControlError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.controller.SessionInfo())
}

// handleCancel implements the POST /recording/cancel endpoint
func (h *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.controller.CancelRecording(); err != nil {
		h.writeControlError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.controller.SessionInfo())
}

// writeControlError reports a rejected session transition as a conflict
func (h *HTTPServer) writeControlError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
		"state": h.controller.State().String(),
	})
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sanitizedConfig := map[string]interface{}{
		"audio": map[string]interface{}{
			"sample_rate": h.config.Audio.SampleRate,
			"channels":    h.config.Audio.Channels,
			"bit_depth":   h.config.Audio.BitDepth,
		},
		"vad": map[string]interface{}{
			"enabled":                  h.config.VAD.Enabled,
			"preset":                   h.config.VAD.Preset,
			"threshold":                h.config.VAD.EffectiveThreshold(),
			"window_size":              h.config.VAD.WindowSize,
			"min_speech_duration":      h.config.VAD.MinSpeechDuration,
			"min_silence_after_speech": h.config.VAD.MinSilenceAfterSpeech,
		},
		"chunking": map[string]interface{}{
			"min_duration": h.config.Chunking.MinDuration,
			"max_duration": h.config.Chunking.MaxDuration,
			"format":       h.config.Chunking.Format,
		},
		"transcription": map[string]interface{}{
			"provider":           h.config.Transcription.Provider,
			"streaming":          h.config.Transcription.Streaming,
			"timeout":            h.config.Transcription.Timeout,
			"max_retries":        h.config.Transcription.MaxRetries,
			"max_concurrent":     h.config.Transcription.MaxConcurrent,
			"completion_timeout": h.config.Transcription.CompletionTimeout,
			"language":           h.config.Transcription.Language,
		},
		"capture": map[string]interface{}{
			"enabled":      h.config.Capture.Enabled,
			"udp_port":     h.config.Capture.UDPPort,
			"bind_address": h.config.Capture.BindAddress,
			"buffer_size":  h.config.Capture.BufferSize,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	captureStats := h.captureServer.GetStatistics()
	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":    uptime.String(),
		"timestamp": time.Now().UTC(),
		"capture": map[string]interface{}{
			"packets_received":  captureStats.PacketsReceived,
			"packets_processed": captureStats.PacketsProcessed,
			"parse_errors":      captureStats.ParseErrors,
			"queue_size":        captureStats.QueueSize,
			"queue_capacity":    captureStats.QueueCapacity,
		},
		"session":       h.controller.SessionInfo(),
		"vad":           h.controller.VADStats(),
		"transcription": h.controller.DispatcherStats(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "SpeakFlow Dictation Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                      "API documentation",
			"GET /health":                "Service health check",
			"GET /status":                "Current session status",
			"POST /recording/start":      "Start a recording session",
			"POST /recording/stop":       "Stop the recording session",
			"POST /recording/cancel":     "Cancel the recording session",
			"GET /config":                "Get service configuration",
			"GET /stats":                 "Get service statistics",
			"GET /metrics":               "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
