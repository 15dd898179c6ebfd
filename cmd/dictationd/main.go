package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rezkam/SpeakFlow-sub002/internal/config"
	"github.com/rezkam/SpeakFlow-sub002/internal/metrics"
	"github.com/rezkam/SpeakFlow-sub002/internal/server"
	"github.com/rezkam/SpeakFlow-sub002/internal/session"
	"github.com/rezkam/SpeakFlow-sub002/internal/transcription"
	"github.com/rezkam/SpeakFlow-sub002/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "speakflow-dictation"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration, falling back to defaults when no file exists
	var cfg *config.Config
	if _, err := os.Stat(*configPath); err == nil {
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = config.Default()
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("udp_port", cfg.Capture.UDPPort),
		slog.String("bind_address", cfg.Capture.BindAddress),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Bool("vad_enabled", cfg.VAD.Enabled),
		slog.Float64("vad_threshold", cfg.VAD.EffectiveThreshold()),
		slog.Float64("chunk_min_duration", cfg.Chunking.MinDuration),
		slog.Float64("chunk_max_duration", cfg.Chunking.MaxDuration),
		slog.String("provider", cfg.Transcription.Provider),
		slog.Bool("streaming", cfg.Transcription.Streaming),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize the speech detector
	var detector vad.Detector
	if cfg.VAD.Enabled {
		detector = vad.NewDetector(vad.Config{
			Threshold:             cfg.VAD.EffectiveThreshold(),
			SampleRate:            cfg.Audio.SampleRate,
			MinSpeechDuration:     cfg.VAD.GetMinSpeechDuration(),
			MinSilenceAfterSpeech: cfg.VAD.GetMinSilenceAfterSpeech(),
			MinSpeechRatio:        cfg.VAD.MinSpeechRatio,
			MinTotalSpeech:        cfg.VAD.GetMinTotalSpeech(),
		})
	} else {
		detector = vad.NewDisabled("disabled by configuration")
	}
	if err := detector.Initialize(); err != nil {
		logger.Warn("Speech detector unavailable, recording without VAD",
			slog.String("error", err.Error()))
	}

	// Select the transcription transport by provider name
	chunkTransport, streamTransport, err := buildTransports(cfg.Transcription)
	if err != nil {
		logger.Error("Failed to configure transcription provider", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if chunkTransport == nil && streamTransport == nil {
		logger.Warn("No transcription provider configured, recording will be refused")
	}

	// Initialize the recording controller with logging collaborators
	controller := session.NewController(
		cfg,
		detector,
		chunkTransport,
		streamTransport,
		session.NewLogInserter(logger),
		session.NewLogBanner(logger),
		session.NewLogSound(logger),
		appMetrics,
		logger,
	)
	logger.Info("Recording controller initialized",
		slog.Bool("vad_available", detector.IsAvailable()),
		slog.String("provider", cfg.Transcription.Provider),
	)

	// Initialize capture server
	captureServer := server.NewCaptureServer(&cfg.Capture, controller, appMetrics, logger)
	logger.Info("Capture server initialized")

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, controller, captureServer, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start capture server
	if cfg.Capture.Enabled {
		if err := captureServer.Start(); err != nil {
			logger.Error("Failed to start capture server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("udp_address", fmt.Sprintf("%s:%d", cfg.Capture.BindAddress, cfg.Capture.UDPPort)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop capture server (stop accepting new packets)
	if cfg.Capture.Enabled {
		if err := captureServer.Stop(); err != nil {
			logger.Error("Error stopping capture server", slog.String("error", err.Error()))
		}
	}

	// Stop the controller (cancel any active session, drain dispatches)
	if err := controller.Close(); err != nil {
		logger.Error("Error stopping recording controller", slog.String("error", err.Error()))
	}

	// Get final statistics
	stats := captureServer.GetStatistics()
	logger.Info("Final server statistics",
		slog.Uint64("packets_received", stats.PacketsReceived),
		slog.Uint64("packets_processed", stats.PacketsProcessed),
		slog.Uint64("parse_errors", stats.ParseErrors),
	)

	logger.Info("Service stopped")
}

// buildTransports resolves the configured provider name. An empty
// provider is valid and yields no transports.
func buildTransports(cfg config.TranscriptionConfig) (transcription.ChunkTransport, transcription.StreamTransport, error) {
	switch cfg.Provider {
	case "":
		return nil, nil, nil
	case "stub":
		stub := transcription.NewStubTransport(50 * time.Millisecond)
		return stub, stub, nil
	default:
		return nil, nil, fmt.Errorf("unknown transcription provider: %s", cfg.Provider)
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
