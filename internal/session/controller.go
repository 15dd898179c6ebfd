package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rezkam/SpeakFlow-sub002/internal/audio"
	"github.com/rezkam/SpeakFlow-sub002/internal/config"
	"github.com/rezkam/SpeakFlow-sub002/internal/metrics"
	"github.com/rezkam/SpeakFlow-sub002/internal/transcription"
	"github.com/rezkam/SpeakFlow-sub002/internal/vad"
)

// State represents the recording session state
type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessingFinal
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessingFinal:
		return "processing_final"
	default:
		return "unknown"
	}
}

// SessionInfo is a snapshot of the current session for the status API
type SessionInfo struct {
	State           string    `json:"state"`
	SessionID       string    `json:"session_id,omitempty"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	Streaming       bool      `json:"streaming"`
	VADActive       bool      `json:"vad_active"`
	PendingChunks   int       `json:"pending_chunks"`
	LastTranscript  string    `json:"last_transcript,omitempty"`
}

// Controller owns the recording session lifecycle: idle, recording, and
// processing-final. All session-ending paths converge on a single epoch
// counter; results carrying a stale epoch are dropped, which makes
// cancellation inert against in-flight work.
type Controller struct {
	cfg             *config.Config
	detector        vad.Detector
	chunkTransport  transcription.ChunkTransport
	streamTransport transcription.StreamTransport
	dispatcher      *transcription.Dispatcher
	bridge          *transcription.QueueBridge
	inserter        TextInserter
	banner          BannerPresenter
	sound           SoundPlayer
	metrics         *metrics.Metrics
	logger          *slog.Logger

	mu              sync.Mutex
	state           State
	epoch           uint64
	sessionID       string
	buffer          *audio.Buffer
	vadCarry        []int16
	vadDisabled     bool
	startedAt       time.Time
	stoppedAt       time.Time
	sessionCtx      context.Context
	sessionCancel   context.CancelFunc
	streaming       *LiveStreamingController
	streamHandle    transcription.StreamHandle
	streamDone      chan struct{}
	completionTimer *time.Timer
	errorNotified   bool
	lastTranscript  string
}

// NewController creates a recording controller. Either transport may be
// nil; starting a session requires the one matching the configured mode.
func NewController(
	cfg *config.Config,
	detector vad.Detector,
	chunkTransport transcription.ChunkTransport,
	streamTransport transcription.StreamTransport,
	inserter TextInserter,
	banner BannerPresenter,
	sound SoundPlayer,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Controller {
	c := &Controller{
		cfg:             cfg,
		detector:        detector,
		chunkTransport:  chunkTransport,
		streamTransport: streamTransport,
		bridge:          transcription.NewQueueBridge(),
		inserter:        inserter,
		banner:          banner,
		sound:           sound,
		metrics:         m,
		logger:          logger,
		state:           StateIdle,
	}

	if chunkTransport != nil {
		c.dispatcher = transcription.NewDispatcher(chunkTransport, transcription.DispatcherConfig{
			Timeout:       cfg.Transcription.GetTimeoutDuration(),
			MaxRetries:    cfg.Transcription.MaxRetries,
			MaxConcurrent: cfg.Transcription.MaxConcurrent,
		}, logger)
	}

	return c
}

// StartRecording begins a new session. It fails without a configured
// transcription provider, surfacing exactly one error banner.
func (c *Controller) StartRecording() error {
	c.mu.Lock()

	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("cannot start recording in state %s", c.state)
	}

	if !c.providerConfigured() {
		c.mu.Unlock()
		c.banner.Show("No transcription provider configured", BannerError)
		c.sound.Play(SoundError)
		c.metrics.RecordSessionFailed()
		return fmt.Errorf("no transcription provider configured")
	}

	c.epoch++
	epoch := c.epoch
	c.sessionID = uuid.New().String()
	c.buffer = audio.NewBuffer(c.cfg.Audio.SampleRate)
	c.vadCarry = nil
	c.vadDisabled = !c.detector.IsAvailable()
	c.startedAt = time.Now()
	c.stoppedAt = time.Time{}
	c.errorNotified = false
	c.sessionCtx, c.sessionCancel = context.WithCancel(context.Background())
	c.detector.ResetSession()
	// A fresh bridge per session: a result straggling in from a
	// superseded session can only ever touch its own, dead bridge.
	c.bridge = transcription.NewQueueBridge()
	c.bridge.SetOnAllComplete(func() {
		c.completeSession(epoch)
	})

	if c.cfg.Transcription.Streaming {
		handle, err := c.streamTransport.OpenStream(c.sessionCtx, transcription.StreamConfig{
			SessionID:  c.sessionID,
			SampleRate: c.cfg.Audio.SampleRate,
			Language:   c.cfg.Transcription.Language,
		})
		if err != nil {
			c.sessionCancel()
			c.mu.Unlock()
			c.logger.Error("Failed to open transcription stream",
				slog.String("error", err.Error()))
			c.banner.Show("Could not connect to transcription service", BannerError)
			c.sound.Play(SoundError)
			c.metrics.RecordSessionFailed()
			return fmt.Errorf("failed to open transcription stream: %w", err)
		}

		c.streamHandle = handle
		c.streaming = NewLiveStreamingController(c.inserter, func(err error) {
			c.failSession(epoch, err)
		}, c.logger)
		done := make(chan struct{})
		c.streamDone = done
		sc := c.streaming
		go func() {
			sc.Run(handle.Events())
			close(done)
		}()
	}

	c.state = StateRecording
	sessionID := c.sessionID

	c.mu.Unlock()

	c.logger.Info("Recording started",
		slog.String("session_id", sessionID),
		slog.Bool("streaming", c.cfg.Transcription.Streaming),
		slog.Bool("vad_available", c.detector.IsAvailable()))

	c.metrics.RecordSessionStarted()
	c.sound.Play(SoundStart)
	c.banner.Show("Recording", BannerInfo)

	return nil
}

func (c *Controller) providerConfigured() bool {
	if c.cfg.Transcription.Provider == "" {
		return false
	}
	if c.cfg.Transcription.Streaming {
		return c.streamTransport != nil
	}
	return c.chunkTransport != nil
}

// OnFrames feeds captured audio frames into the active session. Frames
// arriving outside the recording state are dropped.
func (c *Controller) OnFrames(samples []int16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording {
		return
	}

	now := time.Now()
	speaking := c.runVAD(samples, now)
	c.buffer.Append(samples, speaking)

	if c.cfg.Transcription.Streaming {
		if err := c.streamHandle.Send(samples); err != nil {
			c.logger.Warn("Failed to forward frames to stream",
				slog.String("error", err.Error()))
		}
		return
	}

	if c.buffer.Duration() >= c.cfg.Chunking.GetMaxDuration() {
		c.dispatchChunkLocked(false)
	}
}

// runVAD feeds the samples through the detector in window-size strides,
// carrying the remainder to the next call. Returns whether the detector
// currently classifies the input as speech. Single-window failures are
// absorbed; an unsupported-platform error disables VAD for the session.
func (c *Controller) runVAD(samples []int16, now time.Time) bool {
	if c.vadDisabled {
		// Without a usable detector every frame counts as speech so the
		// session still produces chunks.
		return true
	}

	c.vadCarry = append(c.vadCarry, samples...)
	windowSize := c.cfg.VAD.WindowSize
	speechEnded := false

	for len(c.vadCarry) >= windowSize {
		window := c.vadCarry[:windowSize]
		c.vadCarry = c.vadCarry[windowSize:]

		result, err := c.detector.Process(window, now)
		if err != nil {
			if vad.IsUnsupportedPlatform(err) {
				c.vadDisabled = true
				c.vadCarry = nil
				c.logger.Warn("VAD unavailable, continuing without speech detection",
					slog.String("error", err.Error()))
				return true
			}
			c.metrics.RecordVADFailure()
			c.logger.Debug("VAD window failed", slog.String("error", err.Error()))
			continue
		}

		c.metrics.RecordVADWindow(result.IsSpeaking, result.ProcessingTimeMs/1000)
		if result.Event != nil && result.Event.Kind == vad.SpeechEnded {
			speechEnded = true
		}
	}

	if speechEnded && !c.cfg.Transcription.Streaming {
		c.dispatchChunkLocked(false)
	}

	return c.detector.IsSpeaking()
}

// dispatchChunkLocked drains the buffer and dispatches its contents as
// one sequenced chunk. Non-final chunks that are too short or carry no
// speech are discarded. Caller must hold c.mu.
func (c *Controller) dispatchChunkLocked(final bool) {
	duration := c.buffer.Duration()
	if duration == 0 {
		return
	}
	hasSpeech := c.buffer.HasSpeech()

	if !final {
		if duration < c.cfg.Chunking.GetMinDuration() {
			return
		}
		if !hasSpeech {
			c.buffer.TakeAll()
			return
		}
	}

	if final && !hasSpeech && !c.vadDisabled && c.bridge.PendingCount() == 0 {
		// Nothing worth transcribing was ever captured.
		c.buffer.TakeAll()
		return
	}

	samples := c.buffer.TakeAll()
	if len(samples) == 0 {
		return
	}

	seq := c.bridge.NextSequence()
	chunk := &transcription.Chunk{
		SessionID:    c.sessionID,
		Sequence:     seq,
		RequestID:    uuid.New().String(),
		SampleRate:   c.cfg.Audio.SampleRate,
		Duration:     duration,
		Format:       c.cfg.Chunking.Format,
		Language:     c.cfg.Transcription.Language,
		Samples:      samples,
		DispatchedAt: time.Now(),
		IsFinal:      final,
	}

	if c.cfg.Chunking.Format == "wav" {
		payload, err := audio.EncodeWAV(samples, c.cfg.Audio.SampleRate)
		if err != nil {
			c.logger.Error("Failed to encode chunk",
				slog.Int("sequence", seq),
				slog.String("error", err.Error()))
			c.bridge.SubmitResult(seq, "")
			return
		}
		chunk.Payload = payload
	}

	payloadSize := len(chunk.Payload)
	if payloadSize == 0 {
		payloadSize = len(samples) * 2
	}

	epoch := c.epoch
	c.metrics.RecordChunkDispatched(duration.Seconds(), payloadSize)
	c.logger.Debug("Dispatching chunk",
		slog.String("session_id", c.sessionID),
		slog.Int("sequence", seq),
		slog.Float64("duration_sec", duration.Seconds()),
		slog.Bool("final", final))

	c.dispatcher.Dispatch(c.sessionCtx, chunk, func(seq int, text string, err error) {
		c.onChunkResult(epoch, seq, text, err)
	})
}

// onChunkResult records a transcription result and inserts any newly
// contiguous text. Results from a superseded session epoch are dropped.
// The bridge mutation and the insertion happen under the controller
// lock: once the epoch is validated nothing may cancel or restart the
// session until the result has been applied.
func (c *Controller) onChunkResult(epoch uint64, seq int, text string, err error) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}

	var connErr *transcription.ConnectionError
	if errors.As(err, &connErr) {
		c.mu.Unlock()
		c.failSession(epoch, err)
		return
	}

	if err != nil {
		// Resolve the sequence with empty text so the session can still
		// complete; surface the failure once.
		c.bridge.SubmitResult(seq, "")
	} else {
		c.bridge.SubmitResult(seq, text)
	}

	for _, ready := range c.bridge.TakeReady() {
		if ready.Text == "" {
			continue
		}
		if insertErr := c.inserter.Insert(ready.Text, true); insertErr != nil {
			c.logger.Warn("Text insertion failed",
				slog.Int("sequence", ready.Sequence),
				slog.String("error", insertErr.Error()))
		}
	}

	notify := err != nil && !c.errorNotified
	if notify {
		c.errorNotified = true
	}
	finishing := c.state == StateProcessingFinal
	bridge := c.bridge
	c.mu.Unlock()

	if notify {
		c.logger.Error("Transcription error", slog.String("error", err.Error()))
		c.banner.Show("Transcription failed", BannerError)
		c.sound.Play(SoundError)
	}
	if finishing {
		bridge.CheckCompletion()
	}
}

// failSession tears down the session after an unrecoverable
// transcription error: provisional text is discarded, in-flight results
// become inert, and the controller returns to idle. At most one error
// banner and indication per session.
func (c *Controller) failSession(epoch uint64, err error) {
	c.mu.Lock()
	if epoch != c.epoch || c.state == StateIdle {
		c.mu.Unlock()
		return
	}

	c.epoch++
	sessionID := c.sessionID
	duration := time.Since(c.startedAt).Seconds()
	notified := c.errorNotified
	c.errorNotified = true

	if c.completionTimer != nil {
		c.completionTimer.Stop()
		c.completionTimer = nil
	}

	c.buffer.TakeAll()
	c.vadCarry = nil
	c.bridge.Reset()
	c.detector.ResetSession()
	c.sessionCancel()

	streaming := c.streaming
	handle := c.streamHandle
	c.streaming = nil
	c.streamHandle = nil
	c.streamDone = nil
	c.state = StateIdle
	c.mu.Unlock()

	if streaming != nil {
		streaming.Cancel()
	} else {
		c.inserter.Cancel()
	}
	if handle != nil {
		handle.Close()
	}

	c.logger.Error("Session failed",
		slog.String("session_id", sessionID),
		slog.Float64("duration_sec", duration),
		slog.String("error", err.Error()))

	c.metrics.RecordSessionFailed()
	if !notified {
		c.banner.Show("Transcription failed", BannerError)
		c.sound.Play(SoundError)
	}
}

// StopRecording finishes the session: remaining audio is dispatched and
// the controller waits for outstanding results, bounded by the
// completion timeout.
func (c *Controller) StopRecording(reason string) error {
	c.mu.Lock()

	if c.state != StateRecording {
		c.mu.Unlock()
		return fmt.Errorf("cannot stop recording in state %s", c.state)
	}

	c.state = StateProcessingFinal
	c.stoppedAt = time.Now()
	epoch := c.epoch
	timeout := c.cfg.Transcription.GetCompletionTimeout()

	c.logger.Info("Recording stopped",
		slog.String("session_id", c.sessionID),
		slog.String("reason", reason),
		slog.Float64("duration_sec", c.stoppedAt.Sub(c.startedAt).Seconds()))

	if c.cfg.Transcription.Streaming {
		handle := c.streamHandle
		done := c.streamDone
		c.mu.Unlock()

		if err := handle.Finalize(); err != nil {
			c.logger.Warn("Stream finalize failed", slog.String("error", err.Error()))
		}
		go func() {
			select {
			case <-done:
			case <-time.After(timeout):
			}
			c.completeSession(epoch)
		}()
		return nil
	}

	c.dispatchChunkLocked(true)
	bridge := c.bridge
	c.completionTimer = time.AfterFunc(timeout, func() {
		bridge.ForceCompletion()
	})
	c.mu.Unlock()

	// Everything may already be resolved.
	bridge.CheckCompletion()
	return nil
}

// completeSession finishes a stopping session exactly once per epoch
func (c *Controller) completeSession(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || c.state != StateProcessingFinal {
		c.mu.Unlock()
		return
	}

	if c.completionTimer != nil {
		c.completionTimer.Stop()
		c.completionTimer = nil
	}

	var transcript string
	if c.cfg.Transcription.Streaming {
		transcript = c.streaming.Transcript()
		c.streamHandle.Close()
		c.streamHandle = nil
		c.streaming = nil
		c.streamDone = nil
	} else {
		transcript = c.bridge.Transcript()
	}

	c.lastTranscript = transcript
	c.sessionCancel()
	duration := c.stoppedAt.Sub(c.startedAt).Seconds()
	latency := time.Since(c.stoppedAt).Seconds()
	sessionID := c.sessionID
	notified := c.errorNotified
	c.epoch++
	c.state = StateIdle
	c.mu.Unlock()

	c.logger.Info("Session completed",
		slog.String("session_id", sessionID),
		slog.Float64("duration_sec", duration),
		slog.Float64("completion_latency_sec", latency),
		slog.Int("transcript_len", len(transcript)))

	c.metrics.RecordSessionCompleted(duration, latency)
	if notified {
		// The error indication already played for this session; a
		// success cue on top of it would be misleading.
		return
	}
	c.sound.Play(SoundStop)
	c.banner.Show("Done", BannerInfo)
}

// CancelRecording discards the session: buffered audio, provisional
// text, and any in-flight transcription results are all dropped.
func (c *Controller) CancelRecording() error {
	c.mu.Lock()

	if c.state == StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("no active recording to cancel")
	}

	// Bumping the epoch makes every in-flight callback a no-op.
	c.epoch++
	sessionID := c.sessionID
	duration := time.Since(c.startedAt).Seconds()

	if c.completionTimer != nil {
		c.completionTimer.Stop()
		c.completionTimer = nil
	}

	c.buffer.TakeAll()
	c.vadCarry = nil
	c.bridge.Reset()
	c.detector.ResetSession()
	c.sessionCancel()

	streaming := c.streaming
	handle := c.streamHandle
	c.streaming = nil
	c.streamHandle = nil
	c.streamDone = nil
	c.state = StateIdle
	c.mu.Unlock()

	if streaming != nil {
		streaming.Cancel()
	}
	if handle != nil {
		handle.Close()
	}
	c.inserter.Cancel()

	c.logger.Info("Recording cancelled",
		slog.String("session_id", sessionID),
		slog.Float64("duration_sec", duration))

	c.metrics.RecordSessionCancelled(duration)
	c.sound.Play(SoundCancel)
	c.banner.Show("Cancelled", BannerInfo)

	return nil
}

// OnEscape cancels the active session. Escape never stops a recording;
// stop is an explicit, separate action.
func (c *Controller) OnEscape() {
	c.mu.Lock()
	idle := c.state == StateIdle
	c.mu.Unlock()

	if idle {
		return
	}
	if err := c.CancelRecording(); err != nil {
		c.logger.Debug("Escape ignored", slog.String("error", err.Error()))
	}
}

// State returns the current session state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionInfo returns a snapshot of the current session for the status API
func (c *Controller) SessionInfo() SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := SessionInfo{
		State:          c.state.String(),
		Streaming:      c.cfg.Transcription.Streaming,
		VADActive:      !c.vadDisabled && c.detector.IsAvailable(),
		PendingChunks:  c.bridge.PendingCount(),
		LastTranscript: c.lastTranscript,
	}

	if c.state != StateIdle {
		info.SessionID = c.sessionID
		info.StartedAt = c.startedAt
		info.DurationSeconds = time.Since(c.startedAt).Seconds()
	}

	return info
}

// VADStats returns detector statistics for the status API
func (c *Controller) VADStats() vad.DetectorStats {
	return c.detector.GetStats()
}

// DispatcherStats returns dispatcher statistics for the status API
func (c *Controller) DispatcherStats() transcription.DispatcherStats {
	if c.dispatcher == nil {
		return transcription.DispatcherStats{}
	}
	return c.dispatcher.GetStats()
}

// Close cancels any active session and waits for in-flight dispatches
func (c *Controller) Close() error {
	c.mu.Lock()
	active := c.state != StateIdle
	c.mu.Unlock()

	if active {
		if err := c.CancelRecording(); err != nil {
			c.logger.Warn("Failed to cancel recording on close",
				slog.String("error", err.Error()))
		}
	}

	if c.dispatcher != nil {
		return c.dispatcher.Close()
	}
	return nil
}
