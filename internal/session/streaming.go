package session

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/rezkam/SpeakFlow-sub002/internal/transcription"
)

// LiveStreamingController consumes streaming transcription events and
// drives provisional and committed text insertion. Interim results
// replace the previous provisional text; final results are committed
// and appended to the session transcript.
type LiveStreamingController struct {
	inserter TextInserter
	logger   *slog.Logger

	// onError is invoked at most once for the lifetime of the controller
	onError func(err error)

	mu        sync.Mutex
	finals    []string
	cancelled bool
	errFired  bool

	// Statistics
	interimEvents int64
	finalEvents   int64
	insertErrors  int64
}

// StreamingStats contains statistics about a streaming session
type StreamingStats struct {
	InterimEvents int64  `json:"interim_events"`
	FinalEvents   int64  `json:"final_events"`
	InsertErrors  int64  `json:"insert_errors"`
	Transcript    string `json:"transcript"`
	Cancelled     bool   `json:"cancelled"`
}

// NewLiveStreamingController creates a streaming controller
func NewLiveStreamingController(inserter TextInserter, onError func(err error), logger *slog.Logger) *LiveStreamingController {
	return &LiveStreamingController{
		inserter: inserter,
		onError:  onError,
		logger:   logger,
	}
}

// Run consumes events from the channel until it is closed.
// Intended to run on its own goroutine; event handling itself is
// synchronous so results apply in arrival order.
func (c *LiveStreamingController) Run(events <-chan transcription.StreamEvent) {
	for event := range events {
		c.HandleEvent(event)
	}
}

// HandleEvent applies a single stream event. Events arriving after
// Cancel or after an error event are discarded.
func (c *LiveStreamingController) HandleEvent(event transcription.StreamEvent) {
	c.mu.Lock()
	if c.cancelled || c.errFired {
		c.mu.Unlock()
		return
	}

	switch event.Kind {
	case transcription.EventInterim:
		c.interimEvents++
		text := event.Result.Transcript
		c.mu.Unlock()
		if text == "" {
			return
		}
		if err := c.inserter.Insert(text, false); err != nil {
			c.recordInsertError(err)
		}

	case transcription.EventFinal:
		c.finalEvents++
		text := strings.TrimSpace(event.Result.Transcript)
		if text != "" {
			c.finals = append(c.finals, text)
		}
		c.mu.Unlock()
		if text == "" {
			return
		}
		if err := c.inserter.Insert(text, true); err != nil {
			c.recordInsertError(err)
		}

	case transcription.EventError:
		err := event.Err
		c.errFired = true
		c.mu.Unlock()
		c.logger.Error("Streaming transcription error", slog.String("error", err.Error()))
		if c.onError != nil {
			c.onError(err)
		}

	default:
		c.mu.Unlock()
	}
}

func (c *LiveStreamingController) recordInsertError(err error) {
	c.mu.Lock()
	c.insertErrors++
	c.mu.Unlock()
	c.logger.Warn("Text insertion failed", slog.String("error", err.Error()))
}

// Cancel discards provisional text and suppresses all subsequent events
func (c *LiveStreamingController) Cancel() {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		return
	}
	c.cancelled = true
	c.finals = nil
	c.mu.Unlock()

	c.inserter.Cancel()
}

// Transcript returns the committed transcript accumulated so far
func (c *LiveStreamingController) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.finals, " ")
}

// GetStats returns statistics for the streaming session
func (c *LiveStreamingController) GetStats() StreamingStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return StreamingStats{
		InterimEvents: c.interimEvents,
		FinalEvents:   c.finalEvents,
		InsertErrors:  c.insertErrors,
		Transcript:    strings.Join(c.finals, " "),
		Cancelled:     c.cancelled,
	}
}
