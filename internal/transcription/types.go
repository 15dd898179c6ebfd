package transcription

import (
	"context"
	"fmt"
	"time"
)

// Chunk is a bounded unit of recorded audio dispatched for transcription
// as one request. Sequence numbers are 0-based, strictly increasing per
// session, assigned at dispatch time and never reused within a session.
type Chunk struct {
	SessionID  string        `json:"session_id"`
	Sequence   int           `json:"sequence"`
	RequestID  string        `json:"request_id"`
	SampleRate int           `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`
	Format     string        `json:"format"` // "raw" or "wav"
	Language   string        `json:"language,omitempty"`
	Samples    []int16       `json:"-"`
	Payload    []byte        `json:"-"` // encoded audio sent to the transport

	DispatchedAt time.Time `json:"dispatched_at"`
	IsFinal      bool      `json:"is_final"` // last chunk of a stopping session
}

// Result is one transcription result from a transport. SpeechFinal is
// set only by streaming backends that distinguish endpoint detection
// from result finality.
type Result struct {
	Transcript  string `json:"transcript"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal *bool  `json:"speech_final,omitempty"`
}

// ChunkTransport sends one chunk and returns its transcript. Duplicate
// or out-of-order result delivery is tolerated by the QueueBridge.
type ChunkTransport interface {
	Transcribe(ctx context.Context, chunk *Chunk) (string, error)
}

// StreamEventKind identifies a streaming session event
type StreamEventKind int

const (
	EventInterim StreamEventKind = iota
	EventFinal
	EventError
)

// String returns a human-readable event kind
func (k StreamEventKind) String() string {
	switch k {
	case EventInterim:
		return "interim"
	case EventFinal:
		return "final"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// StreamEvent is the tagged variant delivered by a streaming transport:
// interim carries a replaceable partial result, final carries a committed
// result, error terminates the session.
type StreamEvent struct {
	Kind   StreamEventKind
	Result Result
	Err    error
}

// InterimEvent builds an interim stream event
func InterimEvent(result Result) StreamEvent {
	return StreamEvent{Kind: EventInterim, Result: result}
}

// FinalEvent builds a final stream event
func FinalEvent(result Result) StreamEvent {
	result.IsFinal = true
	return StreamEvent{Kind: EventFinal, Result: result}
}

// ErrorEvent builds an error stream event
func ErrorEvent(err error) StreamEvent {
	return StreamEvent{Kind: EventError, Err: err}
}

// StreamConfig describes one streaming session
type StreamConfig struct {
	SessionID  string
	SampleRate int
	Language   string
}

// StreamHandle is one live streaming session. Events are delivered on a
// single channel to a single consumer; the channel is closed when the
// backend finishes or the handle is closed.
type StreamHandle interface {
	Send(samples []int16) error
	Finalize() error
	Events() <-chan StreamEvent
	Close() error
}

// StreamTransport opens streaming sessions against a backend that emits
// incremental results rather than one-shot chunk responses.
type StreamTransport interface {
	OpenStream(ctx context.Context, cfg StreamConfig) (StreamHandle, error)
}

// ConnectionError is a transport-level failure that invalidates the
// current session. It terminates the session but not the process.
type ConnectionError struct {
	Provider string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("transcription: %s connection failed: %v", e.Provider, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
