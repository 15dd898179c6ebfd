package transcription

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StubTransport produces deterministic transcripts without a speech
// backend. It implements both ChunkTransport and StreamTransport and is
// selected with provider "stub" for development and tests.
type StubTransport struct {
	delay time.Duration

	mu          sync.Mutex
	totalChunks int
}

// NewStubTransport returns a stub transport. A non-zero delay simulates
// backend latency per request.
func NewStubTransport(delay time.Duration) *StubTransport {
	return &StubTransport{delay: delay}
}

// Transcribe implements ChunkTransport with a placeholder transcript
func (s *StubTransport) Transcribe(ctx context.Context, chunk *Chunk) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	s.mu.Lock()
	s.totalChunks++
	s.mu.Unlock()

	return fmt.Sprintf("[stub] chunk %d, %.2fs of audio", chunk.Sequence, chunk.Duration.Seconds()), nil
}

// OpenStream implements StreamTransport with an in-process session that
// echoes interim progress and a final summary.
func (s *StubTransport) OpenStream(ctx context.Context, cfg StreamConfig) (StreamHandle, error) {
	if cfg.SampleRate <= 0 {
		return nil, &ConnectionError{Provider: "stub", Err: fmt.Errorf("invalid sample rate %d", cfg.SampleRate)}
	}

	return &stubStream{
		sampleRate: cfg.SampleRate,
		delay:      s.delay,
		events:     make(chan StreamEvent, 16),
	}, nil
}

type stubStream struct {
	sampleRate int
	delay      time.Duration
	events     chan StreamEvent

	mu           sync.Mutex
	totalSamples int
	closed       bool
}

func (st *stubStream) Send(samples []int16) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		return fmt.Errorf("stub stream closed")
	}

	st.totalSamples += len(samples)

	// Emit an interim result roughly once per second of audio
	if st.totalSamples > 0 && st.totalSamples%st.sampleRate < len(samples) {
		seconds := float64(st.totalSamples) / float64(st.sampleRate)
		select {
		case st.events <- InterimEvent(Result{Transcript: fmt.Sprintf("[stub] hearing %.1fs", seconds)}):
		default:
			// Consumer lagging; interim results are replaceable anyway
		}
	}

	return nil
}

func (st *stubStream) Finalize() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		return nil
	}
	st.closed = true

	seconds := float64(st.totalSamples) / float64(st.sampleRate)
	speechFinal := true
	st.events <- FinalEvent(Result{
		Transcript:  fmt.Sprintf("[stub] transcribed %.2fs of audio", seconds),
		SpeechFinal: &speechFinal,
	})
	close(st.events)

	return nil
}

func (st *stubStream) Events() <-chan StreamEvent {
	return st.events
}

func (st *stubStream) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		return nil
	}
	st.closed = true
	close(st.events)

	return nil
}
