package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// failingTransport fails a fixed number of times before succeeding
type failingTransport struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *failingTransport) Transcribe(ctx context.Context, chunk *Chunk) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("backend unavailable")
	}
	return fmt.Sprintf("text %d", chunk.Sequence), nil
}

func TestDispatchDeliversResult(t *testing.T) {
	d := NewDispatcher(NewStubTransport(0), DispatcherConfig{
		Timeout:       time.Second,
		MaxRetries:    0,
		MaxConcurrent: 2,
	}, testLogger())

	results := make(chan string, 1)
	d.Dispatch(context.Background(), &Chunk{Sequence: 0, Duration: time.Second}, func(seq int, text string, err error) {
		if err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
		if seq != 0 {
			t.Errorf("Expected sequence 0, got %d", seq)
		}
		results <- text
	})

	select {
	case text := <-results:
		if text == "" {
			t.Error("Expected non-empty transcript")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for dispatch result")
	}

	if err := d.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	stats := d.GetStats()
	if stats.TotalRequests != 1 || stats.SuccessRequests != 1 {
		t.Errorf("Expected 1/1 requests, got %d/%d", stats.SuccessRequests, stats.TotalRequests)
	}
}

func TestDispatchRetriesTransientFailures(t *testing.T) {
	transport := &failingTransport{failures: 2}
	d := NewDispatcher(transport, DispatcherConfig{
		Timeout:       time.Second,
		MaxRetries:    3,
		MaxConcurrent: 1,
	}, testLogger())

	results := make(chan error, 1)
	d.Dispatch(context.Background(), &Chunk{Sequence: 3}, func(seq int, text string, err error) {
		results <- err
	})

	select {
	case err := <-results:
		if err != nil {
			t.Errorf("Expected eventual success after retries, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for retried dispatch")
	}

	stats := d.GetStats()
	if stats.TotalRetries != 2 {
		t.Errorf("Expected 2 retries, got %d", stats.TotalRetries)
	}
}

func TestDispatchReportsFinalFailure(t *testing.T) {
	transport := &failingTransport{failures: 100}
	d := NewDispatcher(transport, DispatcherConfig{
		Timeout:       time.Second,
		MaxRetries:    1,
		MaxConcurrent: 1,
	}, testLogger())

	results := make(chan error, 1)
	d.Dispatch(context.Background(), &Chunk{Sequence: 0}, func(seq int, text string, err error) {
		results <- err
	})

	select {
	case err := <-results:
		if err == nil {
			t.Error("Expected error after exhausting retries")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for failed dispatch")
	}

	stats := d.GetStats()
	if stats.FailedRequests != 1 {
		t.Errorf("Expected 1 failed request, got %d", stats.FailedRequests)
	}
}

func TestDispatchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(NewStubTransport(time.Minute), DispatcherConfig{
		Timeout:       time.Second,
		MaxConcurrent: 1,
	}, testLogger())

	results := make(chan error, 1)
	d.Dispatch(ctx, &Chunk{Sequence: 0}, func(seq int, text string, err error) {
		results <- err
	})

	select {
	case err := <-results:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for cancelled dispatch")
	}
}

func TestStubStreamEmitsFinal(t *testing.T) {
	stub := NewStubTransport(0)

	handle, err := stub.OpenStream(context.Background(), StreamConfig{
		SessionID:  "s1",
		SampleRate: 16000,
	})
	if err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}

	// Two seconds of audio should produce at least one interim event
	for i := 0; i < 4; i++ {
		if err := handle.Send(make([]int16, 8000)); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	if err := handle.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	var interim, final int
	for event := range handle.Events() {
		switch event.Kind {
		case EventInterim:
			interim++
		case EventFinal:
			final++
			if !event.Result.IsFinal {
				t.Error("Expected final event to carry IsFinal")
			}
			if event.Result.SpeechFinal == nil || !*event.Result.SpeechFinal {
				t.Error("Expected final event to carry SpeechFinal")
			}
		}
	}

	if interim == 0 {
		t.Error("Expected at least one interim event")
	}
	if final != 1 {
		t.Errorf("Expected exactly 1 final event, got %d", final)
	}

	// Sends after finalize are rejected
	if err := handle.Send(make([]int16, 100)); err == nil {
		t.Error("Expected error sending to a finalized stream")
	}
}

func TestStubStreamInvalidConfig(t *testing.T) {
	stub := NewStubTransport(0)

	_, err := stub.OpenStream(context.Background(), StreamConfig{SampleRate: 0})
	if err == nil {
		t.Fatal("Expected error for invalid sample rate")
	}

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("Expected ConnectionError, got %T", err)
	}
}
