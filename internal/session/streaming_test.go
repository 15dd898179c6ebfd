package session

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rezkam/SpeakFlow-sub002/internal/transcription"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingInserter captures every insert for assertions
type recordingInserter struct {
	mu        sync.Mutex
	inserts   []insertCall
	cancels   int
	failWith  error
}

type insertCall struct {
	text  string
	final bool
}

func (r *recordingInserter) Insert(text string, final bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.inserts = append(r.inserts, insertCall{text: text, final: final})
	return nil
}

func (r *recordingInserter) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels++
}

func (r *recordingInserter) calls() []insertCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]insertCall, len(r.inserts))
	copy(out, r.inserts)
	return out
}

func (r *recordingInserter) cancelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancels
}

func TestStreamingInterimAndFinal(t *testing.T) {
	inserter := &recordingInserter{}
	c := NewLiveStreamingController(inserter, nil, testLogger())

	c.HandleEvent(transcription.InterimEvent(transcription.Result{Transcript: "hel"}))
	c.HandleEvent(transcription.InterimEvent(transcription.Result{Transcript: "hello"}))
	c.HandleEvent(transcription.FinalEvent(transcription.Result{Transcript: "hello world"}))

	calls := inserter.calls()
	if len(calls) != 3 {
		t.Fatalf("Expected 3 inserts, got %d", len(calls))
	}
	if calls[0].final || calls[1].final {
		t.Error("Expected interim inserts to be provisional")
	}
	if !calls[2].final {
		t.Error("Expected final insert to be committed")
	}
	if calls[2].text != "hello world" {
		t.Errorf("Expected final text 'hello world', got '%s'", calls[2].text)
	}

	if got := c.Transcript(); got != "hello world" {
		t.Errorf("Expected transcript 'hello world', got '%s'", got)
	}
}

func TestStreamingAccumulatesFinals(t *testing.T) {
	inserter := &recordingInserter{}
	c := NewLiveStreamingController(inserter, nil, testLogger())

	c.HandleEvent(transcription.FinalEvent(transcription.Result{Transcript: "first part"}))
	c.HandleEvent(transcription.FinalEvent(transcription.Result{Transcript: "second part"}))
	c.HandleEvent(transcription.FinalEvent(transcription.Result{Transcript: "  "}))

	if got := c.Transcript(); got != "first part second part" {
		t.Errorf("Expected joined transcript, got '%s'", got)
	}

	stats := c.GetStats()
	if stats.FinalEvents != 3 {
		t.Errorf("Expected 3 final events counted, got %d", stats.FinalEvents)
	}
}

func TestStreamingErrorFiresOnce(t *testing.T) {
	inserter := &recordingInserter{}
	var errCount int
	c := NewLiveStreamingController(inserter, func(err error) { errCount++ }, testLogger())

	c.HandleEvent(transcription.ErrorEvent(errors.New("connection lost")))
	c.HandleEvent(transcription.ErrorEvent(errors.New("still lost")))

	if errCount != 1 {
		t.Errorf("Expected onError to fire once, got %d", errCount)
	}
}

func TestStreamingEventsAfterErrorDiscarded(t *testing.T) {
	inserter := &recordingInserter{}
	var errCount int
	c := NewLiveStreamingController(inserter, func(err error) { errCount++ }, testLogger())

	c.HandleEvent(transcription.FinalEvent(transcription.Result{Transcript: "before"}))
	c.HandleEvent(transcription.ErrorEvent(errors.New("stream torn down")))
	c.HandleEvent(transcription.FinalEvent(transcription.Result{Transcript: "after"}))
	c.HandleEvent(transcription.InterimEvent(transcription.Result{Transcript: "after interim"}))

	if errCount != 1 {
		t.Errorf("Expected onError to fire once, got %d", errCount)
	}
	if calls := inserter.calls(); len(calls) != 1 {
		t.Errorf("Expected no inserts after the error, got %d total", len(calls))
	}
	if got := c.Transcript(); got != "before" {
		t.Errorf("Expected transcript 'before', got '%s'", got)
	}
}

func TestStreamingCancelSupersedesEvents(t *testing.T) {
	inserter := &recordingInserter{}
	c := NewLiveStreamingController(inserter, nil, testLogger())

	c.HandleEvent(transcription.FinalEvent(transcription.Result{Transcript: "kept until cancel"}))
	c.Cancel()

	if inserter.cancelCount() != 1 {
		t.Errorf("Expected 1 inserter cancel, got %d", inserter.cancelCount())
	}
	if got := c.Transcript(); got != "" {
		t.Errorf("Expected empty transcript after cancel, got '%s'", got)
	}

	// Events after cancel are inert
	c.HandleEvent(transcription.FinalEvent(transcription.Result{Transcript: "late"}))
	c.HandleEvent(transcription.InterimEvent(transcription.Result{Transcript: "late interim"}))

	calls := inserter.calls()
	if len(calls) != 1 {
		t.Errorf("Expected no inserts after cancel, got %d total", len(calls))
	}

	// Cancel is idempotent
	c.Cancel()
	if inserter.cancelCount() != 1 {
		t.Errorf("Expected repeated cancel to reach the inserter once, got %d", inserter.cancelCount())
	}
}

func TestStreamingRunConsumesChannel(t *testing.T) {
	inserter := &recordingInserter{}
	c := NewLiveStreamingController(inserter, nil, testLogger())

	events := make(chan transcription.StreamEvent, 4)
	events <- transcription.InterimEvent(transcription.Result{Transcript: "a"})
	events <- transcription.FinalEvent(transcription.Result{Transcript: "a b"})
	close(events)

	done := make(chan struct{})
	go func() {
		c.Run(events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after channel close")
	}

	if got := c.Transcript(); got != "a b" {
		t.Errorf("Expected transcript 'a b', got '%s'", got)
	}
}

func TestStreamingInsertFailureCounted(t *testing.T) {
	inserter := &recordingInserter{failWith: errors.New("target gone")}
	c := NewLiveStreamingController(inserter, nil, testLogger())

	c.HandleEvent(transcription.FinalEvent(transcription.Result{Transcript: "text"}))

	stats := c.GetStats()
	if stats.InsertErrors != 1 {
		t.Errorf("Expected 1 insert error, got %d", stats.InsertErrors)
	}
	// The transcript still accumulates; insertion failure is not data loss
	if stats.Transcript != "text" {
		t.Errorf("Expected transcript 'text', got '%s'", stats.Transcript)
	}
}
