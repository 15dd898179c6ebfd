package transcription

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestNextSequenceDense(t *testing.T) {
	q := NewQueueBridge()

	for want := 0; want < 5; want++ {
		if got := q.NextSequence(); got != want {
			t.Errorf("Expected sequence %d, got %d", want, got)
		}
	}

	if got := q.PendingCount(); got != 5 {
		t.Errorf("Expected 5 pending chunks, got %d", got)
	}
}

func TestSubmitResultIdempotent(t *testing.T) {
	q := NewQueueBridge()

	seq := q.NextSequence()
	q.SubmitResult(seq, "hello")

	if got := q.PendingCount(); got != 0 {
		t.Errorf("Expected 0 pending after submit, got %d", got)
	}

	// Resubmitting a resolved sequence must not change the stored text
	q.SubmitResult(seq, "changed")
	if got := q.Transcript(); got != "hello" {
		t.Errorf("Expected transcript 'hello' after duplicate submit, got '%s'", got)
	}

	// Unknown sequences are ignored entirely
	q.SubmitResult(42, "ghost")
	if got := q.Transcript(); got != "hello" {
		t.Errorf("Expected transcript 'hello' after unknown submit, got '%s'", got)
	}
}

func TestCheckCompletionRequiresEmptyPending(t *testing.T) {
	q := NewQueueBridge()

	fired := 0
	q.SetOnAllComplete(func() { fired++ })

	seq0 := q.NextSequence()
	seq1 := q.NextSequence()
	q.SubmitResult(seq0, "one")

	if q.CheckCompletion() {
		t.Error("Expected CheckCompletion to return false with pending chunks")
	}
	if fired != 0 {
		t.Errorf("Expected no completion callback, got %d", fired)
	}

	q.SubmitResult(seq1, "two")
	if !q.CheckCompletion() {
		t.Error("Expected CheckCompletion to return true with nothing pending")
	}
	if fired != 1 {
		t.Errorf("Expected 1 completion callback, got %d", fired)
	}

	// Completion is one-shot until reset
	if q.CheckCompletion() {
		t.Error("Expected second CheckCompletion to return false")
	}
	if fired != 1 {
		t.Errorf("Expected callback to stay at 1, got %d", fired)
	}
}

func TestCheckCompletionConcurrent(t *testing.T) {
	q := NewQueueBridge()

	var fired int64
	q.SetOnAllComplete(func() { atomic.AddInt64(&fired, 1) })

	seq := q.NextSequence()
	q.SubmitResult(seq, "done")

	var wg sync.WaitGroup
	var trueCount int64
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q.CheckCompletion() {
				atomic.AddInt64(&trueCount, 1)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&trueCount); got != 1 {
		t.Errorf("Expected exactly 1 CheckCompletion winner, got %d", got)
	}
	if got := atomic.LoadInt64(&fired); got != 1 {
		t.Errorf("Expected exactly 1 callback invocation, got %d", got)
	}
}

func TestForceCompletion(t *testing.T) {
	q := NewQueueBridge()

	fired := 0
	q.SetOnAllComplete(func() { fired++ })

	q.NextSequence() // stays pending

	if !q.ForceCompletion() {
		t.Error("Expected ForceCompletion to fire despite pending chunks")
	}
	if fired != 1 {
		t.Errorf("Expected 1 completion callback, got %d", fired)
	}

	// The one-shot flag is shared with CheckCompletion
	if q.CheckCompletion() {
		t.Error("Expected CheckCompletion to return false after forced completion")
	}
	if q.ForceCompletion() {
		t.Error("Expected second ForceCompletion to return false")
	}
	if fired != 1 {
		t.Errorf("Expected callback to stay at 1, got %d", fired)
	}
}

func TestTakeReadyContiguousPrefix(t *testing.T) {
	q := NewQueueBridge()

	seq0 := q.NextSequence()
	seq1 := q.NextSequence()
	seq2 := q.NextSequence()

	// Out-of-order arrival: seq1 resolves before seq0
	q.SubmitResult(seq1, "world")

	if ready := q.TakeReady(); len(ready) != 0 {
		t.Errorf("Expected no ready results before seq0 resolves, got %d", len(ready))
	}

	q.SubmitResult(seq0, "hello")

	ready := q.TakeReady()
	if len(ready) != 2 {
		t.Fatalf("Expected 2 ready results, got %d", len(ready))
	}
	if ready[0].Sequence != seq0 || ready[0].Text != "hello" {
		t.Errorf("Expected {0, hello}, got {%d, %s}", ready[0].Sequence, ready[0].Text)
	}
	if ready[1].Sequence != seq1 || ready[1].Text != "world" {
		t.Errorf("Expected {1, world}, got {%d, %s}", ready[1].Sequence, ready[1].Text)
	}

	// Each result is handed out once
	if again := q.TakeReady(); len(again) != 0 {
		t.Errorf("Expected no results on second take, got %d", len(again))
	}

	q.SubmitResult(seq2, "again")
	ready = q.TakeReady()
	if len(ready) != 1 || ready[0].Sequence != seq2 {
		t.Fatalf("Expected only seq2 on third take, got %+v", ready)
	}
}

func TestTranscriptJoinsInOrder(t *testing.T) {
	q := NewQueueBridge()

	seq0 := q.NextSequence()
	seq1 := q.NextSequence()
	seq2 := q.NextSequence()

	// Empty results are skipped, order follows sequence not arrival
	q.SubmitResult(seq2, "chunk")
	q.SubmitResult(seq0, "first")
	q.SubmitResult(seq1, "")

	if got := q.Transcript(); got != "first chunk" {
		t.Errorf("Expected transcript 'first chunk', got '%s'", got)
	}
}

func TestResetRestartsSession(t *testing.T) {
	q := NewQueueBridge()

	fired := 0
	q.SetOnAllComplete(func() { fired++ })

	seq := q.NextSequence()
	q.SubmitResult(seq, "old")
	q.CheckCompletion()

	q.Reset()

	if got := q.NextSequence(); got != 0 {
		t.Errorf("Expected sequence numbering to restart at 0, got %d", got)
	}
	if got := q.Transcript(); got != "" {
		t.Errorf("Expected empty transcript after reset, got '%s'", got)
	}

	// Completion can fire again for the new session
	q.SubmitResult(0, "new")
	if !q.CheckCompletion() {
		t.Error("Expected CheckCompletion to fire after reset")
	}
	if fired != 2 {
		t.Errorf("Expected 2 callback invocations across sessions, got %d", fired)
	}
}

func TestConcurrentSubmitAndComplete(t *testing.T) {
	q := NewQueueBridge()

	var fired int64
	q.SetOnAllComplete(func() { atomic.AddInt64(&fired, 1) })

	const chunks = 20
	seqs := make([]int, chunks)
	for i := range seqs {
		seqs[i] = q.NextSequence()
	}

	var wg sync.WaitGroup
	for _, seq := range seqs {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			q.SubmitResult(seq, "x")
			q.CheckCompletion()
		}(seq)
	}
	wg.Wait()

	if got := atomic.LoadInt64(&fired); got != 1 {
		t.Errorf("Expected exactly 1 completion across %d racing submitters, got %d", chunks, got)
	}
	if got := q.PendingCount(); got != 0 {
		t.Errorf("Expected 0 pending, got %d", got)
	}
}
