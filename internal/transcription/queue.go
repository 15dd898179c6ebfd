package transcription

import (
	"strings"
	"sync"
)

// QueueBridge tracks the dispatched chunks of one session and makes
// "all chunks of this session are done" a fact that becomes true exactly
// once, observable by any number of racing callers. Sequence numbers are
// dense and contiguous from 0; results may arrive out of order or more
// than once.
type QueueBridge struct {
	next      int
	pending   map[int]bool
	results   map[int]string
	delivered int // next sequence to hand out via TakeReady
	fired     bool

	onAllComplete func()

	mu sync.Mutex
}

// ChunkResult pairs a resolved sequence number with its transcript
type ChunkResult struct {
	Sequence int
	Text     string
}

// BridgeStats represents bridge state for monitoring
type BridgeStats struct {
	NextSequence  int  `json:"next_sequence"`
	PendingCount  int  `json:"pending_count"`
	ResolvedCount int  `json:"resolved_count"`
	Completed     bool `json:"completed"`
}

// NewQueueBridge creates an empty bridge for a fresh session
func NewQueueBridge() *QueueBridge {
	return &QueueBridge{
		pending: make(map[int]bool),
		results: make(map[int]string),
	}
}

// SetOnAllComplete registers the completion callback. It is invoked at
// most once per session, outside the bridge's lock.
func (q *QueueBridge) SetOnAllComplete(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onAllComplete = fn
}

// NextSequence returns the next sequence number (0, 1, 2, ...) and
// registers it as pending. Safe to call concurrently; each call yields a
// distinct, strictly increasing number with no reuse.
func (q *QueueBridge) NextSequence() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	seq := q.next
	q.next++
	q.pending[seq] = true

	return seq
}

// SubmitResult records the result for seq and marks it resolved.
// Resolving an already-resolved or unknown sequence number is a no-op,
// tolerating duplicate delivery from an unreliable transport.
func (q *QueueBridge) SubmitResult(seq int, text string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.pending[seq] {
		return
	}

	delete(q.pending, seq)
	q.results[seq] = text
}

// CheckCompletion fires the completion callback if no chunks remain
// pending and the session's one-shot flag is unset. The check-and-set is
// a single atomic step under the bridge lock, so concurrent invocations
// from a timeout, a last-result callback, and a retry can never fire the
// callback twice. Returns whether this call fired it.
func (q *QueueBridge) CheckCompletion() bool {
	q.mu.Lock()
	if len(q.pending) > 0 || q.fired {
		q.mu.Unlock()
		return false
	}
	q.fired = true
	cb := q.onAllComplete
	q.mu.Unlock()

	if cb != nil {
		cb()
	}
	return true
}

// ForceCompletion fires the same one-shot completion regardless of
// pending count. Used by the post-stop timeout to bound waiting on a
// straggling final result; stragglers resolving later are no-ops.
func (q *QueueBridge) ForceCompletion() bool {
	q.mu.Lock()
	if q.fired {
		q.mu.Unlock()
		return false
	}
	q.fired = true
	cb := q.onAllComplete
	q.mu.Unlock()

	if cb != nil {
		cb()
	}
	return true
}

// PendingCount returns the current count of unresolved sequence numbers
func (q *QueueBridge) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// TakeReady returns resolved results in sequence order, but only as far
// as the contiguous resolved prefix extends, and only once each. Callers
// can hand these straight to a text inserter without reordering.
func (q *QueueBridge) TakeReady() []ChunkResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ready []ChunkResult
	for q.delivered < q.next {
		text, ok := q.results[q.delivered]
		if !ok {
			break
		}
		ready = append(ready, ChunkResult{Sequence: q.delivered, Text: text})
		q.delivered++
	}

	return ready
}

// Transcript joins all resolved results in sequence order, skipping
// unresolved and empty entries.
func (q *QueueBridge) Transcript() string {
	q.mu.Lock()
	defer q.mu.Unlock()

	parts := make([]string, 0, len(q.results))
	for seq := 0; seq < q.next; seq++ {
		text, ok := q.results[seq]
		if !ok {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}

	return strings.Join(parts, " ")
}

// Reset clears all pending/resolved state and the one-shot flag,
// starting a fresh session. Sequence numbers restart at 0 and the
// completion callback can fire again.
func (q *QueueBridge) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.next = 0
	q.delivered = 0
	q.pending = make(map[int]bool)
	q.results = make(map[int]string)
	q.fired = false
}

// GetStats returns current bridge state
func (q *QueueBridge) GetStats() BridgeStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return BridgeStats{
		NextSequence:  q.next,
		PendingCount:  len(q.pending),
		ResolvedCount: len(q.results),
		Completed:     q.fired,
	}
}
