package audio

import (
	"sync"
	"time"
)

// Buffer accumulates raw PCM samples for the active recording session.
// It owns no policy: callers append frame batches as they arrive and
// drain the whole buffer atomically when a chunk boundary is reached.
type Buffer struct {
	sampleRate int

	samples      []int16
	speechHinted bool

	// Statistics since creation (survive drains)
	totalAppends uint64
	totalSamples uint64
	lastAppend   time.Time

	mu sync.Mutex
}

// BufferStats represents buffer statistics for monitoring
type BufferStats struct {
	SampleRate    int       `json:"sample_rate"`
	BufferedCount int       `json:"buffered_samples"`
	Duration      float64   `json:"buffered_seconds"`
	TotalAppends  uint64    `json:"total_appends"`
	TotalSamples  uint64    `json:"total_samples"`
	LastAppend    time.Time `json:"last_append"`
}

// NewBuffer creates a new audio buffer for the given sample rate
func NewBuffer(sampleRate int) *Buffer {
	return &Buffer{
		sampleRate: sampleRate,
		samples:    make([]int16, 0, sampleRate*2), // Pre-allocate for 2 seconds
	}
}

// Append adds a frame batch to the tail of the buffer. The hasSpeech
// hint marks whether the batch was classified as containing speech;
// it is sticky until the next drain.
func (b *Buffer) Append(samples []int16, hasSpeech bool) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, samples...)
	if hasSpeech {
		b.speechHinted = true
	}

	b.totalAppends++
	b.totalSamples += uint64(len(samples))
	b.lastAppend = time.Now()
}

// TakeAll atomically returns every sample currently held and empties the
// buffer. A concurrent Append is either included in the returned batch or
// left for the next drain, never both and never lost. Draining an empty
// buffer returns an empty slice.
func (b *Buffer) TakeAll() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	drained := b.samples
	b.samples = make([]int16, 0, b.sampleRate*2)
	b.speechHinted = false

	return drained
}

// SampleCount returns the number of samples currently buffered
func (b *Buffer) SampleCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Duration returns the duration of the currently buffered audio
func (b *Buffer) Duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.durationLocked()
}

func (b *Buffer) durationLocked() time.Duration {
	if b.sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.samples)) * time.Second / time.Duration(b.sampleRate)
}

// HasSpeech reports whether any batch appended since the last drain
// carried the speech hint.
func (b *Buffer) HasSpeech() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speechHinted
}

// SampleRate returns the buffer's sample rate
func (b *Buffer) SampleRate() int {
	return b.sampleRate
}

// GetStats returns current buffer statistics
func (b *Buffer) GetStats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BufferStats{
		SampleRate:    b.sampleRate,
		BufferedCount: len(b.samples),
		Duration:      b.durationLocked().Seconds(),
		TotalAppends:  b.totalAppends,
		TotalSamples:  b.totalSamples,
		LastAppend:    b.lastAppend,
	}
}
