package transcription

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Dispatcher sends chunks to a ChunkTransport asynchronously with
// bounded concurrency and retries. Results are delivered through the
// per-dispatch callback; a chunk that fails all attempts is reported
// with an error so the caller can resolve it as empty rather than wedge
// session completion.
type Dispatcher struct {
	transport  ChunkTransport
	timeout    time.Duration
	maxRetries int
	semaphore  chan struct{}
	logger     *slog.Logger

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	wg sync.WaitGroup
	mu sync.RWMutex
}

// DispatcherConfig contains dispatch policy configuration
type DispatcherConfig struct {
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// DispatcherStats represents dispatcher statistics
type DispatcherStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// NewDispatcher creates a dispatcher over the given transport
func NewDispatcher(transport ChunkTransport, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}

	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}

	return &Dispatcher{
		transport:  transport,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		semaphore:  make(chan struct{}, cfg.MaxConcurrent),
		logger:     logger,
	}
}

// Dispatch sends the chunk asynchronously and invokes onResult exactly
// once with the transcript or the final error. Ownership of the chunk
// passes to the dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, chunk *Chunk, onResult func(seq int, text string, err error)) {
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		select {
		case d.semaphore <- struct{}{}:
			defer func() { <-d.semaphore }()
		case <-ctx.Done():
			onResult(chunk.Sequence, "", ctx.Err())
			return
		}

		startTime := time.Now()
		d.incrementTotalRequests()

		text, err := d.transcribeWithRetry(ctx, chunk)
		duration := time.Since(startTime)

		if err != nil {
			d.incrementFailedRequests()
			d.logger.Error("Chunk transcription failed",
				slog.String("session_id", chunk.SessionID),
				slog.Int("sequence", chunk.Sequence),
				slog.String("error", err.Error()),
				slog.Float64("duration", duration.Seconds()),
			)
			onResult(chunk.Sequence, "", err)
			return
		}

		d.incrementSuccessRequests()
		d.updateAvgResponseTime(duration)

		d.logger.Debug("Chunk transcription completed",
			slog.String("session_id", chunk.SessionID),
			slog.Int("sequence", chunk.Sequence),
			slog.Int("transcript_length", len(text)),
			slog.Float64("duration", duration.Seconds()),
		)
		onResult(chunk.Sequence, text, nil)
	}()
}

// transcribeWithRetry performs the request with exponential backoff
func (d *Dispatcher) transcribeWithRetry(ctx context.Context, chunk *Chunk) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			d.incrementTotalRetries()

			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
		text, err := d.transport.Transcribe(reqCtx, chunk)
		cancel()

		if err == nil {
			return text, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", lastErr
}

// Close waits for all in-flight dispatches to finish
func (d *Dispatcher) Close() error {
	d.wg.Wait()
	return nil
}

func (d *Dispatcher) incrementTotalRequests() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.totalRequests++
}

func (d *Dispatcher) incrementSuccessRequests() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.successRequests++
}

func (d *Dispatcher) incrementFailedRequests() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failedRequests++
}

func (d *Dispatcher) incrementTotalRetries() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.totalRetries++
}

func (d *Dispatcher) updateAvgResponseTime(responseTime time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Simple moving average
	if d.avgResponseTime == 0 {
		d.avgResponseTime = responseTime
	} else {
		d.avgResponseTime = (d.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current dispatcher statistics
func (d *Dispatcher) GetStats() DispatcherStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	successRate := float64(0)
	if d.totalRequests > 0 {
		successRate = float64(d.successRequests) / float64(d.totalRequests) * 100
	}

	return DispatcherStats{
		TotalRequests:   d.totalRequests,
		SuccessRequests: d.successRequests,
		FailedRequests:  d.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    d.totalRetries,
		AvgResponseTime: d.avgResponseTime,
		ActiveRequests:  len(d.semaphore),
	}
}
