package vad

import "time"

// Disabled implements Detector for configurations where VAD cannot run.
// Every processing call fails with an UnsupportedPlatformError carrying
// the reason; all accessors return inert values. Callers treat it as
// "VAD disabled" and record without VAD-driven chunk boundaries.
type Disabled struct {
	reason string
}

// NewDisabled creates a disabled detector with the given reason
func NewDisabled(reason string) *Disabled {
	return &Disabled{reason: reason}
}

// Reason returns why the detector is disabled
func (d *Disabled) Reason() string {
	return d.reason
}

// Initialize is a no-op for a disabled detector
func (d *Disabled) Initialize() error {
	return nil
}

// IsAvailable always reports false
func (d *Disabled) IsAvailable() bool {
	return false
}

// Process always fails with an UnsupportedPlatformError
func (d *Disabled) Process(samples []int16, at time.Time) (*Result, error) {
	return nil, &UnsupportedPlatformError{Reason: d.reason}
}

// IsSpeaking always reports false
func (d *Disabled) IsSpeaking() bool {
	return false
}

// AverageSpeechProbability always returns zero
func (d *Disabled) AverageSpeechProbability() float64 {
	return 0
}

// CurrentSilenceDuration never reports a silence interval
func (d *Disabled) CurrentSilenceDuration(now time.Time) (time.Duration, bool) {
	return 0, false
}

// HasSignificantSpeech always reports false
func (d *Disabled) HasSignificantSpeech() bool {
	return false
}

// ResetSession is a no-op for a disabled detector
func (d *Disabled) ResetSession() {}

// GetStats returns a stats snapshot marking the detector unavailable
func (d *Disabled) GetStats() DetectorStats {
	return DetectorStats{Available: false}
}
