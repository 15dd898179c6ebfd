package vad

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned when Process is called before Initialize.
// It denotes a programming error, not a runtime condition.
var ErrNotInitialized = errors.New("vad: detector not initialized")

// UnsupportedPlatformError is returned from every processing call of a
// detector that cannot run with the current configuration or hardware.
// Callers must treat it as "VAD disabled", not as a fatal failure.
type UnsupportedPlatformError struct {
	Reason string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("vad: unsupported platform: %s", e.Reason)
}

// ProcessingError denotes a transient inference failure on a single
// frame window. It should be surfaced but does not abort the session.
type ProcessingError struct {
	Msg string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("vad: processing failed: %s", e.Msg)
}

// IsUnsupportedPlatform reports whether err is an UnsupportedPlatformError
func IsUnsupportedPlatform(err error) bool {
	var target *UnsupportedPlatformError
	return errors.As(err, &target)
}

// IsProcessingError reports whether err is a transient ProcessingError
func IsProcessingError(err error) bool {
	var target *ProcessingError
	return errors.As(err, &target)
}
