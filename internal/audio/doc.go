// Package audio handles audio sample accumulation and format conversion.
// It implements a thread-safe PCM accumulation buffer with atomic drain
// semantics and WAV encoding of drained chunks for transcription dispatch.
package audio
