// Package session implements the recording session state machine.
// It owns one active dictation session at a time, feeds captured audio
// into the buffer and VAD, drives chunked or streaming transcription,
// and guarantees exactly-once completion signaling per session.
package session
