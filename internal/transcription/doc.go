// Package transcription implements ordered completion tracking and
// asynchronous dispatch of audio chunks to a speech-to-text transport.
// Transports are abstract; a stub implementation is provided for
// development and tests.
package transcription
