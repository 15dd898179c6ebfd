// Package vad provides Voice Activity Detection with hysteresis.
// It classifies audio frame windows as speech or silence, emits
// speech-boundary events on sustained transitions, and degrades to a
// disabled detector on unsupported configurations.
package vad
