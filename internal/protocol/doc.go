// Package protocol implements the binary capture feed protocol.
// It handles header parsing, audio frame payloads carrying sequenced PCM
// data, and control payloads for recording lifecycle operations.
package protocol
