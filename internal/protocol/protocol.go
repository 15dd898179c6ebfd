package protocol

import (
	"encoding/binary"
	"fmt"
)

// Capture feed packet constants
const (
	// Packet types
	PacketTypeControl = 0x01
	PacketTypeAudio   = 0x02

	// Control operations
	OpStart  = 0x01
	OpStop   = 0x02
	OpCancel = 0x03
	OpEscape = 0x04

	// Packet structure sizes
	HeaderSize             = 8 // 1 + 2 + 4 + 1 bytes
	ControlPayloadSize     = 1 // Operation (1 byte)
	AudioPayloadHeaderSize = 4 // Sequence number (4 bytes)
)

// Header represents the 8-byte capture packet header
// Layout: [PacketType:1][PacketLen:2][SourceID:4][Reserved:1]
type Header struct {
	PacketType uint8  // 0x01=Control, 0x02=Audio
	PacketLen  uint16 // Total packet size (header + payload)
	SourceID   uint32 // Capture source identifier
	Reserved   uint8  // Must be zero
}

// ControlPayload represents the 1-byte control packet payload
// Layout: [Op:1]
type ControlPayload struct {
	Op uint8 // 0x01=Start, 0x02=Stop, 0x03=Cancel, 0x04=Escape
}

// AudioPayload represents the audio packet payload
// Layout: [Sequence:4][PCM16 samples:N]
type AudioPayload struct {
	Sequence  uint32 // Packet sequence number
	AudioData []byte // Little-endian PCM16 mono samples (variable length)
}

// ParsedPacket represents a fully parsed capture packet
type ParsedPacket struct {
	Header  *Header
	Control *ControlPayload // Only set for control packets
	Audio   *AudioPayload   // Only set for audio packets
}

// ParseHeader parses the 8-byte capture packet header
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("header too short: expected %d bytes, got %d", HeaderSize, len(data))
	}

	header := &Header{
		PacketType: data[0],
		PacketLen:  binary.BigEndian.Uint16(data[1:3]),
		SourceID:   binary.BigEndian.Uint32(data[3:7]),
		Reserved:   data[7],
	}

	return header, nil
}

// ParseControlPayload parses the 1-byte control packet payload
func ParseControlPayload(data []byte) (*ControlPayload, error) {
	if len(data) < ControlPayloadSize {
		return nil, fmt.Errorf("control payload too short: expected %d bytes, got %d",
			ControlPayloadSize, len(data))
	}

	payload := &ControlPayload{Op: data[0]}
	if !IsValidOp(payload.Op) {
		return nil, fmt.Errorf("unknown control operation: 0x%02x", payload.Op)
	}

	return payload, nil
}

// ParseAudioPayload parses the audio packet payload (4-byte sequence + PCM data)
func ParseAudioPayload(data []byte) (*AudioPayload, error) {
	if len(data) < AudioPayloadHeaderSize {
		return nil, fmt.Errorf("audio payload too short: expected at least %d bytes, got %d",
			AudioPayloadHeaderSize, len(data))
	}

	payload := &AudioPayload{
		Sequence: binary.BigEndian.Uint32(data[0:4]),
	}

	audioData := data[AudioPayloadHeaderSize:]
	if len(audioData)%2 != 0 {
		return nil, fmt.Errorf("audio data length must be even for PCM16, got %d", len(audioData))
	}
	if len(audioData) > 0 {
		payload.AudioData = make([]byte, len(audioData))
		copy(payload.AudioData, audioData)
	}

	return payload, nil
}

// ParsePacket parses a complete capture packet (header + payload)
func ParsePacket(data []byte) (*ParsedPacket, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("packet too short: expected at least %d bytes, got %d", HeaderSize, len(data))
	}

	header, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if int(header.PacketLen) != len(data) {
		return nil, fmt.Errorf("packet length mismatch: header says %d bytes, got %d bytes",
			header.PacketLen, len(data))
	}

	if err := ValidateHeader(header); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	packet := &ParsedPacket{Header: header}
	payloadData := data[HeaderSize:]

	switch header.PacketType {
	case PacketTypeControl:
		payload, err := ParseControlPayload(payloadData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse control payload: %w", err)
		}
		packet.Control = payload

	case PacketTypeAudio:
		payload, err := ParseAudioPayload(payloadData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse audio payload: %w", err)
		}
		packet.Audio = payload

	default:
		return nil, fmt.Errorf("unknown packet type: 0x%02x", header.PacketType)
	}

	return packet, nil
}

// ValidateHeader validates the packet header fields
func ValidateHeader(header *Header) error {
	if !IsValidPacketType(header.PacketType) {
		return fmt.Errorf("invalid packet type: 0x%02x", header.PacketType)
	}

	if header.Reserved != 0 {
		return fmt.Errorf("reserved byte must be zero, got 0x%02x", header.Reserved)
	}

	if header.PacketLen < HeaderSize {
		return fmt.Errorf("packet length too small: %d (minimum %d)", header.PacketLen, HeaderSize)
	}

	expectedPayloadSize := int(header.PacketLen) - HeaderSize
	switch header.PacketType {
	case PacketTypeControl:
		if expectedPayloadSize != ControlPayloadSize {
			return fmt.Errorf("control packet payload size mismatch: expected %d, got %d",
				ControlPayloadSize, expectedPayloadSize)
		}
	case PacketTypeAudio:
		if expectedPayloadSize < AudioPayloadHeaderSize {
			return fmt.Errorf("audio packet payload too small: expected at least %d, got %d",
				AudioPayloadHeaderSize, expectedPayloadSize)
		}
	}

	return nil
}

// IsValidPacketType checks if the packet type is valid
func IsValidPacketType(ptype uint8) bool {
	return ptype == PacketTypeControl || ptype == PacketTypeAudio
}

// IsValidOp checks if the control operation is valid
func IsValidOp(op uint8) bool {
	return op == OpStart || op == OpStop || op == OpCancel || op == OpEscape
}

// Samples decodes the audio data into little-endian PCM16 samples
func (a *AudioPayload) Samples() []int16 {
	samples := make([]int16, len(a.AudioData)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(a.AudioData[i*2:]))
	}
	return samples
}

// EncodePacket builds a complete capture packet for the given payload.
// Used by test feeders and the loopback capture client.
func EncodePacket(packetType uint8, sourceID uint32, payload []byte) []byte {
	packet := make([]byte, HeaderSize+len(payload))
	packet[0] = packetType
	binary.BigEndian.PutUint16(packet[1:3], uint16(HeaderSize+len(payload)))
	binary.BigEndian.PutUint32(packet[3:7], sourceID)
	packet[7] = 0
	copy(packet[HeaderSize:], payload)
	return packet
}

// EncodeControlPacket builds a control packet for the given operation
func EncodeControlPacket(sourceID uint32, op uint8) []byte {
	return EncodePacket(PacketTypeControl, sourceID, []byte{op})
}

// EncodeAudioPacket builds an audio packet from PCM16 samples
func EncodeAudioPacket(sourceID uint32, sequence uint32, samples []int16) []byte {
	payload := make([]byte, AudioPayloadHeaderSize+len(samples)*2)
	binary.BigEndian.PutUint32(payload[0:4], sequence)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(payload[AudioPayloadHeaderSize+i*2:], uint16(s))
	}
	return EncodePacket(PacketTypeAudio, sourceID, payload)
}

// OpString returns a human-readable name for a control operation
func OpString(op uint8) string {
	switch op {
	case OpStart:
		return "start"
	case OpStop:
		return "stop"
	case OpCancel:
		return "cancel"
	case OpEscape:
		return "escape"
	default:
		return fmt.Sprintf("unknown(0x%02x)", op)
	}
}

// String returns a human-readable representation of the header
func (h *Header) String() string {
	var packetType string

	switch h.PacketType {
	case PacketTypeControl:
		packetType = "Control"
	case PacketTypeAudio:
		packetType = "Audio"
	default:
		packetType = fmt.Sprintf("Unknown(0x%02x)", h.PacketType)
	}

	return fmt.Sprintf("Header{Type:%s, Len:%d, SourceID:%d}",
		packetType, h.PacketLen, h.SourceID)
}

// String returns a human-readable representation of the control payload
func (c *ControlPayload) String() string {
	return fmt.Sprintf("ControlPayload{Op:%s}", OpString(c.Op))
}

// String returns a human-readable representation of the audio payload
func (a *AudioPayload) String() string {
	return fmt.Sprintf("AudioPayload{Sequence:%d, AudioDataLen:%d}", a.Sequence, len(a.AudioData))
}
