package audio

import (
	"strings"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768}

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if want := 44 + len(samples)*2; len(data) != want {
		t.Errorf("Expected %d bytes, got %d", want, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		t.Errorf("Expected RIFF magic, got %q", data[0:4])
	}
	if string(data[8:12]) != "WAVE" {
		t.Errorf("Expected WAVE format, got %q", data[8:12])
	}
	if string(data[36:40]) != "data" {
		t.Errorf("Expected data chunk, got %q", data[36:40])
	}
}

func TestEncodeWAVErrors(t *testing.T) {
	tests := []struct {
		name       string
		samples    []int16
		sampleRate int
		errorMsg   string
	}{
		{
			name:       "empty samples",
			samples:    []int16{},
			sampleRate: 16000,
			errorMsg:   "empty audio samples",
		},
		{
			name:       "zero sample rate",
			samples:    []int16{1, 2, 3},
			sampleRate: 0,
			errorMsg:   "sample rate must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeWAV(tt.samples, tt.sampleRate)
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	original := []int16{0, 1000, -1000, 500, -500, 32767, -32768}

	encoded, err := EncodeWAV(original, 8000)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, sampleRate, err := DecodeWAV(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if sampleRate != 8000 {
		t.Errorf("Expected sample rate 8000, got %d", sampleRate)
	}
	if len(decoded) != len(original) {
		t.Fatalf("Expected %d samples, got %d", len(original), len(decoded))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, original[i], decoded[i])
		}
	}
}

func TestDecodeWAVErrors(t *testing.T) {
	valid, err := EncodeWAV([]int16{1, 2, 3, 4}, 16000)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	tests := []struct {
		name     string
		data     []byte
		errorMsg string
	}{
		{
			name:     "too short",
			data:     []byte{1, 2, 3},
			errorMsg: "too short",
		},
		{
			name: "bad magic",
			data: append([]byte("JUNK"), valid[4:]...),
			errorMsg: "missing RIFF",
		},
		{
			name:     "truncated data",
			data:     valid[:46],
			errorMsg: "truncated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeWAV(tt.data)
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
			}
		})
	}
}
