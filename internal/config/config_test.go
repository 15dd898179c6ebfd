package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got: %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	content := `
audio:
  sample_rate: 16000
  channels: 1
  bit_depth: 16
vad:
  enabled: true
  preset: "sensitive"
  window_size: 512
  min_speech_duration: 0.25
  min_silence_after_speech: 1.0
  min_speech_ratio: 0.1
  min_total_speech: 0.5
chunking:
  min_duration: 0.5
  max_duration: 30.0
  format: "wav"
transcription:
  provider: "stub"
  timeout: 30
  max_retries: 3
  max_concurrent: 4
  completion_timeout: 1.0
  language: "en"
capture:
  enabled: true
  udp_port: 9500
  bind_address: "127.0.0.1"
  buffer_size: 65536
http:
  enabled: false
logging:
  level: "debug"
  format: "json"
  output: "stdout"
`

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected config to load, got: %v", err)
	}

	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", cfg.Audio.SampleRate)
	}
	if cfg.VAD.Preset != "sensitive" {
		t.Errorf("Expected preset 'sensitive', got '%s'", cfg.VAD.Preset)
	}
	if cfg.Transcription.Provider != "stub" {
		t.Errorf("Expected provider 'stub', got '%s'", cfg.Transcription.Provider)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("audio: [not a mapping"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{
			name:     "unsupported sample rate",
			mutate:   func(c *Config) { c.Audio.SampleRate = 44100 },
			errorMsg: "sample_rate",
		},
		{
			name:     "stereo audio",
			mutate:   func(c *Config) { c.Audio.Channels = 2 },
			errorMsg: "channels",
		},
		{
			name:     "unknown vad preset",
			mutate:   func(c *Config) { c.VAD.Preset = "aggressive" },
			errorMsg: "preset",
		},
		{
			name:     "threshold out of range",
			mutate:   func(c *Config) { c.VAD.Threshold = 1.5 },
			errorMsg: "threshold",
		},
		{
			name:     "window size too small",
			mutate:   func(c *Config) { c.VAD.WindowSize = 64 },
			errorMsg: "window_size",
		},
		{
			name:     "max chunk not above min",
			mutate:   func(c *Config) { c.Chunking.MaxDuration = c.Chunking.MinDuration },
			errorMsg: "max_duration",
		},
		{
			name:     "unknown chunk format",
			mutate:   func(c *Config) { c.Chunking.Format = "mp3" },
			errorMsg: "format",
		},
		{
			name:     "zero transcription timeout",
			mutate:   func(c *Config) { c.Transcription.Timeout = 0 },
			errorMsg: "timeout",
		},
		{
			name:     "negative completion timeout",
			mutate:   func(c *Config) { c.Transcription.CompletionTimeout = -1 },
			errorMsg: "completion_timeout",
		},
		{
			name:     "invalid udp port",
			mutate:   func(c *Config) { c.Capture.UDPPort = 70000 },
			errorMsg: "udp_port",
		},
		{
			name:     "invalid log level",
			mutate:   func(c *Config) { c.Logging.Level = "verbose" },
			errorMsg: "level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestEmptyProviderIsValid(t *testing.T) {
	cfg := Default()
	cfg.Transcription.Provider = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected empty provider to pass validation, got: %v", err)
	}
}

func TestDisabledCaptureSkipsValidation(t *testing.T) {
	cfg := Default()
	cfg.Capture.Enabled = false
	cfg.Capture.UDPPort = 0

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected disabled capture to skip port validation, got: %v", err)
	}
}

func TestEffectiveThreshold(t *testing.T) {
	tests := []struct {
		name      string
		preset    string
		threshold float64
		want      float64
	}{
		{name: "sensitive preset", preset: "sensitive", want: 0.3},
		{name: "default preset", preset: "default", want: 0.5},
		{name: "strict preset", preset: "strict", want: 0.7},
		{name: "empty preset falls back to default", preset: "", want: 0.5},
		{name: "explicit threshold wins", preset: "strict", threshold: 0.42, want: 0.42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := VADConfig{Preset: tt.preset, Threshold: tt.threshold}
			if got := v.EffectiveThreshold(); got != tt.want {
				t.Errorf("Expected threshold %f, got %f", tt.want, got)
			}
		})
	}
}

func TestDurationGetters(t *testing.T) {
	cfg := Default()

	if got := cfg.VAD.GetMinSpeechDuration(); got != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %s", got)
	}
	if got := cfg.VAD.GetMinSilenceAfterSpeech(); got != time.Second {
		t.Errorf("Expected 1s, got %s", got)
	}
	if got := cfg.Chunking.GetMaxDuration(); got != 30*time.Second {
		t.Errorf("Expected 30s, got %s", got)
	}
	if got := cfg.Transcription.GetTimeoutDuration(); got != 30*time.Second {
		t.Errorf("Expected 30s, got %s", got)
	}
	if got := cfg.Transcription.GetCompletionTimeout(); got != time.Second {
		t.Errorf("Expected 1s, got %s", got)
	}
}
