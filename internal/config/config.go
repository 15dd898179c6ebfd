package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete dictation service configuration
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	Chunking      ChunkingConfig      `yaml:"chunking"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Capture       CaptureConfig       `yaml:"capture"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// AudioConfig contains audio format parameters for the capture feed
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	BitDepth   int `yaml:"bit_depth"`
}

// VADConfig contains Voice Activity Detection configuration.
// Preset selects one of the named threshold profiles; an explicit
// threshold overrides the preset value.
type VADConfig struct {
	Enabled               bool    `yaml:"enabled"`
	Preset                string  `yaml:"preset"`
	Threshold             float64 `yaml:"threshold"`
	WindowSize            int     `yaml:"window_size"`              // samples
	MinSpeechDuration     float64 `yaml:"min_speech_duration"`      // seconds
	MinSilenceAfterSpeech float64 `yaml:"min_silence_after_speech"` // seconds
	MinSpeechRatio        float64 `yaml:"min_speech_ratio"`
	MinTotalSpeech        float64 `yaml:"min_total_speech"` // seconds
}

// ChunkingConfig contains chunk boundary configuration for chunked dispatch
type ChunkingConfig struct {
	MinDuration float64 `yaml:"min_duration"` // seconds
	MaxDuration float64 `yaml:"max_duration"` // seconds
	Format      string  `yaml:"format"`       // "raw" or "wav"
}

// TranscriptionConfig contains transcription dispatch configuration.
// Provider selects the registered transport; an empty provider means no
// backend is configured and recording cannot start.
type TranscriptionConfig struct {
	Provider          string  `yaml:"provider"`
	Streaming         bool    `yaml:"streaming"`
	Timeout           int     `yaml:"timeout"` // seconds, per chunk request
	MaxRetries        int     `yaml:"max_retries"`
	MaxConcurrent     int     `yaml:"max_concurrent"`
	CompletionTimeout float64 `yaml:"completion_timeout"` // seconds
	Language          string  `yaml:"language"`
}

// CaptureConfig contains the UDP capture feed server configuration
type CaptureConfig struct {
	Enabled     bool   `yaml:"enabled"`
	UDPPort     int    `yaml:"udp_port"`
	BindAddress string `yaml:"bind_address"`
	BufferSize  int    `yaml:"buffer_size"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with working defaults for every section.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			BitDepth:   16,
		},
		VAD: VADConfig{
			Enabled:               true,
			Preset:                "default",
			WindowSize:            512,
			MinSpeechDuration:     0.25,
			MinSilenceAfterSpeech: 1.0,
			MinSpeechRatio:        0.1,
			MinTotalSpeech:        0.5,
		},
		Chunking: ChunkingConfig{
			MinDuration: 0.5,
			MaxDuration: 30.0,
			Format:      "wav",
		},
		Transcription: TranscriptionConfig{
			Provider:          "stub",
			Timeout:           30,
			MaxRetries:        3,
			MaxConcurrent:     4,
			CompletionTimeout: 1.0,
			Language:          "en",
		},
		Capture: CaptureConfig{
			Enabled:     true,
			UDPPort:     9500,
			BindAddress: "127.0.0.1",
			BufferSize:  65536,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Port:    9501,
			Address: "127.0.0.1",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Chunking.Validate(); err != nil {
		return fmt.Errorf("chunking config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 8000 && a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 8000 or 16000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	validPresets := map[string]bool{"": true, "sensitive": true, "default": true, "strict": true}
	if !validPresets[v.Preset] {
		return fmt.Errorf("preset must be one of [sensitive, default, strict], got '%s'", v.Preset)
	}

	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
	}

	if v.WindowSize < 128 || v.WindowSize > 4096 {
		return fmt.Errorf("window_size must be between 128 and 4096 samples, got %d", v.WindowSize)
	}

	if v.MinSpeechDuration <= 0 {
		return fmt.Errorf("min_speech_duration must be positive, got %f", v.MinSpeechDuration)
	}

	if v.MinSilenceAfterSpeech <= 0 {
		return fmt.Errorf("min_silence_after_speech must be positive, got %f", v.MinSilenceAfterSpeech)
	}

	if v.MinSpeechRatio < 0 || v.MinSpeechRatio > 1 {
		return fmt.Errorf("min_speech_ratio must be between 0 and 1, got %f", v.MinSpeechRatio)
	}

	if v.MinTotalSpeech < 0 {
		return fmt.Errorf("min_total_speech cannot be negative, got %f", v.MinTotalSpeech)
	}

	return nil
}

// Validate validates chunking configuration
func (c *ChunkingConfig) Validate() error {
	if c.MinDuration <= 0 {
		return fmt.Errorf("min_duration must be positive, got %f", c.MinDuration)
	}

	if c.MaxDuration <= c.MinDuration {
		return fmt.Errorf("max_duration (%f) must be greater than min_duration (%f)",
			c.MaxDuration, c.MinDuration)
	}

	validFormats := map[string]bool{"raw": true, "wav": true}
	if !validFormats[c.Format] {
		return fmt.Errorf("format must be 'raw' or 'wav', got '%s'", c.Format)
	}

	return nil
}

// Validate validates transcription configuration. An empty provider is
// valid at config level; the controller refuses to start recording
// without one.
func (t *TranscriptionConfig) Validate() error {
	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	// The completion timeout is a heuristic bound on a straggling final
	// result after stop, not a correctness guarantee.
	if t.CompletionTimeout <= 0 {
		return fmt.Errorf("completion_timeout must be positive, got %f", t.CompletionTimeout)
	}

	return nil
}

// Validate validates capture server configuration
func (c *CaptureConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.UDPPort < 1 || c.UDPPort > 65535 {
		return fmt.Errorf("udp_port must be between 1 and 65535, got %d", c.UDPPort)
	}

	if c.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if c.BufferSize < 1024 {
		return fmt.Errorf("buffer_size must be at least 1024 bytes, got %d", c.BufferSize)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// EffectiveThreshold resolves the VAD threshold from the explicit value
// or the named preset.
func (v *VADConfig) EffectiveThreshold() float64 {
	if v.Threshold > 0 {
		return v.Threshold
	}

	switch v.Preset {
	case "sensitive":
		return 0.3
	case "strict":
		return 0.7
	default:
		return 0.5
	}
}

// GetMinSpeechDuration returns the minimum speech duration as a time.Duration
func (v *VADConfig) GetMinSpeechDuration() time.Duration {
	return time.Duration(v.MinSpeechDuration * float64(time.Second))
}

// GetMinSilenceAfterSpeech returns the minimum silence duration as a time.Duration
func (v *VADConfig) GetMinSilenceAfterSpeech() time.Duration {
	return time.Duration(v.MinSilenceAfterSpeech * float64(time.Second))
}

// GetMinTotalSpeech returns the significant-speech floor as a time.Duration
func (v *VADConfig) GetMinTotalSpeech() time.Duration {
	return time.Duration(v.MinTotalSpeech * float64(time.Second))
}

// GetMinDuration returns the minimum chunk duration as a time.Duration
func (c *ChunkingConfig) GetMinDuration() time.Duration {
	return time.Duration(c.MinDuration * float64(time.Second))
}

// GetMaxDuration returns the maximum chunk duration as a time.Duration
func (c *ChunkingConfig) GetMaxDuration() time.Duration {
	return time.Duration(c.MaxDuration * float64(time.Second))
}

// GetTimeoutDuration returns the per-request transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetCompletionTimeout returns the post-stop completion timeout as a time.Duration
func (t *TranscriptionConfig) GetCompletionTimeout() time.Duration {
	return time.Duration(t.CompletionTimeout * float64(time.Second))
}
