package vad

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Supported sample rates for the energy detector
const (
	SampleRate8k  = 8000
	SampleRate16k = 16000
)

// Named threshold presets
const (
	ThresholdSensitive = 0.3
	ThresholdDefault   = 0.5
	ThresholdStrict    = 0.7
)

// Config contains detector configuration
type Config struct {
	Threshold             float64
	SampleRate            int
	MinSpeechDuration     time.Duration // sustained speech before a started event
	MinSilenceAfterSpeech time.Duration // sustained silence before an ended event
	MinSpeechRatio        float64       // significant-speech ratio floor
	MinTotalSpeech        time.Duration // significant-speech duration floor
}

// SpeechEventKind identifies a speech boundary transition
type SpeechEventKind int

const (
	SpeechStarted SpeechEventKind = iota
	SpeechEnded
)

// String returns a human-readable event kind
func (k SpeechEventKind) String() string {
	switch k {
	case SpeechStarted:
		return "started"
	case SpeechEnded:
		return "ended"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// SpeechEvent marks a speech boundary with the timestamp of the
// triggering frame. Events are ephemeral and not retained.
type SpeechEvent struct {
	Kind SpeechEventKind
	At   time.Time
}

// Result is produced once per processed frame window
type Result struct {
	Probability      float64      `json:"probability"`
	IsSpeaking       bool         `json:"is_speaking"`
	Event            *SpeechEvent `json:"-"`
	ProcessingTimeMs float64      `json:"processing_time_ms"`
}

// DetectorStats represents detector statistics for monitoring
type DetectorStats struct {
	Available        bool      `json:"available"`
	Initialized      bool      `json:"initialized"`
	Threshold        float64   `json:"threshold"`
	TotalWindows     uint64    `json:"total_windows"`
	SpeechWindows    uint64    `json:"speech_windows"`
	SpeechPercentage float64   `json:"speech_percentage"`
	AverageProb      float64   `json:"average_probability"`
	IsSpeaking       bool      `json:"is_speaking"`
	LastSpeechStart  time.Time `json:"last_speech_start"`
	LastSpeechEnd    time.Time `json:"last_speech_end"`
}

// Detector classifies audio frame windows as speech or silence.
// Implementations are safe for concurrent use.
type Detector interface {
	Initialize() error
	Process(samples []int16, at time.Time) (*Result, error)
	IsAvailable() bool
	IsSpeaking() bool
	AverageSpeechProbability() float64
	CurrentSilenceDuration(now time.Time) (time.Duration, bool)
	HasSignificantSpeech() bool
	ResetSession()
	GetStats() DetectorStats
}

// NewDetector returns a detector for the configuration, degrading to a
// Disabled detector when the sample rate is unsupported so callers never
// branch on capability checks directly.
func NewDetector(cfg Config) Detector {
	if cfg.SampleRate != SampleRate8k && cfg.SampleRate != SampleRate16k {
		return NewDisabled(fmt.Sprintf("sample rate %d Hz not supported by the energy detector", cfg.SampleRate))
	}

	p, err := NewProcessor(cfg)
	if err != nil {
		return NewDisabled(err.Error())
	}

	return p
}

// Processor implements Detector with RMS-energy scoring and a two-state
// speech/silence machine with hysteresis.
type Processor struct {
	cfg Config

	isInitialized bool

	// Hysteresis state
	speaking   bool
	aboveSince time.Time // first frame of the current sustained-speech run
	belowSince time.Time // first frame of the current sustained-silence run

	// Session tracking
	lastSpeechStart time.Time
	lastSpeechEnd   time.Time
	probabilitySum  float64
	totalWindows    uint64
	speechWindows   uint64
	speechTotal     time.Duration
	audioTotal      time.Duration

	mu sync.RWMutex
}

// NewProcessor creates a new VAD processor instance
func NewProcessor(cfg Config) (*Processor, error) {
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", cfg.Threshold)
	}

	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}

	if cfg.MinSpeechDuration <= 0 {
		return nil, fmt.Errorf("min speech duration must be positive, got %s", cfg.MinSpeechDuration)
	}

	if cfg.MinSilenceAfterSpeech <= 0 {
		return nil, fmt.Errorf("min silence after speech must be positive, got %s", cfg.MinSilenceAfterSpeech)
	}

	if cfg.Threshold == 0 {
		cfg.Threshold = ThresholdDefault
	}

	return &Processor{cfg: cfg}, nil
}

// Initialize prepares the processor for frame processing
func (p *Processor) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.isInitialized = true
	return nil
}

// IsAvailable reports whether VAD can run on this configuration
func (p *Processor) IsAvailable() bool {
	return true
}

// Process advances the state machine by one frame window and returns the
// window's probability, the speaking state, and a boundary event when a
// sustained transition occurred at this frame.
func (p *Processor) Process(samples []int16, at time.Time) (*Result, error) {
	startTime := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isInitialized {
		return nil, ErrNotInitialized
	}

	if len(samples) == 0 {
		return nil, &ProcessingError{Msg: "empty frame window"}
	}

	windowDur := time.Duration(len(samples)) * time.Second / time.Duration(p.cfg.SampleRate)
	probability := energyProbability(samples)
	instantaneous := probability >= p.cfg.Threshold

	var event *SpeechEvent

	if !p.speaking {
		if instantaneous {
			if p.aboveSince.IsZero() {
				p.aboveSince = at
			}
			// The window's own span counts toward the sustained run
			if at.Sub(p.aboveSince)+windowDur >= p.cfg.MinSpeechDuration {
				p.speaking = true
				p.lastSpeechStart = at
				p.aboveSince = time.Time{}
				p.belowSince = time.Time{}
				event = &SpeechEvent{Kind: SpeechStarted, At: at}
			}
		} else {
			p.aboveSince = time.Time{}
		}
	} else {
		if !instantaneous {
			if p.belowSince.IsZero() {
				p.belowSince = at
			}
			if at.Sub(p.belowSince)+windowDur >= p.cfg.MinSilenceAfterSpeech {
				p.speaking = false
				p.lastSpeechEnd = at
				p.aboveSince = time.Time{}
				p.belowSince = time.Time{}
				event = &SpeechEvent{Kind: SpeechEnded, At: at}
			}
		} else {
			p.belowSince = time.Time{}
		}
	}

	p.totalWindows++
	p.probabilitySum += probability
	p.audioTotal += windowDur
	if p.speaking {
		p.speechWindows++
		p.speechTotal += windowDur
	}

	return &Result{
		Probability:      probability,
		IsSpeaking:       p.speaking,
		Event:            event,
		ProcessingTimeMs: float64(time.Since(startTime).Microseconds()) / 1000.0,
	}, nil
}

// energyProbability maps the RMS energy of a PCM window to [0, 1]
func energyProbability(samples []int16) float64 {
	var energy float64
	for _, sample := range samples {
		energy += float64(sample) * float64(sample)
	}
	energy = math.Sqrt(energy / float64(len(samples)))

	// Full-scale speech sits well above 10000 RMS; clamp to [0, 1]
	probability := energy / 10000.0
	if probability > 1.0 {
		probability = 1.0
	}

	return probability
}

// IsSpeaking reports the current hysteresis state
func (p *Processor) IsSpeaking() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.speaking
}

// AverageSpeechProbability returns the running average probability across
// the session
func (p *Processor) AverageSpeechProbability() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.totalWindows == 0 {
		return 0
	}
	return p.probabilitySum / float64(p.totalWindows)
}

// CurrentSilenceDuration returns how long the detector has been silent
// since the last speech ended. The second return is false while speaking
// or when no speech has ended yet this session.
func (p *Processor) CurrentSilenceDuration(now time.Time) (time.Duration, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.speaking || p.lastSpeechEnd.IsZero() {
		return 0, false
	}
	return now.Sub(p.lastSpeechEnd), true
}

// HasSignificantSpeech reports whether accumulated speech clears both the
// minimum total duration and the minimum speech ratio. Used to decide
// whether a session produced anything worth transcribing.
func (p *Processor) HasSignificantSpeech() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.speechTotal < p.cfg.MinTotalSpeech {
		return false
	}

	if p.audioTotal <= 0 {
		return false
	}

	ratio := float64(p.speechTotal) / float64(p.audioTotal)
	return ratio >= p.cfg.MinSpeechRatio
}

// ResetSession clears all running state to initial values. The detector
// stays initialized.
func (p *Processor) ResetSession() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.speaking = false
	p.aboveSince = time.Time{}
	p.belowSince = time.Time{}
	p.lastSpeechStart = time.Time{}
	p.lastSpeechEnd = time.Time{}
	p.probabilitySum = 0
	p.totalWindows = 0
	p.speechWindows = 0
	p.speechTotal = 0
	p.audioTotal = 0
}

// GetStats returns current detector statistics
func (p *Processor) GetStats() DetectorStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	speechPercentage := float64(0)
	avgProb := float64(0)
	if p.totalWindows > 0 {
		speechPercentage = float64(p.speechWindows) / float64(p.totalWindows) * 100
		avgProb = p.probabilitySum / float64(p.totalWindows)
	}

	return DetectorStats{
		Available:        true,
		Initialized:      p.isInitialized,
		Threshold:        p.cfg.Threshold,
		TotalWindows:     p.totalWindows,
		SpeechWindows:    p.speechWindows,
		SpeechPercentage: speechPercentage,
		AverageProb:      avgProb,
		IsSpeaking:       p.speaking,
		LastSpeechStart:  p.lastSpeechStart,
		LastSpeechEnd:    p.lastSpeechEnd,
	}
}
