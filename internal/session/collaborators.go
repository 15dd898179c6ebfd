package session

import "log/slog"

// BannerStyle selects the visual treatment of a status banner
type BannerStyle int

const (
	BannerInfo BannerStyle = iota
	BannerError
)

// String returns the string representation of the banner style
func (s BannerStyle) String() string {
	switch s {
	case BannerInfo:
		return "info"
	case BannerError:
		return "error"
	default:
		return "unknown"
	}
}

// SoundIndication identifies an audible cue played on a session transition
type SoundIndication int

const (
	SoundStart SoundIndication = iota
	SoundStop
	SoundCancel
	SoundError
)

// String returns the string representation of the sound indication
func (s SoundIndication) String() string {
	switch s {
	case SoundStart:
		return "start"
	case SoundStop:
		return "stop"
	case SoundCancel:
		return "cancel"
	case SoundError:
		return "error"
	default:
		return "unknown"
	}
}

// TextInserter delivers transcribed text to the capture target.
// Insert with final=false replaces the previous provisional text;
// final=true commits it. Cancel discards any provisional text.
type TextInserter interface {
	Insert(text string, final bool) error
	Cancel()
}

// BannerPresenter surfaces short status messages to the user
type BannerPresenter interface {
	Show(message string, style BannerStyle)
}

// SoundPlayer plays audible session cues
type SoundPlayer interface {
	Play(indication SoundIndication)
}

// LogInserter writes transcribed text to the structured log.
// Used when no real capture target integration is configured.
type LogInserter struct {
	logger *slog.Logger
}

// NewLogInserter creates a text inserter backed by the logger
func NewLogInserter(logger *slog.Logger) *LogInserter {
	return &LogInserter{logger: logger}
}

// Insert logs the text with its finality
func (l *LogInserter) Insert(text string, final bool) error {
	l.logger.Info("Text inserted",
		slog.String("text", text),
		slog.Bool("final", final))
	return nil
}

// Cancel logs that provisional text was discarded
func (l *LogInserter) Cancel() {
	l.logger.Info("Provisional text discarded")
}

// LogBanner logs banner messages instead of presenting them
type LogBanner struct {
	logger *slog.Logger
}

// NewLogBanner creates a banner presenter backed by the logger
func NewLogBanner(logger *slog.Logger) *LogBanner {
	return &LogBanner{logger: logger}
}

// Show logs the banner message at a level matching its style
func (b *LogBanner) Show(message string, style BannerStyle) {
	if style == BannerError {
		b.logger.Error("Banner", slog.String("message", message))
		return
	}
	b.logger.Info("Banner", slog.String("message", message))
}

// LogSound logs sound indications instead of playing them
type LogSound struct {
	logger *slog.Logger
}

// NewLogSound creates a sound player backed by the logger
func NewLogSound(logger *slog.Logger) *LogSound {
	return &LogSound{logger: logger}
}

// Play logs the indication
func (p *LogSound) Play(indication SoundIndication) {
	p.logger.Debug("Sound cue", slog.String("indication", indication.String()))
}
