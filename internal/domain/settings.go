package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

const (
	// DefaultQuality is applied when the request omits the quality.
	DefaultQuality = QualityMedium
	// DefaultSpeed is the playback speed multiplier.
	DefaultSpeed = 1.0
	// DefaultVoice is used for narration.
	DefaultVoice = VoiceFemale
	// DefaultLanguage is the fallback narration language.
	DefaultLanguage = "en"
	// DefaultDurationSeconds is assumed when no duration is requested.
	DefaultDurationSeconds = 30

	minSpeed = 0.5
	maxSpeed = 2.0
)

// Normalize fills in server defaults. preferredLanguage usually comes from the
// request locale.
func (s *Settings) Normalize(preferredLanguage string) {
	if s == nil {
		return
	}
	if s.Quality == "" {
		s.Quality = DefaultQuality
	}
	if s.Speed == 0 {
		s.Speed = DefaultSpeed
	}
	if s.Voice == "" {
		s.Voice = DefaultVoice
	}
	if strings.TrimSpace(s.Language) == "" {
		s.Language = preferredLanguage
	}
	if code, err := NormalizeLanguage(s.Language); err == nil {
		s.Language = code
	} else if strings.TrimSpace(s.Language) == "" {
		s.Language = DefaultLanguage
	}
	if s.DurationSeconds <= 0 {
		s.DurationSeconds = DefaultDurationSeconds
	}
}

// Validate checks the closed value sets of the settings.
func (s Settings) Validate() error {
	switch s.Quality {
	case QualityLow, QualityMedium, QualityHigh:
	default:
		return fmt.Errorf("%w: quality must be one of low, medium, high", ErrInvalidSettings)
	}
	switch s.Voice {
	case VoiceMale, VoiceFemale:
	default:
		return fmt.Errorf("%w: voice must be male or female", ErrInvalidSettings)
	}
	if s.Speed < minSpeed || s.Speed > maxSpeed {
		return fmt.Errorf("%w: speed must be between %.1f and %.1f", ErrInvalidSettings, minSpeed, maxSpeed)
	}
	if _, err := NormalizeLanguage(s.Language); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if s.DurationSeconds <= 0 {
		return fmt.Errorf("%w: duration_seconds must be positive", ErrInvalidSettings)
	}
	return nil
}

// NormalizeLanguage reduces a BCP 47 tag such as "ar-EG" to its base language.
func NormalizeLanguage(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("language is required")
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("language %q: %w", code, err)
	}
	base, _ := tag.Base()
	return base.String(), nil
}
