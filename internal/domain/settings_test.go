package domain

import (
	"errors"
	"testing"
)

func TestSettingsNormalizeDefaults(t *testing.T) {
	var s Settings
	s.Normalize("id-ID")
	if s.Quality != QualityMedium {
		t.Fatalf("quality = %q, want medium", s.Quality)
	}
	if s.Speed != DefaultSpeed {
		t.Fatalf("speed = %v, want %v", s.Speed, DefaultSpeed)
	}
	if s.Voice != VoiceFemale {
		t.Fatalf("voice = %q, want female", s.Voice)
	}
	if s.Language != "id" {
		t.Fatalf("language = %q, want id", s.Language)
	}
	if s.DurationSeconds != DefaultDurationSeconds {
		t.Fatalf("duration = %d, want %d", s.DurationSeconds, DefaultDurationSeconds)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestSettingsNormalizeKeepsExplicitLanguage(t *testing.T) {
	s := Settings{Language: "ar-EG"}
	s.Normalize("en")
	if s.Language != "ar" {
		t.Fatalf("language = %q, want ar", s.Language)
	}
}

func TestSettingsValidateRejects(t *testing.T) {
	base := Settings{Quality: QualityLow, Speed: 1, Voice: VoiceMale, Language: "en", DurationSeconds: 10}
	tests := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{name: "quality", mutate: func(s *Settings) { s.Quality = "ultra" }},
		{name: "voice", mutate: func(s *Settings) { s.Voice = "robot" }},
		{name: "speed", mutate: func(s *Settings) { s.Speed = 3 }},
		{name: "language", mutate: func(s *Settings) { s.Language = "!!" }},
		{name: "duration", mutate: func(s *Settings) { s.DurationSeconds = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := base
			tc.mutate(&s)
			if err := s.Validate(); !errors.Is(err, ErrInvalidSettings) {
				t.Fatalf("Validate() = %v, want ErrInvalidSettings", err)
			}
		})
	}
}
