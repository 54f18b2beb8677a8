// Package config loads the pipeline settings file. The settings are read once
// at start-up and handed to the pipeline as immutable values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"videojobs/internal/domain"
	"videojobs/internal/pipeline"
)

const bytesPerMB = 1 << 20

// File mirrors pipeline.yaml.
type File struct {
	Steps   []StepConfig            `yaml:"steps"`
	Presets map[string]PresetConfig `yaml:"quality_presets"`
	Tiers   map[string]TierConfig   `yaml:"tiers"`
	Retry   RetryConfig             `yaml:"retry"`
	// DefaultLanguage narrates jobs whose caller gave no language hint.
	DefaultLanguage string `yaml:"default_language"`
}

type StepConfig struct {
	Name           string `yaml:"name"`
	Order          int    `yaml:"order"`
	Weight         int    `yaml:"weight"`
	Service        string `yaml:"service"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type PresetConfig struct {
	VideoKbps  int     `yaml:"video_kbps"`
	AudioKbps  int     `yaml:"audio_kbps"`
	SizeFactor float64 `yaml:"size_factor"`
}

// TierConfig limits use -1 for unlimited.
type TierConfig struct {
	MaxVideosPerMonth  int64 `yaml:"max_videos_per_month"`
	MaxStorageMB       int64 `yaml:"max_storage_mb"`
	MaxDurationSeconds int64 `yaml:"max_duration_seconds"`
}

type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMs int `yaml:"base_delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms"`
}

// Settings is the validated, typed form of File.
type Settings struct {
	Catalog pipeline.Catalog
	Presets map[domain.Quality]pipeline.Preset
	Tiers   map[domain.Tier]domain.Limits
	Retry   pipeline.RetryPolicy
	// DefaultLanguage is a normalized base language code.
	DefaultLanguage string
}

// Default returns the built-in settings file.
func Default() File {
	return File{
		Steps: []StepConfig{
			{Name: "validation", Order: 1, Weight: 5, TimeoutSeconds: 30},
			{Name: "speech_synthesis", Order: 2, Weight: 20, TimeoutSeconds: 120},
			{Name: "image_animation", Order: 3, Weight: 35, TimeoutSeconds: 600},
			{Name: "lip_sync", Order: 4, Weight: 25, TimeoutSeconds: 600},
			{Name: "upscaling", Order: 5, Weight: 15, TimeoutSeconds: 300},
		},
		Presets: map[string]PresetConfig{
			"low":    {VideoKbps: 500, AudioKbps: 96, SizeFactor: 0.5},
			"medium": {VideoKbps: 1000, AudioKbps: 128, SizeFactor: 1.0},
			"high":   {VideoKbps: 2000, AudioKbps: 192, SizeFactor: 1.5},
		},
		Tiers: map[string]TierConfig{
			"free":    {MaxVideosPerMonth: 5, MaxStorageMB: 1024, MaxDurationSeconds: 60},
			"pro":     {MaxVideosPerMonth: 100, MaxStorageMB: 20 * 1024, MaxDurationSeconds: 600},
			"premium": {MaxVideosPerMonth: -1, MaxStorageMB: 100 * 1024, MaxDurationSeconds: -1},
		},
		Retry:           RetryConfig{MaxAttempts: 3, BaseDelayMs: 2000, MaxDelayMs: 30000},
		DefaultLanguage: domain.DefaultLanguage,
	}
}

// Load reads the settings file at path. An empty path yields the defaults.
// Sections missing from the file keep their default values.
func Load(path string) (*Settings, error) {
	file := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read pipeline config: %w", err)
		}
		if err := Parse(data, &file); err != nil {
			return nil, err
		}
	}
	return file.Build()
}

// Parse decodes YAML on top of file.
func Parse(data []byte, file *File) error {
	var raw File
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse pipeline config: %w", err)
	}
	if len(raw.Steps) > 0 {
		file.Steps = raw.Steps
	}
	if len(raw.Presets) > 0 {
		file.Presets = raw.Presets
	}
	if len(raw.Tiers) > 0 {
		file.Tiers = raw.Tiers
	}
	if raw.Retry != (RetryConfig{}) {
		file.Retry = raw.Retry
	}
	if strings.TrimSpace(raw.DefaultLanguage) != "" {
		file.DefaultLanguage = raw.DefaultLanguage
	}
	return nil
}

// Build validates the file and converts it to pipeline values.
func (f File) Build() (*Settings, error) {
	steps := make([]pipeline.Step, 0, len(f.Steps))
	for _, s := range f.Steps {
		if s.TimeoutSeconds < 0 {
			return nil, fmt.Errorf("step %q: timeout_seconds must not be negative", s.Name)
		}
		steps = append(steps, pipeline.Step{
			Name:         s.Name,
			DisplayOrder: s.Order,
			Weight:       s.Weight,
			Service:      strings.TrimSpace(s.Service),
			Timeout:      time.Duration(s.TimeoutSeconds) * time.Second,
		})
	}
	catalog, err := pipeline.NewCatalog(steps...)
	if err != nil {
		return nil, err
	}

	presets := make(map[domain.Quality]pipeline.Preset, len(f.Presets))
	for name, p := range f.Presets {
		q := domain.Quality(strings.ToLower(strings.TrimSpace(name)))
		switch q {
		case domain.QualityLow, domain.QualityMedium, domain.QualityHigh:
		default:
			return nil, fmt.Errorf("quality preset %q: unknown quality", name)
		}
		if p.VideoKbps <= 0 || p.AudioKbps < 0 || p.SizeFactor <= 0 {
			return nil, fmt.Errorf("quality preset %q: bitrates and size_factor must be positive", name)
		}
		presets[q] = pipeline.Preset{VideoKbps: p.VideoKbps, AudioKbps: p.AudioKbps, SizeFactor: p.SizeFactor}
	}
	if _, ok := presets[domain.DefaultQuality]; !ok {
		return nil, fmt.Errorf("quality preset %q is required", domain.DefaultQuality)
	}

	tiers := make(map[domain.Tier]domain.Limits, len(f.Tiers))
	for name, t := range f.Tiers {
		tier := domain.Tier(strings.ToLower(strings.TrimSpace(name)))
		switch tier {
		case domain.TierFree, domain.TierPro, domain.TierPremium:
		default:
			return nil, fmt.Errorf("tier %q: unknown tier", name)
		}
		limits := domain.Limits{
			MaxVideosPerMonth:       t.MaxVideosPerMonth,
			MaxStorageBytes:         t.MaxStorageMB,
			MaxVideoDurationSeconds: t.MaxDurationSeconds,
		}
		if limits.MaxStorageBytes != domain.Unlimited {
			limits.MaxStorageBytes *= bytesPerMB
		}
		for field, v := range map[string]int64{
			"max_videos_per_month": t.MaxVideosPerMonth,
			"max_storage_mb":       t.MaxStorageMB,
			"max_duration_seconds": t.MaxDurationSeconds,
		} {
			if v < domain.Unlimited {
				return nil, fmt.Errorf("tier %q: %s must be -1 or non-negative", name, field)
			}
		}
		tiers[tier] = limits
	}
	if _, ok := tiers[domain.TierFree]; !ok {
		return nil, fmt.Errorf("tier %q is required", domain.TierFree)
	}

	lang, err := domain.NormalizeLanguage(f.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("default_language: %w", err)
	}

	if f.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry: max_attempts must be at least 1")
	}
	return &Settings{
		DefaultLanguage: lang,
		Catalog:         catalog,
		Presets:         presets,
		Tiers:           tiers,
		Retry: pipeline.RetryPolicy{
			MaxAttempts: f.Retry.MaxAttempts,
			BaseDelay:   time.Duration(f.Retry.BaseDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(f.Retry.MaxDelayMs) * time.Millisecond,
		},
	}, nil
}
