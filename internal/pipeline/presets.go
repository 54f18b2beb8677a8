package pipeline

import (
	"context"
	"fmt"

	"videojobs/internal/domain"
)

// PresetInfo describes a quality preset to clients.
type PresetInfo struct {
	Quality        domain.Quality `json:"quality"`
	VideoKbps      int            `json:"video_kbps"`
	AudioKbps      int            `json:"audio_kbps"`
	SizeFactor     float64        `json:"size_factor"`
	BytesPerMinute int64          `json:"bytes_per_minute"`
}

// EstimateRequest asks what a job with these settings would cost.
type EstimateRequest struct {
	AccountID       string
	Quality         domain.Quality
	DurationSeconds int
	InputBytes      int64
}

// Estimate is the projected output size and the admission outcome a job with
// the requested settings would get right now.
type Estimate struct {
	Quality              domain.Quality   `json:"quality"`
	DurationSeconds      int              `json:"duration_seconds"`
	EstimatedOutputBytes int64            `json:"estimated_output_bytes"`
	Allowed              bool             `json:"allowed"`
	Kind                 domain.ErrorKind `json:"kind,omitempty"`
	Reason               string           `json:"reason,omitempty"`
}

var presetOrder = []domain.Quality{domain.QualityLow, domain.QualityMedium, domain.QualityHigh}

// Presets lists the configured presets from lowest to highest quality.
func (a *Admission) Presets() []PresetInfo {
	out := make([]PresetInfo, 0, len(a.presets))
	for _, q := range presetOrder {
		p, ok := a.presets[q]
		if !ok {
			continue
		}
		out = append(out, PresetInfo{
			Quality:        q,
			VideoKbps:      p.VideoKbps,
			AudioKbps:      p.AudioKbps,
			SizeFactor:     p.SizeFactor,
			BytesPerMinute: p.EstimateBytes(60),
		})
	}
	return out
}

func (s *JobService) Presets() []PresetInfo {
	return s.admission.Presets()
}

// Estimate runs admission against the account's current usage without
// reserving anything.
func (s *JobService) Estimate(ctx context.Context, req EstimateRequest) (Estimate, error) {
	if req.InputBytes < 0 {
		return Estimate{}, fmt.Errorf("%w: input_bytes must not be negative", domain.ErrInvalidSettings)
	}
	settings := domain.Settings{Quality: req.Quality, DurationSeconds: req.DurationSeconds}
	settings.Normalize("")
	if err := settings.Validate(); err != nil {
		return Estimate{}, err
	}
	quota, err := s.Quota(ctx, req.AccountID)
	if err != nil {
		return Estimate{}, err
	}
	decision := s.admission.Admit(*quota, AdmissionRequest{Settings: settings, EstimatedInputBytes: req.InputBytes})
	return Estimate{
		Quality:              settings.Quality,
		DurationSeconds:      settings.DurationSeconds,
		EstimatedOutputBytes: decision.EstimatedOutputBytes,
		Allowed:              decision.Allowed,
		Kind:                 decision.Kind,
		Reason:               decision.Reason,
	}, nil
}
