package pipeline

import (
	"fmt"

	"videojobs/internal/domain"
)

// Preset describes the encoding profile behind a quality level.
type Preset struct {
	VideoKbps  int
	AudioKbps  int
	SizeFactor float64
}

// EstimateBytes returns the expected output size for a video of the given length.
func (p Preset) EstimateBytes(seconds int) int64 {
	if seconds <= 0 {
		return 0
	}
	factor := p.SizeFactor
	if factor <= 0 {
		factor = 1
	}
	bits := float64(p.VideoKbps+p.AudioKbps) * 1000 * float64(seconds)
	return int64(bits / 8 * factor)
}

// DefaultPresets mirrors the encoder profiles used by the render services.
func DefaultPresets() map[domain.Quality]Preset {
	return map[domain.Quality]Preset{
		domain.QualityLow:    {VideoKbps: 500, AudioKbps: 96, SizeFactor: 0.5},
		domain.QualityMedium: {VideoKbps: 1000, AudioKbps: 128, SizeFactor: 1.0},
		domain.QualityHigh:   {VideoKbps: 2000, AudioKbps: 192, SizeFactor: 1.5},
	}
}

// AdmissionRequest describes a job that wants to start.
type AdmissionRequest struct {
	Settings            domain.Settings
	EstimatedInputBytes int64
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed              bool
	Kind                 domain.ErrorKind
	Reason               string
	EstimatedOutputBytes int64
}

// Err maps a rejection onto the matching sentinel error.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	var base error
	switch d.Kind {
	case domain.KindQuotaExceeded:
		base = domain.ErrQuotaExceeded
	case domain.KindStorageExceeded:
		base = domain.ErrStorageExceeded
	case domain.KindDurationExceeded:
		base = domain.ErrDurationExceeded
	default:
		base = domain.ErrInvalidSettings
	}
	return fmt.Errorf("%w: %s", base, d.Reason)
}

// Admission checks a job request against an account snapshot. It never mutates
// anything; committing the reservation is the caller's job.
type Admission struct {
	presets map[domain.Quality]Preset
}

// NewAdmission builds an Admission with the given quality presets.
func NewAdmission(presets map[domain.Quality]Preset) *Admission {
	if len(presets) == 0 {
		presets = DefaultPresets()
	}
	copied := make(map[domain.Quality]Preset, len(presets))
	for k, v := range presets {
		copied[k] = v
	}
	return &Admission{presets: copied}
}

// EstimateOutputBytes returns the projected artifact size for the settings.
func (a *Admission) EstimateOutputBytes(settings domain.Settings) int64 {
	preset, ok := a.presets[settings.Quality]
	if !ok {
		preset = a.presets[domain.DefaultQuality]
	}
	return preset.EstimateBytes(settings.DurationSeconds)
}

// Admit decides whether the request fits the account's limits.
func (a *Admission) Admit(quota domain.Quota, req AdmissionRequest) Decision {
	limits := quota.Limits
	output := a.EstimateOutputBytes(req.Settings)
	decision := Decision{EstimatedOutputBytes: output}

	if limits.MaxVideosPerMonth != domain.Unlimited &&
		quota.VideosThisMonth+quota.PendingVideos >= limits.MaxVideosPerMonth {
		decision.Kind = domain.KindQuotaExceeded
		decision.Reason = fmt.Sprintf("%d of %d videos used this month", quota.VideosThisMonth+quota.PendingVideos, limits.MaxVideosPerMonth)
		return decision
	}
	if limits.MaxStorageBytes != domain.Unlimited {
		projected := quota.StorageUsedBytes + quota.PendingBytes + req.EstimatedInputBytes + output
		if projected > limits.MaxStorageBytes {
			decision.Kind = domain.KindStorageExceeded
			decision.Reason = fmt.Sprintf("projected storage %d bytes exceeds limit %d", projected, limits.MaxStorageBytes)
			return decision
		}
	}
	if limits.MaxVideoDurationSeconds != domain.Unlimited &&
		int64(req.Settings.DurationSeconds) > limits.MaxVideoDurationSeconds {
		decision.Kind = domain.KindDurationExceeded
		decision.Reason = fmt.Sprintf("duration %ds exceeds limit %ds", req.Settings.DurationSeconds, limits.MaxVideoDurationSeconds)
		return decision
	}
	decision.Allowed = true
	return decision
}

// ReservationBytes is the storage held for a job between admission and completion.
func ReservationBytes(req AdmissionRequest, d Decision) int64 {
	return req.EstimatedInputBytes + d.EstimatedOutputBytes
}
