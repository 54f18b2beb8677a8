package pipeline

import (
	"errors"
	"testing"

	"videojobs/internal/domain"
)

func TestAdmit(t *testing.T) {
	admission := NewAdmission(DefaultPresets())
	free := testTiers()[domain.TierFree]
	unlimited := testTiers()[domain.TierPremium]
	settings := domain.Settings{Quality: domain.QualityMedium, DurationSeconds: 30}

	tests := []struct {
		name     string
		quota    domain.Quota
		settings domain.Settings
		input    int64
		want     domain.ErrorKind
		sentinel error
	}{
		{name: "allowed", quota: domain.Quota{VideosThisMonth: 2, Limits: free}, settings: settings},
		{name: "quota exhausted", quota: domain.Quota{VideosThisMonth: 5, Limits: free}, settings: settings, want: domain.KindQuotaExceeded, sentinel: domain.ErrQuotaExceeded},
		{name: "pending counts toward quota", quota: domain.Quota{VideosThisMonth: 3, PendingVideos: 2, Limits: free}, settings: settings, want: domain.KindQuotaExceeded, sentinel: domain.ErrQuotaExceeded},
		{name: "storage exhausted", quota: domain.Quota{StorageUsedBytes: 1<<30 - 10, Limits: free}, settings: settings, want: domain.KindStorageExceeded, sentinel: domain.ErrStorageExceeded},
		{name: "input counts toward storage", quota: domain.Quota{Limits: free}, settings: settings, input: 1 << 30, want: domain.KindStorageExceeded, sentinel: domain.ErrStorageExceeded},
		{name: "duration too long", quota: domain.Quota{Limits: free}, settings: domain.Settings{Quality: domain.QualityLow, DurationSeconds: 301}, want: domain.KindDurationExceeded, sentinel: domain.ErrDurationExceeded},
		{name: "quota checked before duration", quota: domain.Quota{VideosThisMonth: 5, Limits: free}, settings: domain.Settings{Quality: domain.QualityLow, DurationSeconds: 301}, want: domain.KindQuotaExceeded, sentinel: domain.ErrQuotaExceeded},
		{name: "unlimited", quota: domain.Quota{VideosThisMonth: 1_000_000, StorageUsedBytes: 1 << 50, Limits: unlimited}, settings: domain.Settings{Quality: domain.QualityHigh, DurationSeconds: 36_000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := admission.Admit(tt.quota, AdmissionRequest{Settings: tt.settings, EstimatedInputBytes: tt.input})
			if tt.want == "" {
				if !d.Allowed {
					t.Fatalf("expected admission, got %s: %s", d.Kind, d.Reason)
				}
				if d.Err() != nil {
					t.Fatalf("Err() = %v", d.Err())
				}
				return
			}
			if d.Allowed || d.Kind != tt.want {
				t.Fatalf("decision = %+v, want kind %s", d, tt.want)
			}
			if !errors.Is(d.Err(), tt.sentinel) {
				t.Fatalf("Err() = %v, want %v", d.Err(), tt.sentinel)
			}
		})
	}
}

func TestAdmitIsPure(t *testing.T) {
	admission := NewAdmission(nil)
	quota := domain.Quota{VideosThisMonth: 4, Limits: testTiers()[domain.TierFree]}
	req := AdmissionRequest{Settings: domain.Settings{Quality: domain.QualityMedium, DurationSeconds: 30}}
	first := admission.Admit(quota, req)
	second := admission.Admit(quota, req)
	if first != second {
		t.Fatalf("decisions differ: %+v vs %+v", first, second)
	}
	if quota.VideosThisMonth != 4 {
		t.Fatalf("quota mutated")
	}
}

func TestPresetEstimateBytes(t *testing.T) {
	// (1000+128) kbps for 30s is 4.23MB at factor 1.0
	got := DefaultPresets()[domain.QualityMedium].EstimateBytes(30)
	if got != 4_230_000 {
		t.Fatalf("EstimateBytes = %d", got)
	}
	if DefaultPresets()[domain.QualityHigh].EstimateBytes(0) != 0 {
		t.Fatalf("zero duration should estimate zero bytes")
	}
	low := DefaultPresets()[domain.QualityLow].EstimateBytes(60)
	high := DefaultPresets()[domain.QualityHigh].EstimateBytes(60)
	if low >= high {
		t.Fatalf("low %d should be smaller than high %d", low, high)
	}
}
