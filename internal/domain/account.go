package domain

// Tier enumerates subscription tiers.
type Tier string

const (
	TierFree    Tier = "free"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
)

// Unlimited disables a limit.
const Unlimited int64 = -1

// Limits are derived from the subscription tier.
type Limits struct {
	MaxVideosPerMonth       int64 `json:"max_videos_per_month"`
	MaxStorageBytes         int64 `json:"max_storage_bytes"`
	MaxVideoDurationSeconds int64 `json:"max_video_duration_seconds"`
}

// Quota is a snapshot of an account's usage counters.
type Quota struct {
	AccountID        string `json:"account_id"`
	Tier             Tier   `json:"tier"`
	VideosThisMonth  int64  `json:"videos_this_month"`
	StorageUsedBytes int64  `json:"storage_used_bytes"`
	// Pending counters cover admitted jobs that have not reached a terminal state.
	PendingVideos int64  `json:"pending_videos"`
	PendingBytes  int64  `json:"pending_bytes"`
	Limits        Limits `json:"limits"`
}
