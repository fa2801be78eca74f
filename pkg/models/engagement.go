package models

import "time"

// Platform identifies a publishing destination.
type Platform string

const (
	PlatformFanvue    Platform = "fanvue"
	PlatformLoyalFans Platform = "loyalfans"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformTikTok    Platform = "tiktok"
)

// KnownPlatforms lists every platform the orchestrator schedules for.
var KnownPlatforms = []Platform{
	PlatformFanvue,
	PlatformLoyalFans,
	PlatformInstagram,
	PlatformTwitter,
	PlatformTikTok,
}

func (p Platform) Valid() bool {
	for _, known := range KnownPlatforms {
		if p == known {
			return true
		}
	}

	return false
}

// EngagementSample is one observed engagement data point. Samples are
// append-only; the predictor is their only consumer.
type EngagementSample struct {
	Platform   Platform     `json:"platform"    validate:"required"`
	Weekday    time.Weekday `json:"weekday"     validate:"gte=0,lte=6"`
	Hour       int          `json:"hour"        validate:"gte=0,lte=23"`
	Rate       float64      `json:"rate"        validate:"gte=0,lte=1"`
	ObservedAt time.Time    `json:"observed_at"`
}

// SlotRecommendation is one ranked posting slot. Derived on demand from the
// sample set, never stored.
type SlotRecommendation struct {
	Weekday    time.Weekday `json:"weekday"`
	Hour       int          `json:"hour"`
	Score      float64      `json:"score"`
	Confidence float64      `json:"confidence"`
	Samples    int          `json:"samples"`
}
