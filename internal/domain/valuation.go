package domain

import "time"

// ValuationResult is the output of a single appraisal. It is a pure function
// of the space attributes and market statistics at the time of the call and
// is never persisted as authoritative state; listings snapshot AppraisedValue
// at creation or update time only.
type ValuationResult struct {
	Value            int64   `json:"value"` // cents
	BaseValue        float64 `json:"base_value"`
	MarketAdjustment float64 `json:"market_adjustment"`
	LocationFactor   float64 `json:"location_factor"`
	FeaturePremium   float64 `json:"feature_premium"`
	Confidence       float64 `json:"confidence"` // [0,1], informational only
}

// MarketStats is a read-only snapshot of the rolling statistics for one
// category.
type MarketStats struct {
	Category     string    `json:"category"`
	AveragePrice float64   `json:"average_price"` // cents
	SampleCount  int       `json:"sample_count"`
	Trend        float64   `json:"trend"` // signed fraction
	ActiveSupply int       `json:"active_supply"`
	UpdatedAt    time.Time `json:"updated_at"`
}
