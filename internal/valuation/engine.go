package valuation

import (
	"math"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// Factor weights for the base value. They sum to 1.0.
const (
	weightLocation = 0.25
	weightDesign   = 0.25
	weightTraffic  = 0.20
	weightFeatures = 0.15
	weightScarcity = 0.15
)

// Market adjustment bounds and defaults.
const (
	// supplyFloor prevents division blow-up when active supply is near zero.
	supplyFloor = 0.1
	// minAdjustment and maxAdjustment keep a distorted market from
	// producing absurd estimates.
	minAdjustment = 0.25
	maxAdjustment = 4.0
	// supplyScale normalizes the active listing count per category.
	supplyScale = 20.0
	// demandScale normalizes the recent transaction count per category.
	demandScale = 20.0
)

// featurePremiumCeiling caps the additive markup from premium tags so tag
// spam cannot inflate a valuation without bound.
const (
	featurePremiumCeiling = 0.2
	premiumPerTag         = 0.05
)

// premiumTags is the fixed table of feature tags that carry a markup.
var premiumTags = map[string]bool{
	"skylight": true,
	"hologram": true,
	"garden":   true,
	"fountain": true,
	"gallery":  true,
	"stage":    true,
}

// Confidence starts high and is discounted by fixed penalties.
const (
	baseConfidence        = 0.95
	thinHistoryPenalty    = 0.20 // fewer than thinHistorySamples transactions
	extremeTrendPenalty   = 0.15 // trend swing beyond extremeTrendSwing
	unverifiedTagsPenalty = 0.10 // more than maxUnverifiedTags unverified tags
	sparseTrafficPenalty  = 0.10 // fewer than sparseTrafficSamples samples
	thinHistorySamples    = 10
	extremeTrendSwing     = 0.5
	maxUnverifiedTags     = 3
	sparseTrafficSamples  = 5
)

// Scorer reduces a feature vector to a single quality score in [0,1]. The
// engine ships with the weighted scorer but accepts alternatives.
type Scorer interface {
	Score(v FeatureVector) float64
}

// WeightedScorer is the default scorer: a fixed-weight linear blend of the
// vector's quality dimensions.
type WeightedScorer struct{}

// Score implements Scorer.
func (WeightedScorer) Score(v FeatureVector) float64 {
	// Design blends style with the diminishing-returns room and object
	// scores: a space twice as full is not twice as well designed.
	design := 0.4*v.Style + 0.3*v.Rooms + 0.3*v.Objects
	return weightLocation*v.Location +
		weightDesign*design +
		weightTraffic*v.Traffic +
		weightFeatures*v.Features +
		weightScarcity*v.Scarcity
}

// Config holds the tunable pricing parameters of the engine.
type Config struct {
	// BasePrice is the reference price in cents that a full-score space
	// would fetch before market and size adjustments.
	BasePrice int64
	// MinValue floors the final estimate in cents.
	MinValue int64
	// NeutralDemand and NeutralSupply are the deterministic defaults used
	// when a category has no market history.
	NeutralDemand float64
	NeutralSupply float64
}

// DefaultConfig returns the standard pricing parameters.
func DefaultConfig() Config {
	return Config{
		BasePrice:     100_000, // $1,000.00
		MinValue:      1_000,   // $10.00
		NeutralDemand: 1.0,
		NeutralSupply: 1.0,
	}
}

// Engine produces price estimates for space tokens. It is stateless apart
// from its configuration; market statistics are passed per call so the same
// engine instance serves concurrent callers.
type Engine struct {
	cfg    Config
	scorer Scorer
}

// NewEngine creates an Engine with the given config and the default weighted
// scorer.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, scorer: WeightedScorer{}}
}

// WithScorer replaces the scoring function. Returns the engine for chaining.
func (e *Engine) WithScorer(s Scorer) *Engine {
	e.scorer = s
	return e
}

// Assess produces a price estimate for the given space under the given
// market statistics. It is deterministic, never fails, and substitutes
// neutral defaults for any missing attribute.
//
// Pipeline: weighted base value with log size scaling, then market
// adjustment demand/max(0.1, supply) x (1 + trend), then location factor,
// then capped feature premium, floored at the configured minimum.
func (e *Engine) Assess(attrs domain.SpaceAttributes, stats domain.MarketStats) domain.ValuationResult {
	v := Extract(attrs)

	// Base value: quality score scaled by the reference price, with
	// logarithmic size scaling on top so footprint has diminishing returns.
	sizeMult := 1.0 + v.Size
	base := float64(e.cfg.BasePrice) * e.scorer.Score(v) * sizeMult

	adjustment := e.marketAdjustment(stats)
	locFactor := e.locationFactor(attrs)
	premium := featurePremium(attrs.FeatureTags)

	value := base * adjustment * locFactor * (1 + premium)
	cents := int64(math.Round(value))
	if cents < e.cfg.MinValue {
		cents = e.cfg.MinValue
	}

	return domain.ValuationResult{
		Value:            cents,
		BaseValue:        base,
		MarketAdjustment: adjustment,
		LocationFactor:   locFactor,
		FeaturePremium:   premium,
		Confidence:       confidence(attrs, stats),
	}
}

// marketAdjustment derives demand and supply levels from the category's
// rolling statistics. Demand follows recent transaction velocity, supply the
// count of active listings. With no history both sides fall back to the
// configured neutral defaults, yielding an adjustment of (1 + trend).
func (e *Engine) marketAdjustment(stats domain.MarketStats) float64 {
	demand := e.cfg.NeutralDemand
	supply := e.cfg.NeutralSupply

	if stats.SampleCount > 0 {
		demand += float64(stats.SampleCount) / demandScale
	}
	if stats.ActiveSupply > 0 {
		supply += float64(stats.ActiveSupply) / supplyScale
	}

	adj := demand / math.Max(supplyFloor, supply)
	adj *= 1 + stats.Trend

	if adj < minAdjustment {
		adj = minAdjustment
	}
	if adj > maxAdjustment {
		adj = maxAdjustment
	}
	return adj
}

// locationFactor is a multiplicative premium or discount from the declared
// location attributes. Absent location defaults to a neutral 1.0.
func (e *Engine) locationFactor(attrs domain.SpaceAttributes) float64 {
	if attrs.Location == nil {
		return 1.0
	}
	loc := *attrs.Location

	factor := 1.0 + 0.3*clamp01(loc.TrafficProximity)
	if loc.HasView {
		factor += 0.1
	}
	switch loc.AccessTier {
	case domain.AccessTierPremium:
		factor += 0.1
	case domain.AccessTierRemote:
		factor -= 0.1
	}
	return factor
}

// featurePremium returns the additive fractional markup from premium-
// triggering tags, capped at the fixed ceiling.
func featurePremium(tags []string) float64 {
	premium := 0.0
	for _, tag := range tags {
		if premiumTags[tag] {
			premium += premiumPerTag
		}
	}
	if premium > featurePremiumCeiling {
		premium = featurePremiumCeiling
	}
	return premium
}

// confidence scores how much to trust the estimate. It is informational
// only and never blocks a marketplace operation.
func confidence(attrs domain.SpaceAttributes, stats domain.MarketStats) float64 {
	c := baseConfidence

	if stats.SampleCount < thinHistorySamples {
		c -= thinHistoryPenalty
	}
	if math.Abs(stats.Trend) > extremeTrendSwing {
		c -= extremeTrendPenalty
	}
	if unverifiedTagCount(attrs) > maxUnverifiedTags {
		c -= unverifiedTagsPenalty
	}
	if len(attrs.TrafficHistory) < sparseTrafficSamples {
		c -= sparseTrafficPenalty
	}

	if c < 0 {
		c = 0
	}
	return c
}

// unverifiedTagCount counts feature tags that are not in the verified set.
func unverifiedTagCount(attrs domain.SpaceAttributes) int {
	verified := make(map[string]bool, len(attrs.VerifiedTags))
	for _, t := range attrs.VerifiedTags {
		verified[t] = true
	}
	n := 0
	for _, t := range attrs.FeatureTags {
		if !verified[t] {
			n++
		}
	}
	return n
}
