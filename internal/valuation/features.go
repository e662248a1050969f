// Package valuation implements the appraisal pipeline for space tokens:
// deterministic feature extraction from raw space attributes and a
// multi-factor pricing engine that folds in rolling market statistics.
package valuation

import (
	"math"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// Normalization scale constants. Each feature dimension is divided by its
// scale and clamped to [0,1].
const (
	// sizeScale is the footprint in square meters that maps to a full
	// size score under log scaling.
	sizeScale = 10_000.0
	// roomScale and objectScale bound the sqrt-scaled count scores.
	// Doubling a count must not double the score.
	roomScale   = 50.0
	objectScale = 200.0
	// trafficScale is the per-period visit count that maps to a full
	// traffic score.
	trafficScale = 1_000.0
	// tagScale is the feature-tag count that maps to a full feature score.
	tagScale = 10.0
)

// neutralScore is substituted for any dimension whose source attribute is
// absent, so valuation always produces a usable estimate.
const neutralScore = 0.5

// FeatureVector is the fixed-size numeric representation of a space. Every
// dimension is normalized to [0,1].
type FeatureVector struct {
	Size     float64 // log-scaled footprint
	Rooms    float64 // sqrt-scaled room count
	Objects  float64 // sqrt-scaled object count
	Style    float64 // style desirability
	Scarcity float64 // style rarity
	Traffic  float64 // mean visit rate
	Features float64 // feature-tag count
	Location float64 // positional quality
	Verified float64 // 1.0 verified, neutral otherwise
}

// styleScores ranks how sought-after each style currently is, and
// styleScarcity how rarely it is minted. Both feed the base value.
var (
	styleScores = map[domain.SpaceStyle]float64{
		domain.StyleModern:     0.6,
		domain.StyleFuturistic: 0.8,
		domain.StyleNatural:    0.6,
		domain.StyleFantasy:    0.7,
		domain.StyleCyberpunk:  0.9,
		domain.StyleMinimalist: 0.5,
	}
	styleScarcity = map[domain.SpaceStyle]float64{
		domain.StyleModern:     0.2,
		domain.StyleFuturistic: 0.7,
		domain.StyleNatural:    0.4,
		domain.StyleFantasy:    0.8,
		domain.StyleCyberpunk:  0.9,
		domain.StyleMinimalist: 0.3,
	}
)

// Extract converts raw space attributes into a normalized feature vector.
// It is deterministic, has no side effects, and never fails: absent
// attributes produce the neutral score instead of an error.
func Extract(attrs domain.SpaceAttributes) FeatureVector {
	v := FeatureVector{
		Size:     neutralScore,
		Rooms:    neutralScore,
		Objects:  neutralScore,
		Style:    neutralScore,
		Scarcity: neutralScore,
		Traffic:  neutralScore,
		Features: neutralScore,
		Location: neutralScore,
		Verified: neutralScore,
	}

	if area := attrs.Dimensions.Area(); area > 0 {
		v.Size = clamp01(math.Log1p(area) / math.Log1p(sizeScale))
	}
	if attrs.RoomCount > 0 {
		v.Rooms = clamp01(math.Sqrt(float64(attrs.RoomCount)) / math.Sqrt(roomScale))
	}
	if attrs.ObjectCount > 0 {
		v.Objects = clamp01(math.Sqrt(float64(attrs.ObjectCount)) / math.Sqrt(objectScale))
	}

	if s, ok := styleScores[attrs.Style]; ok {
		v.Style = s
		v.Scarcity = styleScarcity[attrs.Style]
	}

	if len(attrs.TrafficHistory) > 0 {
		var sum int
		for _, n := range attrs.TrafficHistory {
			sum += n
		}
		mean := float64(sum) / float64(len(attrs.TrafficHistory))
		v.Traffic = clamp01(mean / trafficScale)
	}

	if n := len(attrs.FeatureTags); n > 0 {
		v.Features = clamp01(float64(n) / tagScale)
	}

	if attrs.Location != nil {
		v.Location = locationScore(*attrs.Location)
	}

	if attrs.Verified {
		v.Verified = 1.0
	}

	return v
}

// locationScore blends proximity, view, and access tier into [0,1].
func locationScore(loc domain.Location) float64 {
	score := 0.5 * clamp01(loc.TrafficProximity)
	if loc.HasView {
		score += 0.2
	}
	switch loc.AccessTier {
	case domain.AccessTierPremium:
		score += 0.3
	case domain.AccessTierStandard, "":
		score += 0.15
	case domain.AccessTierRemote:
		// no access contribution
	}
	return clamp01(score)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
