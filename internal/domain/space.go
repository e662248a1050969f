package domain

// SpaceStyle is the declared visual style of a virtual space. Styles double
// as market categories for statistics and valuation.
type SpaceStyle string

const (
	StyleModern     SpaceStyle = "modern"
	StyleFuturistic SpaceStyle = "futuristic"
	StyleNatural    SpaceStyle = "natural"
	StyleFantasy    SpaceStyle = "fantasy"
	StyleCyberpunk  SpaceStyle = "cyberpunk"
	StyleMinimalist SpaceStyle = "minimalist"
)

// SupportedStyles lists every style the platform recognizes. Unknown styles
// fall back to StyleModern during feature extraction.
var SupportedStyles = []SpaceStyle{
	StyleModern, StyleFuturistic, StyleNatural,
	StyleFantasy, StyleCyberpunk, StyleMinimalist,
}

// Default attribute values applied when a field is absent.
const (
	DefaultRoomCount   = 3
	DefaultObjectCount = 20
	DefaultStyle       = StyleModern
)

// Dimensions holds the width, height, and depth of a space in meters.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

// Area returns the footprint of the space in square meters.
func (d Dimensions) Area() float64 {
	return d.Width * d.Depth
}

// AccessTier grades how reachable a space is from the main hubs.
type AccessTier string

const (
	AccessTierPremium  AccessTier = "premium"
	AccessTierStandard AccessTier = "standard"
	AccessTierRemote   AccessTier = "remote"
)

// Location describes the positional attributes of a space that drive the
// valuation location factor. A zero Location yields a neutral factor of 1.0.
type Location struct {
	// TrafficProximity in [0,1]: closeness to high-traffic zones.
	TrafficProximity float64 `json:"traffic_proximity"`
	// HasView is true when the space faces an open vista.
	HasView bool `json:"has_view"`
	// AccessTier grades accessibility; empty means standard.
	AccessTier AccessTier `json:"access_tier"`
}

// SpaceAttributes is the raw attribute set of a space token as reported by
// the registry. All fields are optional; the valuation engine substitutes
// documented neutral defaults for anything missing.
type SpaceAttributes struct {
	AssetID        string     `json:"asset_id"`
	Dimensions     Dimensions `json:"dimensions"`
	RoomCount      int        `json:"room_count"`
	ObjectCount    int        `json:"object_count"`
	Style          SpaceStyle `json:"style"`
	FeatureTags    []string   `json:"feature_tags"`
	VerifiedTags   []string   `json:"verified_tags"`
	TrafficHistory []int      `json:"traffic_history"` // per-period visit counts
	Verified       bool       `json:"verified"`
	Location       *Location  `json:"location,omitempty"`
}

// Category returns the market statistics category for this space. Spaces are
// bucketed by style.
func (a SpaceAttributes) Category() string {
	if a.Style == "" {
		return string(DefaultStyle)
	}
	return string(a.Style)
}
