package align

import "github.com/sells-group/canopy-cli/internal/config"

// Tier is a street traffic classification. Each tier carries its own
// buffer distance when streets are rasterized.
type Tier string

const (
	TierPedestrian Tier = "pedestrian"
	TierLow        Tier = "low_traffic"
	TierMedium     Tier = "medium_traffic"
	TierHigh       Tier = "high_traffic"
)

// Tiers lists all tiers in increasing traffic order.
var Tiers = []Tier{TierPedestrian, TierLow, TierMedium, TierHigh}

// highwayTiers maps OSM highway class values to traffic tiers. Classes
// not listed default to low traffic.
var highwayTiers = map[string]Tier{
	"pedestrian":     TierPedestrian,
	"footway":        TierPedestrian,
	"path":           TierPedestrian,
	"steps":          TierPedestrian,
	"cycleway":       TierPedestrian,
	"track":          TierPedestrian,
	"residential":    TierLow,
	"living_street":  TierLow,
	"service":        TierLow,
	"unclassified":   TierLow,
	"tertiary":       TierMedium,
	"tertiary_link":  TierMedium,
	"secondary":      TierMedium,
	"secondary_link": TierMedium,
	"primary":        TierHigh,
	"primary_link":   TierHigh,
	"trunk":          TierHigh,
	"trunk_link":     TierHigh,
	"motorway":       TierHigh,
	"motorway_link":  TierHigh,
}

// ClassifyStreet returns the traffic tier for a street class attribute.
func ClassifyStreet(class string) Tier {
	if tier, ok := highwayTiers[class]; ok {
		return tier
	}
	return TierLow
}

// BufferDistance returns the configured buffer distance in meters for a
// tier.
func BufferDistance(tier Tier, cfg config.BufferingConfig) float64 {
	switch tier {
	case TierPedestrian:
		return cfg.PedestrianM
	case TierLow:
		return cfg.LowM
	case TierMedium:
		return cfg.MediumM
	default:
		return cfg.HighM
	}
}
