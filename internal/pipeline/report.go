package pipeline

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/canopy-cli/internal/model"
)

// FormatReport renders a human-readable planting analysis report.
func FormatReport(r *model.Report) string {
	var b strings.Builder
	p := message.NewPrinter(language.English)

	name := r.Location.Name
	if name == "" {
		name = fmt.Sprintf("%.5f, %.5f", r.Location.Latitude, r.Location.Longitude)
	}
	fmt.Fprintf(&b, "# Planting Analysis: %s\n", name)
	fmt.Fprintf(&b, "Center: %.5f, %.5f\n", r.Location.Latitude, r.Location.Longitude)
	fmt.Fprintf(&b, "Generated: %s\n\n", r.Metadata.GeneratedAt.Format("2006-01-02 15:04 UTC"))

	// Coverage.
	b.WriteString("## Land Coverage\n")
	fmt.Fprintf(&b, "- Total area: %s m²\n", p.Sprintf("%.0f", r.Coverage.TotalAreaM2))
	fmt.Fprintf(&b, "- Buildings: %s m² (%.1f%%)\n", p.Sprintf("%.0f", r.Coverage.BuildingAreaM2), r.Coverage.BuildingPct)
	fmt.Fprintf(&b, "- Vegetation: %s m² (%.1f%%)\n", p.Sprintf("%.0f", r.Coverage.VegetationAreaM2), r.Coverage.VegetationPct)
	fmt.Fprintf(&b, "- Streets: %s m² (%.1f%%)\n", p.Sprintf("%.0f", r.Coverage.StreetAreaM2), r.Coverage.StreetPct)
	fmt.Fprintf(&b, "- Plantable: %s m² (%.1f%%)\n\n", p.Sprintf("%.0f", r.Coverage.PlantableAreaM2), r.Coverage.PlantablePct)

	// Component averages.
	b.WriteString("## Score Components\n")
	for _, c := range r.Components {
		fmt.Fprintf(&b, "- %s: %.1f / %.0f\n", c.Name, c.Average, c.Maximum)
	}
	b.WriteString("\n")

	// Priority distribution.
	b.WriteString("## Priority Distribution\n")
	for _, tier := range r.Distribution {
		fmt.Fprintf(&b, "- %s: %s px (%.1f%%)\n", tier.Tier, p.Sprintf("%d", tier.Pixels), tier.Pct)
	}
	b.WriteString("\n")

	// Street network and amenities.
	b.WriteString("## Context\n")
	for _, tier := range []string{"pedestrian", "low_traffic", "medium_traffic", "high_traffic"} {
		fmt.Fprintf(&b, "- %s streets: %d\n", tier, r.StreetCounts[tier])
	}
	fmt.Fprintf(&b, "- amenities: %d\n\n", r.AmenityCount)

	// Critical spots.
	b.WriteString("## Critical Planting Spots\n")
	if len(r.CriticalSpots) == 0 {
		b.WriteString("No critical spots found.\n")
	} else {
		for _, s := range r.CriticalSpots {
			fmt.Fprintf(&b, "%d. (%.6f, %.6f) score %.1f, %s m²",
				s.ID, s.Latitude, s.Longitude, s.Score, p.Sprintf("%.1f", s.AreaM2))
			if s.SuggestedSpecies != "" {
				fmt.Fprintf(&b, ", plant %s", s.SuggestedSpecies)
			}
			b.WriteString("\n")
			if s.Context != nil {
				fmt.Fprintf(&b, "   Ground check: %s; %s\n", s.Context.Feasibility, s.Context.SidewalkSpace)
			}
		}
	}

	return b.String()
}
