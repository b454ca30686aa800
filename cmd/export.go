package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/canopy-cli/internal/model"
)

// writeXLSX writes the report to a workbook with one sheet per report
// section: summary, coverage, components, distribution, and spots.
func writeXLSX(report *model.Report, path string) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	addRow(summary, "Location", report.Location.Name)
	addRow(summary, "Latitude", fmt.Sprintf("%.6f", report.Location.Latitude))
	addRow(summary, "Longitude", fmt.Sprintf("%.6f", report.Location.Longitude))
	addRow(summary, "Generated", report.Metadata.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	addRow(summary, "Critical spots", fmt.Sprintf("%d", len(report.CriticalSpots)))
	addRow(summary, "Streets", fmt.Sprintf("%d", sumCounts(report.StreetCounts)))
	addRow(summary, "Amenities", fmt.Sprintf("%d", report.AmenityCount))

	coverage, err := f.AddSheet("Coverage")
	if err != nil {
		return eris.Wrap(err, "export: add coverage sheet")
	}
	addRow(coverage, "Category", "Area (m²)", "Share (%)")
	c := report.Coverage
	addFloatRow(coverage, "Buildings", c.BuildingAreaM2, c.BuildingPct)
	addFloatRow(coverage, "Vegetation", c.VegetationAreaM2, c.VegetationPct)
	addFloatRow(coverage, "Streets", c.StreetAreaM2, c.StreetPct)
	addFloatRow(coverage, "Plantable", c.PlantableAreaM2, c.PlantablePct)
	addFloatRow(coverage, "Total", c.TotalAreaM2, 100)

	components, err := f.AddSheet("Components")
	if err != nil {
		return eris.Wrap(err, "export: add components sheet")
	}
	addRow(components, "Component", "Average", "Maximum")
	for _, comp := range report.Components {
		addFloatRow(components, comp.Name, comp.Average, comp.Maximum)
	}

	distribution, err := f.AddSheet("Distribution")
	if err != nil {
		return eris.Wrap(err, "export: add distribution sheet")
	}
	addRow(distribution, "Tier", "Pixels", "Area (m²)", "Share (%)")
	for _, tier := range report.Distribution {
		row := distribution.AddRow()
		row.AddCell().Value = tier.Tier
		row.AddCell().SetInt(tier.Pixels)
		row.AddCell().SetFloat(tier.AreaM2)
		row.AddCell().SetFloat(tier.Pct)
	}

	spotsSheet, err := f.AddSheet("Critical Spots")
	if err != nil {
		return eris.Wrap(err, "export: add spots sheet")
	}
	addRow(spotsSheet, "ID", "Latitude", "Longitude", "Score", "Area (m²)", "Suggested Species")
	for _, spot := range report.CriticalSpots {
		row := spotsSheet.AddRow()
		row.AddCell().SetInt(spot.ID)
		row.AddCell().SetFloat(spot.Latitude)
		row.AddCell().SetFloat(spot.Longitude)
		row.AddCell().SetFloat(spot.Score)
		row.AddCell().SetFloat(spot.AreaM2)
		row.AddCell().Value = spot.SuggestedSpecies
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().Value = v
	}
}

func addFloatRow(sheet *xlsx.Sheet, label string, values ...float64) {
	row := sheet.AddRow()
	row.AddCell().Value = label
	for _, v := range values {
		row.AddCell().SetFloat(v)
	}
}

func sumCounts(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

// geoJSONFeature is one critical spot as a GeoJSON point feature.
type geoJSONFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type geoJSONCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

// writeGeoJSON writes the critical spots as a GeoJSON FeatureCollection
// of point features, suitable for loading into QGIS or a web map.
func writeGeoJSON(report *model.Report, path string) error {
	fc := geoJSONCollection{
		Type:     "FeatureCollection",
		Features: make([]geoJSONFeature, 0, len(report.CriticalSpots)),
	}

	for _, spot := range report.CriticalSpots {
		pt := geom.NewPointFlat(geom.XY, []float64{spot.Longitude, spot.Latitude})
		raw, err := geojson.Marshal(pt)
		if err != nil {
			return eris.Wrapf(err, "export: marshal spot %d geometry", spot.ID)
		}

		props := map[string]any{
			"spot_id":        spot.ID,
			"priority_score": spot.Score,
			"area_m2":        spot.AreaM2,
		}
		if spot.SuggestedSpecies != "" {
			props["suggested_species"] = spot.SuggestedSpecies
		}

		fc.Features = append(fc.Features, geoJSONFeature{
			Type:       "Feature",
			Geometry:   raw,
			Properties: props,
		})
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal feature collection")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "export: write geojson")
	}
	return nil
}
