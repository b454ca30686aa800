package model

import "time"

// Report is the structured output record for one location. Every numeric
// field is a plain float64 or int: all conversion from internal grid types
// happens once, at the pipeline's output-assembly point, so nothing
// runtime-specific ever reaches a serialized form.
type Report struct {
	Location      Location           `json:"location"`
	CriticalSpots []CriticalSpot     `json:"critical_priority_spots"`
	Coverage      CoverageStats      `json:"land_coverage"`
	Components    []ComponentAverage `json:"component_scores"`
	Distribution  []TierStats        `json:"priority_distribution"`
	StreetCounts  map[string]int     `json:"street_network"`
	AmenityCount  int                `json:"amenities"`
	Metadata      ReportMetadata     `json:"metadata"`
}

// CoverageStats summarizes land coverage by category.
type CoverageStats struct {
	TotalAreaM2      float64 `json:"total_area_m2"`
	BuildingAreaM2   float64 `json:"building_area_m2"`
	BuildingPct      float64 `json:"building_pct"`
	VegetationAreaM2 float64 `json:"vegetation_area_m2"`
	VegetationPct    float64 `json:"vegetation_pct"`
	StreetAreaM2     float64 `json:"street_area_m2"`
	StreetPct        float64 `json:"street_pct"`
	PlantableAreaM2  float64 `json:"plantable_area_m2"`
	PlantablePct     float64 `json:"plantable_pct"`
}

// ComponentAverage reports one scoring component's mean value against its
// configured maximum.
type ComponentAverage struct {
	Name    string  `json:"name"`
	Average float64 `json:"average"`
	Maximum float64 `json:"maximum"`
}

// TierStats reports the pixel population of one priority tier.
type TierStats struct {
	Tier   string  `json:"tier"`
	Pixels int     `json:"pixels"`
	AreaM2 float64 `json:"area_m2"`
	Pct    float64 `json:"pct"`
}

// ReportMetadata records when and with which alignment constants the
// analysis ran.
type ReportMetadata struct {
	GeneratedAt    time.Time `json:"generated_at"`
	AlignmentScale float64   `json:"alignment_scale"`
	OffsetNorthM   float64   `json:"offset_north_m"`
	OffsetEastM    float64   `json:"offset_east_m"`
	RasterWidth    int       `json:"raster_width"`
	RasterHeight   int       `json:"raster_height"`
	MetersPerPixel float64   `json:"meters_per_pixel"`
}
