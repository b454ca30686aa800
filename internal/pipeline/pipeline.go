// Package pipeline runs the five analysis stages for a location and
// assembles the output report. One run owns all of its intermediate
// grids; nothing is shared between concurrent runs.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/canopy-cli/internal/align"
	"github.com/sells-group/canopy-cli/internal/config"
	"github.com/sells-group/canopy-cli/internal/detect"
	"github.com/sells-group/canopy-cli/internal/grid"
	"github.com/sells-group/canopy-cli/internal/model"
	"github.com/sells-group/canopy-cli/internal/priority"
	"github.com/sells-group/canopy-cli/internal/rasterize"
	"github.com/sells-group/canopy-cli/internal/species"
	"github.com/sells-group/canopy-cli/internal/spots"
)

// Acquirer is the boundary to the out-of-process data sources. The
// pipeline itself performs no I/O: both inputs arrive fully resolved
// before the first stage runs.
type Acquirer interface {
	FetchRaster(ctx context.Context, loc model.Location) (*model.RasterBuffer, error)
	FetchGeometry(ctx context.Context, bounds model.BBox) (*model.GeometryCollection, error)
}

// Pipeline executes the scoring stages with a fixed configuration.
type Pipeline struct {
	cfg *config.Config
}

// New builds a pipeline with the given configuration.
func New(cfg *config.Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Run scores one location from pre-fetched inputs. On context expiry the
// run is abandoned atomically: the error return is the only output, and
// no partial grid or spot list is ever surfaced.
func (p *Pipeline) Run(ctx context.Context, loc model.Location, raster *model.RasterBuffer, gc *model.GeometryCollection) (*model.Report, error) {
	start := time.Now()

	if err := raster.Validate(); err != nil {
		return nil, err
	}

	tr := rasterize.NewTransform(raster)

	// Stage 1: alignment.
	aligned := align.Align(gc, raster.Bounds, p.cfg.Alignment)
	if err := checkpoint(ctx, "align"); err != nil {
		return nil, err
	}

	// Stage 2: raster feature detection.
	feats := detect.Detect(raster, p.cfg.Detection)
	if err := checkpoint(ctx, "detect"); err != nil {
		return nil, err
	}

	// Stage 3: vector mask generation.
	masks := rasterize.Rasterize(aligned, tr, p.cfg.Buffering)
	if err := checkpoint(ctx, "rasterize"); err != nil {
		return nil, err
	}

	// Stage 4: priority scoring.
	scored := priority.Compute(feats, masks, aligned.Amenities, tr, p.cfg.Scoring, p.cfg.Classification)
	if err := checkpoint(ctx, "score"); err != nil {
		return nil, err
	}

	// Stage 5: critical spot extraction.
	critical := spots.Extract(scored.CriticalMask(), scored.Score, tr, p.cfg.Extraction)
	if err := checkpoint(ctx, "extract"); err != nil {
		return nil, err
	}

	report := p.assemble(loc, raster, aligned, feats, masks, scored, critical)

	zap.L().Info("location scored",
		zap.String("location", loc.Name),
		zap.Int("critical_spots", len(report.CriticalSpots)),
		zap.Float64("plantable_pct", report.Coverage.PlantablePct),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// checkpoint enforces the run budget between stages.
func checkpoint(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrapf(model.ErrTimeout, "pipeline: aborted after %s stage", stage)
	}
	return nil
}

// assemble is the single conversion point from grid types to the plain
// report record.
func (p *Pipeline) assemble(loc model.Location, raster *model.RasterBuffer,
	aligned *align.AlignedGeometry, feats *detect.Features, masks *rasterize.Masks,
	scored *priority.Grid, critical []model.CriticalSpot) *model.Report {

	pxArea := raster.MetersPerPixel * raster.MetersPerPixel
	total := float64(raster.Width * raster.Height)

	for i := range critical {
		critical[i].SuggestedSpecies = species.Suggest(critical[i].AreaM2).Common
	}

	buildingPx := masks.Buildings.Count()
	vegPx := feats.Vegetation.Count()
	streetPx := masks.Streets.Count()
	plantablePx := scored.Plantable.Count()

	coverage := model.CoverageStats{
		TotalAreaM2:      total * pxArea,
		BuildingAreaM2:   float64(buildingPx) * pxArea,
		BuildingPct:      float64(buildingPx) / total * 100,
		VegetationAreaM2: float64(vegPx) * pxArea,
		VegetationPct:    float64(vegPx) / total * 100,
		StreetAreaM2:     float64(streetPx) * pxArea,
		StreetPct:        float64(streetPx) / total * 100,
		PlantableAreaM2:  float64(plantablePx) * pxArea,
		PlantablePct:     float64(plantablePx) / total * 100,
	}

	components := []model.ComponentAverage{
		{Name: "sidewalk_proximity", Average: grid.Mean(scored.Components.Sidewalk), Maximum: p.cfg.Scoring.SidewalkMaxPts},
		{Name: "building_cooling", Average: grid.Mean(scored.Components.Building), Maximum: p.cfg.Scoring.BuildingMaxPts},
		{Name: "sun_exposure", Average: grid.Mean(scored.Components.Sun), Maximum: p.cfg.Scoring.SunMaxPts},
		{Name: "amenity_density", Average: grid.Mean(scored.Components.Amenity), Maximum: p.cfg.Scoring.AmenityMaxPts},
	}

	tierPixels := map[priority.Tier]int{}
	for y := 0; y < scored.Height; y++ {
		for x := 0; x < scored.Width; x++ {
			tierPixels[scored.TierAt(x, y)]++
		}
	}
	var distribution []model.TierStats
	for _, tier := range []priority.Tier{priority.TierCritical, priority.TierHigh, priority.TierMedium, priority.TierLow} {
		n := tierPixels[tier]
		distribution = append(distribution, model.TierStats{
			Tier:   string(tier),
			Pixels: n,
			AreaM2: float64(n) * pxArea,
			Pct:    float64(n) / total * 100,
		})
	}

	streetCounts := map[string]int{}
	for _, tier := range align.Tiers {
		streetCounts[string(tier)] = len(aligned.Streets[tier])
	}

	return &model.Report{
		Location:      loc,
		CriticalSpots: critical,
		Coverage:      coverage,
		Components:    components,
		Distribution:  distribution,
		StreetCounts:  streetCounts,
		AmenityCount:  len(aligned.Amenities),
		Metadata: model.ReportMetadata{
			GeneratedAt:    time.Now().UTC(),
			AlignmentScale: p.cfg.Alignment.Scale,
			OffsetNorthM:   p.cfg.Alignment.OffsetNorthM,
			OffsetEastM:    p.cfg.Alignment.OffsetEastM,
			RasterWidth:    raster.Width,
			RasterHeight:   raster.Height,
			MetersPerPixel: raster.MetersPerPixel,
		},
	}
}
