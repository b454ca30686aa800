// Package priority combines the feature grids into one bounded score
// grid and classifies every pixel into a priority tier. It is a pure
// function of its inputs: no I/O, no ambient state, no randomness.
package priority

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/canopy-cli/internal/align"
	"github.com/sells-group/canopy-cli/internal/config"
	"github.com/sells-group/canopy-cli/internal/detect"
	"github.com/sells-group/canopy-cli/internal/grid"
	"github.com/sells-group/canopy-cli/internal/rasterize"
)

// Tier is one of the four ordered priority classes.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
)

// Components holds the four independently computed score component
// grids, kept for auditing and report aggregation.
type Components struct {
	Sidewalk *mat.Dense
	Building *mat.Dense
	Sun      *mat.Dense
	Amenity  *mat.Dense
}

// Grid is the scored raster: the raw pre-mask sum, the final masked
// score, and the per-pixel tier labels.
type Grid struct {
	Width, Height int
	// Raw is the component sum before the non-plantable override, kept
	// so zeroed pixels stay auditable.
	Raw *mat.Dense
	// Score equals Raw except where the non-plantable override forced
	// the pixel to zero.
	Score *mat.Dense
	// Plantable marks pixels the override did NOT zero.
	Plantable  *grid.Mask
	Components Components

	tiers []Tier
}

// TierAt returns the priority tier label of the pixel at (x, y).
func (g *Grid) TierAt(x, y int) Tier {
	return g.tiers[y*g.Width+x]
}

// CriticalMask returns the boolean grid of top-tier pixels.
func (g *Grid) CriticalMask() *grid.Mask {
	m := grid.NewMask(g.Width, g.Height)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if g.tiers[y*g.Width+x] == TierCritical {
				m.Set(x, y, true)
			}
		}
	}
	return m
}

// Compute scores every pixel. The non-plantable override (building,
// street, or vegetation present) is applied strictly after the four
// components are summed, never before.
func Compute(feats *detect.Features, masks *rasterize.Masks, amenities []align.Point,
	t *rasterize.Transform, scoring config.ScoringConfig, class config.ClassificationConfig) *Grid {

	w, h := t.Width, t.Height

	comps := Components{
		Sidewalk: bandGrid(masks.SidewalkDistM, scoring.SidewalkBands),
		Building: bandGrid(masks.BuildingDistM, scoring.BuildingBands),
		Sun:      bandGrid(feats.ShadowIntensity, scoring.SunBands),
		Amenity:  amenityDensity(amenities, t, scoring),
	}

	raw := grid.NewDense(w, h)
	score := grid.NewDense(w, h)
	plantable := grid.NewMask(w, h)
	tiers := make([]Tier, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := comps.Sidewalk.At(y, x) + comps.Building.At(y, x) +
				comps.Sun.At(y, x) + comps.Amenity.At(y, x)
			raw.Set(y, x, sum)

			blocked := masks.Buildings.At(x, y) || masks.Streets.At(x, y) || feats.Vegetation.At(x, y)
			if blocked {
				sum = 0
			} else {
				plantable.Set(x, y, true)
			}
			score.Set(y, x, sum)
			tiers[y*w+x] = Classify(sum, class)
		}
	}

	return &Grid{
		Width:      w,
		Height:     h,
		Raw:        raw,
		Score:      score,
		Plantable:  plantable,
		Components: comps,
		tiers:      tiers,
	}
}

// Classify maps a score to its priority tier by the configured cutoffs.
func Classify(score float64, class config.ClassificationConfig) Tier {
	switch {
	case score >= class.CriticalCutoff:
		return TierCritical
	case score >= class.HighCutoff:
		return TierHigh
	case score >= class.MediumCutoff:
		return TierMedium
	default:
		return TierLow
	}
}

// bandGrid maps every cell of a value grid through the score bands.
func bandGrid(values *mat.Dense, bands []config.Band) *mat.Dense {
	rows, cols := values.Dims()
	out := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			out.Set(y, x, bandPoints(values.At(y, x), bands))
		}
	}
	return out
}

// bandPoints returns the points of the first band whose upper bound
// exceeds the value. Values past the last band, including +Inf from an
// empty distance field, score zero.
func bandPoints(v float64, bands []config.Band) float64 {
	for _, b := range bands {
		if v < b.UpTo {
			return b.Points
		}
	}
	return 0
}

// amenityDensity computes the Gaussian-falloff point-of-interest density
// grid, normalized so a pixel sitting on a single amenity earns the full
// component weight.
func amenityDensity(amenities []align.Point, t *rasterize.Transform, scoring config.ScoringConfig) *mat.Dense {
	out := grid.NewDense(t.Width, t.Height)
	if len(amenities) == 0 || scoring.AmenityRadiusM <= 0 || scoring.AmenityMaxPts <= 0 {
		return out
	}

	sigma := scoring.AmenityRadiusM / 2
	rPx := scoring.AmenityRadiusM / t.MetersPerPixel

	for _, a := range amenities {
		ax, ay := t.MetricToPixel(a)
		x0 := clampInt(int(math.Floor(ax-rPx)), 0, t.Width-1)
		x1 := clampInt(int(math.Ceil(ax+rPx)), 0, t.Width-1)
		y0 := clampInt(int(math.Floor(ay-rPx)), 0, t.Height-1)
		y1 := clampInt(int(math.Ceil(ay+rPx)), 0, t.Height-1)

		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				dx := (float64(x) + 0.5 - ax) * t.MetersPerPixel
				dy := (float64(y) + 0.5 - ay) * t.MetersPerPixel
				dSq := dx*dx + dy*dy
				if dSq > scoring.AmenityRadiusM*scoring.AmenityRadiusM {
					continue
				}
				out.Set(y, x, out.At(y, x)+math.Exp(-dSq/(2*sigma*sigma)))
			}
		}
	}

	// Normalize the accumulated density to the component's max weight.
	rows, cols := out.Dims()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			out.Set(y, x, math.Min(out.At(y, x), 1)*scoring.AmenityMaxPts)
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
