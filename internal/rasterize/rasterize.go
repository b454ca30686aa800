package rasterize

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/canopy-cli/internal/align"
	"github.com/sells-group/canopy-cli/internal/config"
	"github.com/sells-group/canopy-cli/internal/grid"
)

// Masks holds every pixel-space product of the vector geometry: the
// exclusion masks and the metric distance fields the scorer reads.
type Masks struct {
	// Buildings marks pixels covered by a building footprint.
	Buildings *grid.Mask
	// StreetsByTier marks pixels within each tier's buffer distance of a
	// street centerline of that tier.
	StreetsByTier map[align.Tier]*grid.Mask
	// Streets is the union of all street tiers.
	Streets *grid.Mask
	// Sidewalk approximates walkable ground: pedestrian and low-traffic
	// centerlines buffered at the sidewalk distance.
	Sidewalk *grid.Mask
	// NonPlantable is buildings ∪ streets. Applied to scores only after
	// all components are summed, so masking never skews the field itself.
	NonPlantable *grid.Mask

	// SidewalkDistM and BuildingDistM give each pixel's distance in
	// meters to the nearest sidewalk / building pixel. +Inf where the
	// source mask is empty.
	SidewalkDistM *mat.Dense
	BuildingDistM *mat.Dense
}

// Rasterize burns the aligned geometry into pixel masks and computes the
// derived distance fields.
func Rasterize(ag *align.AlignedGeometry, t *Transform, cfg config.BufferingConfig) *Masks {
	w, h := t.Width, t.Height

	buildings := grid.NewMask(w, h)
	for _, ring := range ag.Buildings {
		fillPolygon(buildings, ring, t)
	}

	byTier := make(map[align.Tier]*grid.Mask, len(align.Tiers))
	streets := grid.NewMask(w, h)
	for _, tier := range align.Tiers {
		m := grid.NewMask(w, h)
		d := align.BufferDistance(tier, cfg)
		for _, line := range ag.Streets[tier] {
			strokeLine(m, line, d, t)
		}
		byTier[tier] = m
		streets.Or(m)
	}

	sidewalk := grid.NewMask(w, h)
	for _, tier := range []align.Tier{align.TierPedestrian, align.TierLow} {
		for _, line := range ag.Streets[tier] {
			strokeLine(sidewalk, line, cfg.SidewalkM, t)
		}
	}

	nonPlantable := buildings.Clone()
	nonPlantable.Or(streets)

	return &Masks{
		Buildings:     buildings,
		StreetsByTier: byTier,
		Streets:       streets,
		Sidewalk:      sidewalk,
		NonPlantable:  nonPlantable,
		SidewalkDistM: metricDistance(sidewalk, t.MetersPerPixel),
		BuildingDistM: metricDistance(buildings, t.MetersPerPixel),
	}
}

// metricDistance converts the pixel-unit distance transform to meters.
func metricDistance(m *grid.Mask, metersPerPixel float64) *mat.Dense {
	d := grid.DistanceTransform(m)
	rows, cols := d.Dims()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			d.Set(y, x, d.At(y, x)*metersPerPixel)
		}
	}
	return d
}

// fillPolygon burns a ring interior into the mask with an even-odd
// scanline fill. The ring is in metric coordinates.
func fillPolygon(m *grid.Mask, ring align.Ring, t *Transform) {
	n := len(ring)
	if n < 3 {
		return
	}

	px := make([]float64, n)
	py := make([]float64, n)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i, p := range ring {
		px[i], py[i] = t.MetricToPixel(p)
		minY = math.Min(minY, py[i])
		maxY = math.Max(maxY, py[i])
	}

	y0 := clampInt(int(math.Floor(minY)), 0, t.Height-1)
	y1 := clampInt(int(math.Ceil(maxY)), 0, t.Height-1)

	xs := make([]float64, 0, 8)
	for y := y0; y <= y1; y++ {
		// Sample scanlines at pixel centers so degenerate horizontal
		// edges at integer y never produce double crossings.
		cy := float64(y) + 0.5
		xs = xs[:0]
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			ay, by := py[i], py[j]
			if (ay <= cy) == (by <= cy) {
				continue
			}
			frac := (cy - ay) / (by - ay)
			xs = append(xs, px[i]+frac*(px[j]-px[i]))
		}
		sort.Float64s(xs)
		for k := 0; k+1 < len(xs); k += 2 {
			x0 := int(math.Ceil(xs[k] - 0.5))
			x1 := int(math.Floor(xs[k+1] - 0.5))
			// A span wholly off the raster must not collapse onto the
			// border columns.
			if x1 < 0 || x0 > t.Width-1 {
				continue
			}
			x0 = clampInt(x0, 0, t.Width-1)
			x1 = clampInt(x1, 0, t.Width-1)
			for x := x0; x <= x1; x++ {
				m.Set(x, y, true)
			}
		}
	}
}

// strokeLine burns every pixel within radiusM meters of the polyline
// into the mask.
func strokeLine(m *grid.Mask, line align.Polyline, radiusM float64, t *Transform) {
	if len(line) == 0 || radiusM <= 0 {
		return
	}
	rPx := radiusM / t.MetersPerPixel

	if len(line) == 1 {
		strokeSegment(m, line[0], line[0], rPx, t)
		return
	}
	for i := 0; i+1 < len(line); i++ {
		strokeSegment(m, line[i], line[i+1], rPx, t)
	}
}

func strokeSegment(m *grid.Mask, a, b align.Point, rPx float64, t *Transform) {
	ax, ay := t.MetricToPixel(a)
	bx, by := t.MetricToPixel(b)

	x0 := clampInt(int(math.Floor(math.Min(ax, bx)-rPx)), 0, t.Width-1)
	x1 := clampInt(int(math.Ceil(math.Max(ax, bx)+rPx)), 0, t.Width-1)
	y0 := clampInt(int(math.Floor(math.Min(ay, by)-rPx)), 0, t.Height-1)
	y1 := clampInt(int(math.Ceil(math.Max(ay, by)+rPx)), 0, t.Height-1)

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if m.At(x, y) {
				continue
			}
			cx, cy := float64(x)+0.5, float64(y)+0.5
			if distToSegment(cx, cy, ax, ay, bx, by) <= rPx {
				m.Set(x, y, true)
			}
		}
	}
}

// distToSegment returns the distance from point p to segment ab, all in
// pixel units.
func distToSegment(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	u := 0.0
	if lenSq > 0 {
		u = ((px-ax)*dx + (py-ay)*dy) / lenSq
		u = math.Max(0, math.Min(1, u))
	}
	ex, ey := ax+u*dx, ay+u*dy
	return math.Hypot(px-ex, py-ey)
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
