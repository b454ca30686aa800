// Package align corrects the systematic positional offset between the
// vector dataset and the raster dataset, projects geometry into a locally
// planar metric frame, and partitions streets into traffic tiers.
package align

import (
	"math"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/canopy-cli/internal/config"
	"github.com/sells-group/canopy-cli/internal/model"
)

// Meters per degree of latitude / of longitude at the equator, for the
// local equirectangular projection. Adequate at the hundreds-of-meters
// scale of a single raster tile.
const (
	metersPerDegLat = 111320.0
	metersPerDegLng = 111320.0
)

// Point is a metric coordinate relative to the raster center: X east,
// Y north, both in meters.
type Point struct {
	X, Y float64
}

// Ring is a closed polygon outer ring in metric coordinates.
type Ring []Point

// Polyline is an open line in metric coordinates.
type Polyline []Point

// AlignedGeometry is the vector dataset after scale+offset correction,
// projected into the metric frame and partitioned by feature role.
type AlignedGeometry struct {
	Buildings []Ring
	Streets   map[Tier][]Polyline
	Amenities []Point
}

// Empty reports whether no feature of any kind survived alignment.
func (ag *AlignedGeometry) Empty() bool {
	if len(ag.Buildings) > 0 || len(ag.Amenities) > 0 {
		return false
	}
	for _, lines := range ag.Streets {
		if len(lines) > 0 {
			return false
		}
	}
	return true
}

// Projector maps between WGS84 degrees and the local metric frame
// centered on a reference point.
type Projector struct {
	lat0, lng0 float64
	cosLat     float64
}

// NewProjector builds a projector centered on (lat0, lng0).
func NewProjector(lat0, lng0 float64) *Projector {
	return &Projector{lat0: lat0, lng0: lng0, cosLat: math.Cos(lat0 * math.Pi / 180)}
}

// ToMetric projects a geographic coordinate into the metric frame.
func (p *Projector) ToMetric(lng, lat float64) Point {
	return Point{
		X: (lng - p.lng0) * metersPerDegLng * p.cosLat,
		Y: (lat - p.lat0) * metersPerDegLat,
	}
}

// ToGeo inverts ToMetric.
func (p *Projector) ToGeo(pt Point) (lng, lat float64) {
	lng = p.lng0 + pt.X/(metersPerDegLng*p.cosLat)
	lat = p.lat0 + pt.Y/metersPerDegLat
	return lng, lat
}

// Align projects every feature into the metric frame around the raster
// center, applies the configured uniform scale and north/east offset, and
// partitions streets into traffic tiers. Malformed geometry is dropped
// with a warning; an empty collection yields empty tiers, never an error.
func Align(gc *model.GeometryCollection, bounds model.BBox, cfg config.AlignmentConfig) *AlignedGeometry {
	lat0, lng0 := bounds.Center()
	proj := NewProjector(lat0, lng0)

	out := &AlignedGeometry{
		Streets: map[Tier][]Polyline{
			TierPedestrian: nil,
			TierLow:        nil,
			TierMedium:     nil,
			TierHigh:       nil,
		},
	}
	if gc == nil {
		return out
	}

	dropped := 0
	for _, f := range gc.Features {
		switch f.Kind {
		case model.KindBuilding:
			for _, ring := range polygonRings(f.Geom) {
				aligned := transformRing(ring, proj, cfg)
				if !validRing(aligned) {
					dropped++
					continue
				}
				out.Buildings = append(out.Buildings, aligned)
			}
		case model.KindStreet:
			tier := ClassifyStreet(f.Class)
			for _, line := range lineStrings(f.Geom) {
				aligned := transformLine(line, proj, cfg)
				if len(aligned) < 2 {
					dropped++
					continue
				}
				out.Streets[tier] = append(out.Streets[tier], aligned)
			}
		case model.KindAmenity:
			for _, c := range pointCoords(f.Geom) {
				pt := proj.ToMetric(c[0], c[1])
				out.Amenities = append(out.Amenities, applyTransform(pt, cfg))
			}
		}
	}
	if dropped > 0 {
		zap.L().Warn("align: dropped malformed geometry", zap.Int("features", dropped))
	}
	return out
}

// applyTransform scales a metric point around the origin (the raster
// center) and translates it by the configured offset.
func applyTransform(pt Point, cfg config.AlignmentConfig) Point {
	return Point{
		X: pt.X*cfg.Scale + cfg.OffsetEastM,
		Y: pt.Y*cfg.Scale + cfg.OffsetNorthM,
	}
}

func transformRing(coords []geom.Coord, proj *Projector, cfg config.AlignmentConfig) Ring {
	ring := make(Ring, 0, len(coords))
	for _, c := range coords {
		ring = append(ring, applyTransform(proj.ToMetric(c[0], c[1]), cfg))
	}
	return ring
}

func transformLine(coords []geom.Coord, proj *Projector, cfg config.AlignmentConfig) Polyline {
	line := make(Polyline, 0, len(coords))
	for _, c := range coords {
		line = append(line, applyTransform(proj.ToMetric(c[0], c[1]), cfg))
	}
	return line
}

// validRing rejects degenerate rings: fewer than four coordinates
// (first == last), zero enclosed area, or self-intersecting edges.
func validRing(r Ring) bool {
	if len(r) < 4 {
		return false
	}
	if math.Abs(signedArea(r)) < 1e-9 {
		return false
	}
	return !selfIntersects(r)
}

// signedArea computes the shoelace area of the ring in square meters.
func signedArea(r Ring) float64 {
	area := 0.0
	n := len(r)
	for i := 0; i < n-1; i++ {
		area += r[i].X*r[i+1].Y - r[i+1].X*r[i].Y
	}
	return area / 2
}

// selfIntersects tests every non-adjacent edge pair. Building footprints
// are small, so the quadratic scan is fine.
func selfIntersects(r Ring) bool {
	n := len(r) - 1 // last coord repeats the first
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			// Skip adjacent edges, including the wrap-around pair.
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsCross(r[i], r[i+1], r[j], r[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a, b, c, d Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// polygonRings extracts outer rings from polygon-like geometry.
func polygonRings(g geom.T) [][]geom.Coord {
	switch t := g.(type) {
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil
		}
		return [][]geom.Coord{t.LinearRing(0).Coords()}
	case *geom.MultiPolygon:
		var rings [][]geom.Coord
		for i := 0; i < t.NumPolygons(); i++ {
			p := t.Polygon(i)
			if p.NumLinearRings() > 0 {
				rings = append(rings, p.LinearRing(0).Coords())
			}
		}
		return rings
	default:
		return nil
	}
}

// lineStrings extracts coordinate runs from line-like geometry. A closed
// building-style polygon tagged as a street contributes its outer ring.
func lineStrings(g geom.T) [][]geom.Coord {
	switch t := g.(type) {
	case *geom.LineString:
		return [][]geom.Coord{t.Coords()}
	case *geom.MultiLineString:
		var lines [][]geom.Coord
		for i := 0; i < t.NumLineStrings(); i++ {
			lines = append(lines, t.LineString(i).Coords())
		}
		return lines
	case *geom.Polygon:
		return polygonRings(t)
	default:
		return nil
	}
}

// pointCoords extracts point coordinates; polygonal amenities collapse to
// their first vertex, which is close enough at amenity-density scale.
func pointCoords(g geom.T) []geom.Coord {
	switch t := g.(type) {
	case *geom.Point:
		return []geom.Coord{t.Coords()}
	case *geom.MultiPoint:
		return t.Coords()
	case *geom.Polygon:
		rings := polygonRings(t)
		if len(rings) > 0 && len(rings[0]) > 0 {
			return []geom.Coord{rings[0][0]}
		}
		return nil
	default:
		return nil
	}
}
