// Package shapeload reads vector geometry from local shapefiles, as an
// offline alternative to the Overpass API. Attribute columns follow OSM
// naming: polygons are buildings, polylines are streets classified by a
// "highway" column, points are amenities named by a "name" column.
package shapeload

import (
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/canopy-cli/internal/model"
)

// Load reads one shapefile into a GeometryCollection.
func Load(shpPath string) (*model.GeometryCollection, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "shapeload: open %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	attr := func(name string) string {
		idx, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		val := strings.TrimRight(reader.Attribute(idx), "\x00")
		return strings.TrimSpace(val)
	}

	gc := &model.GeometryCollection{}
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		feats := Convert(shape, attr("highway"), attr("name"))
		if len(feats) == 0 {
			skipped++
			continue
		}
		gc.Features = append(gc.Features, feats...)
	}

	if skipped > 0 {
		zap.L().Debug("shapeload: skipped records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return gc, nil
}

// Convert maps one shapefile record to pipeline features. Polygons take
// their first part as the outer ring; each polyline part becomes its own
// street. Records that yield no valid geometry return nil.
func Convert(shape shp.Shape, highway, name string) []model.Feature {
	switch s := shape.(type) {
	case *shp.Polygon:
		if len(s.Parts) == 0 {
			return nil
		}
		ring := partCoords(s.Points, s.Parts, 0)
		if len(ring) < 4 {
			return nil
		}
		poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{ring})
		if err != nil {
			return nil
		}
		return []model.Feature{{Kind: model.KindBuilding, Geom: poly}}

	case *shp.PolyLine:
		var feats []model.Feature
		for part := range s.Parts {
			coords := partCoords(s.Points, s.Parts, part)
			if len(coords) < 2 {
				continue
			}
			line, err := geom.NewLineString(geom.XY).SetCoords(coords)
			if err != nil {
				continue
			}
			feats = append(feats, model.Feature{
				Kind:  model.KindStreet,
				Class: highway,
				Geom:  line,
			})
		}
		return feats

	case *shp.Point:
		pt, err := geom.NewPoint(geom.XY).SetCoords(geom.Coord{s.X, s.Y})
		if err != nil {
			return nil
		}
		return []model.Feature{{Kind: model.KindAmenity, Name: name, Geom: pt}}

	default:
		return nil
	}
}

// partCoords extracts one part's coordinates from a multi-part shape.
func partCoords(points []shp.Point, parts []int32, part int) []geom.Coord {
	start := int(parts[part])
	end := len(points)
	if part+1 < len(parts) {
		end = int(parts[part+1])
	}
	coords := make([]geom.Coord, 0, end-start)
	for _, p := range points[start:end] {
		coords = append(coords, geom.Coord{p.X, p.Y})
	}
	return coords
}
