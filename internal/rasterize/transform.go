// Package rasterize converts aligned metric vector geometry into pixel
// masks registered to the raster, and derives the distance fields the
// scoring stage consumes.
package rasterize

import (
	"github.com/sells-group/canopy-cli/internal/align"
	"github.com/sells-group/canopy-cli/internal/model"
)

// Transform maps between the three coordinate frames of one raster:
// WGS84 degrees, the local metric frame centered on the raster, and
// pixel coordinates with the origin at the top-left corner.
type Transform struct {
	Width, Height  int
	MetersPerPixel float64
	bounds         model.BBox
}

// NewTransform builds the coordinate transform for a raster.
func NewTransform(r *model.RasterBuffer) *Transform {
	return &Transform{
		Width:          r.Width,
		Height:         r.Height,
		MetersPerPixel: r.MetersPerPixel,
		bounds:         r.Bounds,
	}
}

// MetricToPixel maps a metric point to fractional pixel coordinates.
// Pixel y grows south while metric Y grows north.
func (t *Transform) MetricToPixel(p align.Point) (px, py float64) {
	px = p.X/t.MetersPerPixel + float64(t.Width)/2
	py = float64(t.Height)/2 - p.Y/t.MetersPerPixel
	return px, py
}

// PixelToMetric inverts MetricToPixel.
func (t *Transform) PixelToMetric(px, py float64) align.Point {
	return align.Point{
		X: (px - float64(t.Width)/2) * t.MetersPerPixel,
		Y: (float64(t.Height)/2 - py) * t.MetersPerPixel,
	}
}

// PixelToGeo maps fractional pixel coordinates to WGS84 degrees by
// linear interpolation over the bounding box. Pixel y grows south, so
// latitude interpolates from the north edge down.
func (t *Transform) PixelToGeo(px, py float64) (lat, lng float64) {
	lng = t.bounds.MinLng + px/float64(t.Width)*(t.bounds.MaxLng-t.bounds.MinLng)
	lat = t.bounds.MaxLat - py/float64(t.Height)*(t.bounds.MaxLat-t.bounds.MinLat)
	return lat, lng
}

// GeoToPixel inverts PixelToGeo.
func (t *Transform) GeoToPixel(lat, lng float64) (px, py float64) {
	px = (lng - t.bounds.MinLng) / (t.bounds.MaxLng - t.bounds.MinLng) * float64(t.Width)
	py = (t.bounds.MaxLat - lat) / (t.bounds.MaxLat - t.bounds.MinLat) * float64(t.Height)
	return px, py
}

// InBounds reports whether an integer pixel lies on the raster.
func (t *Transform) InBounds(x, y int) bool {
	return x >= 0 && x < t.Width && y >= 0 && y < t.Height
}
