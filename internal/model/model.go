// Package model defines the core data types shared across the analysis
// pipeline: the raster buffer, vector geometry, and the output records.
package model

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Location identifies one analysis target.
type Location struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// BBox is a geographic bounding box in WGS84 degrees.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// Valid reports whether the box has positive extent in both axes.
func (b BBox) Valid() bool {
	return b.MaxLng > b.MinLng && b.MaxLat > b.MinLat
}

// Center returns the geographic center of the box.
func (b BBox) Center() (lat, lng float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLng + b.MaxLng) / 2
}

// RasterBuffer holds one satellite image as raw RGB bytes plus its
// geographic registration. It is immutable after acquisition and owned
// exclusively by a single pipeline run.
type RasterBuffer struct {
	Width  int
	Height int
	// Pix stores packed RGB triplets, row-major, 3 bytes per pixel.
	Pix []uint8
	// Bounds is the geographic bounding box covered by the image.
	Bounds BBox
	// MetersPerPixel is the scalar ground resolution.
	MetersPerPixel float64
}

// NewRasterBuffer allocates a zeroed raster of the given dimensions.
func NewRasterBuffer(width, height int, bounds BBox, metersPerPixel float64) *RasterBuffer {
	return &RasterBuffer{
		Width:          width,
		Height:         height,
		Pix:            make([]uint8, width*height*3),
		Bounds:         bounds,
		MetersPerPixel: metersPerPixel,
	}
}

// RGB returns the color channels of the pixel at (x, y).
func (r *RasterBuffer) RGB(x, y int) (uint8, uint8, uint8) {
	i := (y*r.Width + x) * 3
	return r.Pix[i], r.Pix[i+1], r.Pix[i+2]
}

// SetRGB stores the color channels of the pixel at (x, y).
func (r *RasterBuffer) SetRGB(x, y int, red, green, blue uint8) {
	i := (y*r.Width + x) * 3
	r.Pix[i], r.Pix[i+1], r.Pix[i+2] = red, green, blue
}

// Fill sets every pixel to the same color. Test fixtures mostly.
func (r *RasterBuffer) Fill(red, green, blue uint8) {
	for i := 0; i < len(r.Pix); i += 3 {
		r.Pix[i], r.Pix[i+1], r.Pix[i+2] = red, green, blue
	}
}

// Validate checks the raster's structural preconditions. A violation is
// a programmer error and fatal for the location's run.
func (r *RasterBuffer) Validate() error {
	if r == nil {
		return eris.Wrap(ErrPrecondition, "model: nil raster buffer")
	}
	if r.Width <= 0 || r.Height <= 0 {
		return eris.Wrapf(ErrPrecondition, "model: raster dimensions %dx%d", r.Width, r.Height)
	}
	if len(r.Pix) != r.Width*r.Height*3 {
		return eris.Wrapf(ErrPrecondition, "model: pixel buffer length %d for %dx%d raster", len(r.Pix), r.Width, r.Height)
	}
	if !r.Bounds.Valid() {
		return eris.Wrapf(ErrPrecondition, "model: degenerate bounding box %+v", r.Bounds)
	}
	if r.MetersPerPixel <= 0 {
		return eris.Wrapf(ErrPrecondition, "model: ground resolution %f", r.MetersPerPixel)
	}
	return nil
}

// FeatureKind tags a vector feature by its role in the analysis.
type FeatureKind string

const (
	KindBuilding FeatureKind = "building"
	KindStreet   FeatureKind = "street"
	KindAmenity  FeatureKind = "amenity"
)

// Feature is one vector feature in geographic coordinates.
type Feature struct {
	Kind FeatureKind
	// Class carries the street traffic class attribute (the OSM highway
	// value) for KindStreet features; empty otherwise.
	Class string
	// Name is an optional display name (amenities mostly).
	Name string
	Geom geom.T
}

// GeometryCollection is the unordered set of vector features for one
// location. Produced by the acquisition boundary; the core only reads it.
type GeometryCollection struct {
	Features []Feature
}

// CountKind returns the number of features carrying the given kind.
func (gc *GeometryCollection) CountKind(kind FeatureKind) int {
	n := 0
	for _, f := range gc.Features {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// CriticalSpot is one extracted top-tier region, reduced to a
// representative point with summary statistics.
type CriticalSpot struct {
	ID        int     `json:"spot_id"`
	PixelX    float64 `json:"pixel_x"`
	PixelY    float64 `json:"pixel_y"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Score     float64 `json:"priority_score"`
	Pixels    int     `json:"area_pixels"`
	AreaM2    float64 `json:"area_m2"`
	// SuggestedSpecies is filled at output assembly from the species
	// catalog; empty in intermediate stages.
	SuggestedSpecies string `json:"suggested_species,omitempty"`
	// Context holds the optional ground-vision evaluation. Never set by
	// the scoring pipeline itself.
	Context *SpotContext `json:"ground_context,omitempty"`
}

// RunStatus tracks the outcome of one location's run within a batch.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
	RunStatusTimeout  RunStatus = "timeout"
)

// Run is one persisted pipeline run.
type Run struct {
	ID        string    `json:"id"`
	Location  Location  `json:"location"`
	Status    RunStatus `json:"status"`
	Report    *Report   `json:"report,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SpotContext is the result of the optional ground-vision evaluation of
// a single critical spot. Its absence never affects the scoring output.
type SpotContext struct {
	TreeCount        int    `json:"tree_count"`
	MatureTrees      int    `json:"mature_trees"`
	Feasibility      string `json:"planting_feasibility"`
	Obstacles        string `json:"obstacles"`
	SidewalkSpace    string `json:"sidewalk_space"`
	SunlightExposure string `json:"sunlight_exposure"`
	Notes            string `json:"notes"`
}
