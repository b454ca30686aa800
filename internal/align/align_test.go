package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/canopy-cli/internal/config"
	"github.com/sells-group/canopy-cli/internal/model"
)

var testBounds = model.BBox{MinLng: 101.62, MinLat: 3.13, MaxLng: 101.64, MaxLat: 3.15}

// identity leaves geometry where projection puts it.
var identity = config.AlignmentConfig{Scale: 1.0}

func TestProjectorRoundTrip(t *testing.T) {
	p := NewProjector(3.14, 101.63)

	tests := []struct {
		name     string
		lng, lat float64
	}{
		{"center", 101.63, 3.14},
		{"northeast", 101.6345, 3.1432},
		{"southwest", 101.6211, 3.1309},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt := p.ToMetric(tt.lng, tt.lat)
			lng, lat := p.ToGeo(pt)
			assert.InDelta(t, tt.lng, lng, 1e-9)
			assert.InDelta(t, tt.lat, lat, 1e-9)
		})
	}
}

func TestProjectorMetricScale(t *testing.T) {
	p := NewProjector(3.14, 101.63)

	// One degree of latitude is ~111km regardless of longitude.
	pt := p.ToMetric(101.63, 3.15)
	assert.InDelta(t, 0.01*metersPerDegLat, pt.Y, 1e-6)
	assert.InDelta(t, 0.0, pt.X, 1e-6)
}

func TestApplyTransformScaleAndOffset(t *testing.T) {
	cfg := config.AlignmentConfig{Scale: 2.0, OffsetNorthM: -5, OffsetEastM: -10}

	got := applyTransform(Point{X: 100, Y: 50}, cfg)
	assert.InDelta(t, 190.0, got.X, 1e-9) // 100*2 - 10
	assert.InDelta(t, 95.0, got.Y, 1e-9)  // 50*2 - 5

	// The raster center is the fixed point of the scale.
	center := applyTransform(Point{}, cfg)
	assert.InDelta(t, -10.0, center.X, 1e-9)
	assert.InDelta(t, -5.0, center.Y, 1e-9)
}

func TestAlignEmptyCollection(t *testing.T) {
	ag := Align(&model.GeometryCollection{}, testBounds, identity)

	require.NotNil(t, ag)
	assert.True(t, ag.Empty())
	for _, tier := range Tiers {
		assert.Empty(t, ag.Streets[tier], "tier %s must exist and be empty", tier)
	}
}

func TestAlignNilCollection(t *testing.T) {
	ag := Align(nil, testBounds, identity)
	assert.True(t, ag.Empty())
}

func TestAlignPartitionsStreetsByTier(t *testing.T) {
	gc := &model.GeometryCollection{Features: []model.Feature{
		{Kind: model.KindStreet, Class: "footway", Geom: line(101.63, 3.14, 101.631, 3.141)},
		{Kind: model.KindStreet, Class: "residential", Geom: line(101.63, 3.14, 101.632, 3.142)},
		{Kind: model.KindStreet, Class: "secondary", Geom: line(101.63, 3.14, 101.633, 3.143)},
		{Kind: model.KindStreet, Class: "motorway", Geom: line(101.63, 3.14, 101.634, 3.144)},
	}}

	ag := Align(gc, testBounds, identity)
	assert.Len(t, ag.Streets[TierPedestrian], 1)
	assert.Len(t, ag.Streets[TierLow], 1)
	assert.Len(t, ag.Streets[TierMedium], 1)
	assert.Len(t, ag.Streets[TierHigh], 1)
}

func TestAlignDropsDegenerateBuilding(t *testing.T) {
	// Zero-area sliver: all vertices collinear.
	sliver := geom.NewPolygon(geom.XY)
	_, err := sliver.SetCoords([][]geom.Coord{{
		{101.630, 3.140}, {101.631, 3.140}, {101.632, 3.140}, {101.630, 3.140},
	}})
	require.NoError(t, err)

	square := polygon(101.630, 3.140, 101.631, 3.141)

	gc := &model.GeometryCollection{Features: []model.Feature{
		{Kind: model.KindBuilding, Geom: sliver},
		{Kind: model.KindBuilding, Geom: square},
	}}

	ag := Align(gc, testBounds, identity)
	assert.Len(t, ag.Buildings, 1, "the sliver must be dropped, the square kept")
}

func TestAlignKeepsAmenities(t *testing.T) {
	pt := geom.NewPointFlat(geom.XY, []float64{101.631, 3.141})
	gc := &model.GeometryCollection{Features: []model.Feature{
		{Kind: model.KindAmenity, Name: "cafe", Geom: pt},
	}}

	ag := Align(gc, testBounds, identity)
	require.Len(t, ag.Amenities, 1)
}

func TestClassifyStreet(t *testing.T) {
	tests := []struct {
		class    string
		expected Tier
	}{
		{"footway", TierPedestrian},
		{"cycleway", TierPedestrian},
		{"residential", TierLow},
		{"service", TierLow},
		{"secondary", TierMedium},
		{"tertiary_link", TierMedium},
		{"motorway", TierHigh},
		{"primary", TierHigh},
		{"something_else", TierLow},
		{"", TierLow},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyStreet(tt.class))
		})
	}
}

func TestBufferDistance(t *testing.T) {
	cfg := config.BufferingConfig{PedestrianM: 5, LowM: 10, MediumM: 15, HighM: 25}
	assert.Equal(t, 5.0, BufferDistance(TierPedestrian, cfg))
	assert.Equal(t, 10.0, BufferDistance(TierLow, cfg))
	assert.Equal(t, 15.0, BufferDistance(TierMedium, cfg))
	assert.Equal(t, 25.0, BufferDistance(TierHigh, cfg))
}

func TestSelfIntersectingRingRejected(t *testing.T) {
	// Bowtie: edges cross in the middle.
	bowtie := Ring{{0, 0}, {10, 10}, {10, 0}, {0, 10}, {0, 0}}
	assert.False(t, validRing(bowtie))

	square := Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	assert.True(t, validRing(square))
}

func line(x1, y1, x2, y2 float64) *geom.LineString {
	return geom.NewLineStringFlat(geom.XY, []float64{x1, y1, x2, y2})
}

func polygon(minX, minY, maxX, maxY float64) *geom.Polygon {
	p := geom.NewPolygon(geom.XY)
	_, err := p.SetCoords([][]geom.Coord{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
	if err != nil {
		panic(err)
	}
	return p
}
