package priority

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/canopy-cli/internal/align"
	"github.com/sells-group/canopy-cli/internal/config"
	"github.com/sells-group/canopy-cli/internal/detect"
	"github.com/sells-group/canopy-cli/internal/model"
	"github.com/sells-group/canopy-cli/internal/rasterize"
)

func testScoring() config.ScoringConfig {
	sidewalk, building, sun := config.BandDefaults()
	return config.ScoringConfig{
		SidewalkBands:  sidewalk,
		BuildingBands:  building,
		SunBands:       sun,
		AmenityRadiusM: 100,
		AmenityMaxPts:  10,
		SidewalkMaxPts: 35,
		BuildingMaxPts: 25,
		SunMaxPts:      20,
	}
}

func testClassification() config.ClassificationConfig {
	return config.ClassificationConfig{CriticalCutoff: 70, HighCutoff: 50, MediumCutoff: 30}
}

func testDetection() config.DetectionConfig {
	return config.DetectionConfig{
		NDVIThreshold:            0.2,
		MinVegetationBrightness:  60,
		ShadowDarkThreshold:      80,
		ShadowDesaturationThresh: 60,
		ShadowMinClusterPx:       25,
		ShadowBlurSigma:          2.0,
	}
}

var testBuffering = config.BufferingConfig{
	PedestrianM: 5, LowM: 10, MediumM: 15, HighM: 25, SidewalkM: 5,
}

func testRaster() *model.RasterBuffer {
	r := model.NewRasterBuffer(60, 60,
		model.BBox{MinLng: 101.6295, MinLat: 3.1395, MaxLng: 101.6305, MaxLat: 3.1405}, 1.0)
	r.Fill(150, 155, 160)
	return r
}

func emptyGeometry() *align.AlignedGeometry {
	return &align.AlignedGeometry{Streets: map[align.Tier][]align.Polyline{}}
}

func computeFor(t *testing.T, raster *model.RasterBuffer, ag *align.AlignedGeometry) *Grid {
	t.Helper()
	tr := rasterize.NewTransform(raster)
	feats := detect.Detect(raster, testDetection())
	masks := rasterize.Rasterize(ag, tr, testBuffering)
	return Compute(feats, masks, ag.Amenities, tr, testScoring(), testClassification())
}

func TestUniformRasterEmptyGeometryScoresSunOnly(t *testing.T) {
	// Bright uniform scene, nothing built: every component except sun
	// exposure is zero, and full sun earns the top sun band everywhere.
	g := computeFor(t, testRaster(), emptyGeometry())

	for _, at := range [][2]int{{0, 0}, {30, 30}, {59, 59}} {
		x, y := at[0], at[1]
		assert.InDelta(t, 20.0, g.Score.At(y, x), 1e-9)
		assert.Equal(t, TierLow, g.TierAt(x, y))
		assert.True(t, g.Plantable.At(x, y))
	}
	assert.Equal(t, 60*60, g.Plantable.Count())
	assert.False(t, g.CriticalMask().Any())
}

func TestRawScoreBounded(t *testing.T) {
	ag := emptyGeometry()
	ag.Buildings = []align.Ring{{
		{X: -20, Y: -20}, {X: 0, Y: -20}, {X: 0, Y: 0}, {X: -20, Y: 0}, {X: -20, Y: -20},
	}}
	ag.Streets[align.TierPedestrian] = []align.Polyline{{{X: -25, Y: 10}, {X: 25, Y: 10}}}
	ag.Amenities = []align.Point{{X: 5, Y: 5}}

	g := computeFor(t, testRaster(), ag)

	maxScore := testScoring().MaxScore()
	require.Equal(t, 90.0, maxScore)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			raw := g.Raw.At(y, x)
			if raw < 0 || raw > maxScore {
				t.Fatalf("raw score %f out of [0,%f] at (%d,%d)", raw, maxScore, x, y)
			}
		}
	}
}

func TestVegetationOverrideZeroesAfterSummation(t *testing.T) {
	raster := testRaster()
	// Vegetation block in a spot that would otherwise score well.
	for y := 20; y < 30; y++ {
		for x := 20; x < 30; x++ {
			raster.SetRGB(x, y, 50, 120, 40)
		}
	}
	ag := emptyGeometry()
	ag.Streets[align.TierPedestrian] = []align.Polyline{{{X: -25, Y: 5}, {X: 25, Y: 5}}}
	ag.Amenities = []align.Point{{X: -5, Y: 5}}

	g := computeFor(t, raster, ag)

	// Inside the vegetation block: raw stays positive for audit, final is 0.
	assert.Greater(t, g.Raw.At(25, 25), 0.0)
	assert.Zero(t, g.Score.At(25, 25))
	assert.False(t, g.Plantable.At(25, 25))

	// Outside it, final equals raw.
	assert.Equal(t, g.Raw.At(10, 40), g.Score.At(10, 40))
}

func TestSidewalkLineScoresExactBandPoints(t *testing.T) {
	// A pedestrian street drawn across the bright uniform scene, end to
	// end: the line becomes the sidewalk mask, the distance field feeds
	// the bands, and plantable pixels beside the corridor earn exact
	// configured point values.
	ag := emptyGeometry()
	ag.Streets[align.TierPedestrian] = []align.Polyline{{{X: -25, Y: 20}, {X: 25, Y: 20}}}

	g := computeFor(t, testRaster(), ag)

	// Metric Y=20 is pixel row 10; the 5 m corridor covers rows 5-14.
	// Row 18 sits 4 m from the sidewalk: first band, 35 points, plus the
	// full-sun 20.
	assert.InDelta(t, 35.0, g.Components.Sidewalk.At(18, 30), 1e-9)
	assert.InDelta(t, 55.0, g.Score.At(18, 30), 1e-9)
	assert.Equal(t, TierHigh, g.TierAt(30, 18))
	assert.True(t, g.Plantable.At(30, 18))

	// Row 22 is 8 m out: second band, 28 points.
	assert.InDelta(t, 28.0, g.Components.Sidewalk.At(22, 30), 1e-9)
	assert.InDelta(t, 48.0, g.Score.At(22, 30), 1e-9)
	assert.Equal(t, TierMedium, g.TierAt(30, 22))

	// Inside the corridor the component still scores but the street
	// override zeroes the pixel.
	assert.InDelta(t, 55.0, g.Raw.At(10, 30), 1e-9)
	assert.Zero(t, g.Score.At(10, 30))
	assert.False(t, g.Plantable.At(30, 10))
}

func TestStreetAndBuildingOverride(t *testing.T) {
	ag := emptyGeometry()
	ag.Buildings = []align.Ring{{
		{X: -25, Y: 10}, {X: -15, Y: 10}, {X: -15, Y: 20}, {X: -25, Y: 20}, {X: -25, Y: 10},
	}}
	ag.Streets[align.TierLow] = []align.Polyline{{{X: 0, Y: -15}, {X: 25, Y: -15}}}

	g := computeFor(t, testRaster(), ag)

	tr := rasterize.NewTransform(testRaster())
	bx, by := tr.MetricToPixel(align.Point{X: -20, Y: 15})
	sx, sy := tr.MetricToPixel(align.Point{X: 10, Y: -15})

	assert.Zero(t, g.Score.At(int(by), int(bx)))
	assert.Zero(t, g.Score.At(int(sy), int(sx)))
}

func TestComputeDeterministic(t *testing.T) {
	ag := emptyGeometry()
	ag.Buildings = []align.Ring{{
		{X: -10, Y: -10}, {X: 10, Y: -10}, {X: 10, Y: 10}, {X: -10, Y: 10}, {X: -10, Y: -10},
	}}
	ag.Streets[align.TierPedestrian] = []align.Polyline{{{X: -25, Y: 20}, {X: 25, Y: 20}}}
	ag.Amenities = []align.Point{{X: 15, Y: -15}}

	a := computeFor(t, testRaster(), ag)
	b := computeFor(t, testRaster(), ag)

	require.Equal(t, a.Width, b.Width)
	for y := 0; y < a.Height; y++ {
		for x := 0; x < a.Width; x++ {
			if a.Score.At(y, x) != b.Score.At(y, x) {
				t.Fatalf("score differs at (%d,%d)", x, y)
			}
			if a.TierAt(x, y) != b.TierAt(x, y) {
				t.Fatalf("tier differs at (%d,%d)", x, y)
			}
		}
	}
}

func TestClassify(t *testing.T) {
	class := testClassification()
	tests := []struct {
		name  string
		score float64
		want  Tier
	}{
		{name: "zero", score: 0, want: TierLow},
		{name: "just below medium", score: 29.9, want: TierLow},
		{name: "medium cutoff", score: 30, want: TierMedium},
		{name: "high cutoff", score: 50, want: TierHigh},
		{name: "just below critical", score: 69.9, want: TierHigh},
		{name: "critical cutoff", score: 70, want: TierCritical},
		{name: "maximum", score: 90, want: TierCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.score, class))
		})
	}
}

func TestBandPoints(t *testing.T) {
	sidewalk, building, _ := config.BandDefaults()
	tests := []struct {
		name  string
		v     float64
		bands []config.Band
		want  float64
	}{
		{name: "closest sidewalk band", v: 2, bands: sidewalk, want: 35},
		{name: "second sidewalk band", v: 7, bands: sidewalk, want: 28},
		{name: "past last band", v: 200, bands: sidewalk, want: 0},
		{name: "building sweet spot", v: 20, bands: building, want: 25},
		{name: "too close to building", v: 4, bands: building, want: 8},
		{name: "band edge belongs to next band", v: 10, bands: building, want: 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bandPoints(tt.v, tt.bands))
		})
	}
}

func TestAmenityDensityFalloff(t *testing.T) {
	tr := rasterize.NewTransform(testRaster())
	scoring := testScoring()

	out := amenityDensity([]align.Point{{X: 0, Y: 0}}, tr, scoring)

	// On the amenity: full component weight.
	center := out.At(30, 30)
	assert.InDelta(t, 10.0, center, 0.1)
	// 25 m out: decayed but present.
	mid := out.At(30, 55)
	assert.Greater(t, mid, 0.0)
	assert.Less(t, mid, center)
	// Corner of the raster sits past the radius in no direction here
	// (the raster is only 60 px wide), so just confirm monotone decay.
	assert.Less(t, out.At(30, 59), mid)
}

func TestAmenityDensityCapped(t *testing.T) {
	tr := rasterize.NewTransform(testRaster())
	scoring := testScoring()

	// Many stacked amenities never exceed the component max.
	pts := make([]align.Point, 10)
	out := amenityDensity(pts, tr, scoring)

	rows, cols := out.Dims()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			assert.LessOrEqual(t, out.At(y, x), scoring.AmenityMaxPts)
		}
	}
}

func TestAmenityDensityEmpty(t *testing.T) {
	tr := rasterize.NewTransform(testRaster())
	out := amenityDensity(nil, tr, testScoring())
	rows, cols := out.Dims()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			require.Zero(t, out.At(y, x))
		}
	}
}
