package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/canopy-cli/internal/config"
	"github.com/sells-group/canopy-cli/internal/model"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		Alignment: config.AlignmentConfig{Scale: 1.0},
		Detection: config.DetectionConfig{
			NDVIThreshold:            0.2,
			MinVegetationBrightness:  60,
			ShadowDarkThreshold:      80,
			ShadowDesaturationThresh: 60,
			ShadowMinClusterPx:       25,
			ShadowBlurSigma:          2.0,
		},
		Buffering: config.BufferingConfig{
			PedestrianM: 5, LowM: 10, MediumM: 15, HighM: 25, SidewalkM: 5,
		},
		Scoring: config.ScoringConfig{
			AmenityRadiusM: 100,
			AmenityMaxPts:  10,
			SidewalkMaxPts: 35,
			BuildingMaxPts: 25,
			SunMaxPts:      20,
		},
		Classification: config.ClassificationConfig{CriticalCutoff: 70, HighCutoff: 50, MediumCutoff: 30},
		Extraction:     config.ExtractionConfig{MinClusterPx: 20},
		Batch:          config.BatchConfig{MaxConcurrentLocations: 2, LocationTimeoutSecs: 30},
	}
	cfg.ApplyBandDefaults()
	return cfg
}

func uniformRaster() *model.RasterBuffer {
	r := model.NewRasterBuffer(80, 80,
		model.BBox{MinLng: 101.6295, MinLat: 3.1395, MaxLng: 101.6305, MaxLat: 3.1405}, 1.0)
	r.Fill(150, 155, 160)
	return r
}

func testLocation() model.Location {
	return model.Location{Name: "Test Park", Latitude: 3.14, Longitude: 101.63}
}

func TestRunUniformSceneEmptyGeometry(t *testing.T) {
	// A featureless bright scene: full sun everywhere, nothing masked,
	// nothing critical.
	p := New(testConfig())

	report, err := p.Run(context.Background(), testLocation(), uniformRaster(), &model.GeometryCollection{})
	require.NoError(t, err)

	assert.Empty(t, report.CriticalSpots)
	assert.InDelta(t, 100.0, report.Coverage.PlantablePct, 1e-9)
	assert.Zero(t, report.Coverage.BuildingPct)
	assert.Zero(t, report.Coverage.VegetationPct)

	// Only the sun component contributes, at its top band.
	for _, c := range report.Components {
		if c.Name == "sun_exposure" {
			assert.InDelta(t, 20.0, c.Average, 1e-9)
		} else {
			assert.Zero(t, c.Average, c.Name)
		}
	}

	// Every pixel scores 20: all low tier.
	require.Len(t, report.Distribution, 4)
	assert.Equal(t, "low", report.Distribution[3].Tier)
	assert.Equal(t, 80*80, report.Distribution[3].Pixels)
}

func TestRunInvalidRaster(t *testing.T) {
	p := New(testConfig())

	bad := &model.RasterBuffer{Width: 10, Height: 10, Pix: make([]uint8, 5)}
	_, err := p.Run(context.Background(), testLocation(), bad, &model.GeometryCollection{})
	require.Error(t, err)
	assert.True(t, model.IsPrecondition(err))
}

func TestRunTimeoutAbandonsAtomically(t *testing.T) {
	p := New(testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := p.Run(ctx, testLocation(), uniformRaster(), &model.GeometryCollection{})
	require.Error(t, err)
	assert.True(t, model.IsTimeout(err))
	assert.Nil(t, report)
}

func TestRunDeterministic(t *testing.T) {
	p := New(testConfig())

	a, err := p.Run(context.Background(), testLocation(), uniformRaster(), &model.GeometryCollection{})
	require.NoError(t, err)
	b, err := p.Run(context.Background(), testLocation(), uniformRaster(), &model.GeometryCollection{})
	require.NoError(t, err)

	assert.Equal(t, a.CriticalSpots, b.CriticalSpots)
	assert.Equal(t, a.Coverage, b.Coverage)
	assert.Equal(t, a.Distribution, b.Distribution)
}

// stubAcquirer serves canned inputs, failing on request.
type stubAcquirer struct {
	failFor map[string]error
	delay   time.Duration
}

func (s *stubAcquirer) FetchRaster(ctx context.Context, loc model.Location) (*model.RasterBuffer, error) {
	if err, ok := s.failFor[loc.Name]; ok {
		return nil, err
	}
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return uniformRaster(), nil
}

func (s *stubAcquirer) FetchGeometry(ctx context.Context, bounds model.BBox) (*model.GeometryCollection, error) {
	return &model.GeometryCollection{}, nil
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	p := New(testConfig())
	acq := &stubAcquirer{failFor: map[string]error{
		"Broken": errors.New("raster service unavailable"),
	}}

	locs := []model.Location{
		{Name: "First", Latitude: 3.14, Longitude: 101.63},
		{Name: "Broken", Latitude: 3.15, Longitude: 101.64},
		{Name: "Last", Latitude: 3.16, Longitude: 101.65},
	}

	results := p.RunBatch(context.Background(), locs, acq)

	require.Len(t, results, 3)
	assert.Equal(t, model.RunStatusComplete, results[0].Status)
	assert.NotNil(t, results[0].Report)

	assert.Equal(t, model.RunStatusFailed, results[1].Status)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Report)

	// The sibling after the failure still completes.
	assert.Equal(t, model.RunStatusComplete, results[2].Status)
}

func TestRunBatchLocationTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Batch.LocationTimeoutSecs = 1
	p := New(cfg)
	acq := &stubAcquirer{delay: 2 * time.Second}

	results := p.RunBatch(context.Background(), []model.Location{testLocation()}, acq)

	require.Len(t, results, 1)
	assert.Equal(t, model.RunStatusTimeout, results[0].Status)
	assert.Nil(t, results[0].Report)
}

func TestFormatReport(t *testing.T) {
	p := New(testConfig())

	report, err := p.Run(context.Background(), testLocation(), uniformRaster(), &model.GeometryCollection{})
	require.NoError(t, err)

	text := FormatReport(report)
	assert.Contains(t, text, "# Planting Analysis: Test Park")
	assert.Contains(t, text, "## Land Coverage")
	assert.Contains(t, text, "No critical spots found.")
	assert.Contains(t, text, "sun_exposure")
}
