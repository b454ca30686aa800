package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/canopy-cli/internal/model"
	"github.com/sells-group/canopy-cli/internal/pipeline"
	"github.com/sells-group/canopy-cli/internal/store"
	"github.com/sells-group/canopy-cli/pkg/osm"
	"github.com/sells-group/canopy-cli/pkg/shapeload"
	"github.com/sells-group/canopy-cli/pkg/staticmap"
	"github.com/sells-group/canopy-cli/pkg/vision"
)

// pipelineEnv holds the initialized store, acquisition clients, and the
// pipeline shared by the analyze/batch/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Acquire  pipeline.Acquirer
	Vision   vision.Evaluator // may be nil
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the run store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline sets up the store, acquisition clients, and the pipeline.
// If shapefilePath is non-empty, vector geometry is read from the local
// shapefile instead of the Overpass API. Callers should defer env.Close().
func initPipeline(ctx context.Context, shapefilePath string) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.Acquire.TimeoutSecs) * time.Second
	rasterClient := staticmap.New(
		cfg.Acquire.StaticMapEndpoint,
		cfg.Acquire.StaticMapKey,
		cfg.Acquire.ImageSizePx,
		cfg.Acquire.Zoom,
		timeout,
	)

	var acq pipeline.Acquirer
	if shapefilePath != "" {
		zap.L().Info("loading vector geometry from shapefile", zap.String("path", shapefilePath))
		acq = &shapefileAcquirer{raster: rasterClient, path: shapefilePath}
	} else {
		acq = &remoteAcquirer{
			raster:   rasterClient,
			geometry: osm.New(cfg.Acquire.OverpassEndpoint, timeout, cfg.Acquire.RequestsPerSec),
		}
	}

	// Ground-vision evaluation is optional; without a key the critical
	// spots simply carry no ground context.
	var evaluator vision.Evaluator
	if cfg.Vision.Key != "" {
		evaluator = vision.New(cfg.Vision.Key, cfg.Vision.Model)
		zap.L().Info("ground-vision spot evaluation enabled", zap.String("model", cfg.Vision.Model))
	} else {
		zap.L().Debug("CANOPY_VISION_KEY not set, ground-vision evaluation disabled")
	}

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg),
		Acquire:  acq,
		Vision:   evaluator,
	}, nil
}

// remoteAcquirer resolves both pipeline inputs over the network: the
// raster from the static map service and the vector geometry from
// Overpass.
type remoteAcquirer struct {
	raster   *staticmap.Client
	geometry *osm.Client
}

func (a *remoteAcquirer) FetchRaster(ctx context.Context, loc model.Location) (*model.RasterBuffer, error) {
	return a.raster.FetchRaster(ctx, loc)
}

func (a *remoteAcquirer) FetchGeometry(ctx context.Context, bounds model.BBox) (*model.GeometryCollection, error) {
	return a.geometry.FetchGeometry(ctx, bounds)
}

// shapefileAcquirer fetches the raster over the network but reads the
// vector geometry from a local shapefile, for areas where Overpass
// coverage is poor or offline use is required.
type shapefileAcquirer struct {
	raster *staticmap.Client
	path   string
}

func (a *shapefileAcquirer) FetchRaster(ctx context.Context, loc model.Location) (*model.RasterBuffer, error) {
	return a.raster.FetchRaster(ctx, loc)
}

func (a *shapefileAcquirer) FetchGeometry(_ context.Context, _ model.BBox) (*model.GeometryCollection, error) {
	return shapeload.Load(a.path)
}

// evaluateSpots runs the ground-vision evaluator over the top critical
// spots in place. Evaluation failures are logged and skipped; the report
// is complete without them.
func evaluateSpots(ctx context.Context, evaluator vision.Evaluator, report *model.Report, maxSpots int) {
	if evaluator == nil {
		return
	}
	n := len(report.CriticalSpots)
	if maxSpots > 0 && n > maxSpots {
		n = maxSpots
	}
	for i := 0; i < n; i++ {
		spot := &report.CriticalSpots[i]
		sc, err := evaluator.EvaluateSpot(ctx, spot.Latitude, spot.Longitude)
		if err != nil {
			zap.L().Warn("spot evaluation failed",
				zap.Int("spot_id", spot.ID),
				zap.Error(err),
			)
			continue
		}
		spot.Context = sc
	}
}
