//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/canopy-cli/internal/config"
	"github.com/sells-group/canopy-cli/internal/model"
	"github.com/sells-group/canopy-cli/internal/pipeline"
	"github.com/sells-group/canopy-cli/internal/store"
)

// slowAcquirer records whether its context carries a deadline and then
// blocks until that context expires.
type slowAcquirer struct {
	sawDeadline bool
}

func (a *slowAcquirer) FetchRaster(ctx context.Context, _ model.Location) (*model.RasterBuffer, error) {
	_, a.sawDeadline = ctx.Deadline()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (a *slowAcquirer) FetchGeometry(ctx context.Context, _ model.BBox) (*model.GeometryCollection, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunAnalysisHonorsRunBudget(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{}
	cfg.ApplyBandDefaults()
	cfg.Batch.LocationTimeoutSecs = 1

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	run, err := st.CreateRun(context.Background(), model.Location{Name: "Stalled", Latitude: 3.15, Longitude: 101.71})
	require.NoError(t, err)

	acq := &slowAcquirer{}
	env := &pipelineEnv{Store: st, Pipeline: pipeline.New(cfg), Acquire: acq}

	start := time.Now()
	runAnalysis(context.Background(), env, run)

	// The acquirer got a bounded context and the run was cut off at the
	// budget, not left hanging on the server's lifetime.
	assert.True(t, acq.sawDeadline)
	assert.Less(t, time.Since(start), 5*time.Second)

	got, err := st.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusTimeout, got.Status)
	assert.NotEmpty(t, got.Error)
}

func TestFailStatus(t *testing.T) {
	assert.Equal(t, model.RunStatusTimeout, failStatus(context.DeadlineExceeded))
	assert.Equal(t, model.RunStatusTimeout, failStatus(model.ErrTimeout))
	assert.Equal(t, model.RunStatusFailed, failStatus(assert.AnError))
}
