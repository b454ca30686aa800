package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/canopy-cli/internal/model"
)

// LocationResult is the terminal outcome of one location's run in a
// batch. Exactly one of Report and Err is set.
type LocationResult struct {
	Location model.Location
	Status   model.RunStatus
	Report   *model.Report
	Err      error
}

// RunBatch processes independent locations concurrently, each under its
// own timeout budget. One location's failure never cancels its siblings;
// results come back in input order.
func (p *Pipeline) RunBatch(ctx context.Context, locs []model.Location, acq Acquirer) []LocationResult {
	results := make([]LocationResult, len(locs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Batch.MaxConcurrentLocations)

	for i, loc := range locs {
		g.Go(func() error {
			results[i] = p.runOne(ctx, loc, acq)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors

	return results
}

// runOne acquires inputs and scores a single location under the
// configured per-location budget.
func (p *Pipeline) runOne(ctx context.Context, loc model.Location, acq Acquirer) LocationResult {
	res := LocationResult{Location: loc}

	runCtx := ctx
	if budget := p.cfg.Batch.LocationTimeout(); budget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	raster, err := acq.FetchRaster(runCtx, loc)
	if err != nil {
		return failed(res, err)
	}
	gc, err := acq.FetchGeometry(runCtx, raster.Bounds)
	if err != nil {
		return failed(res, err)
	}

	report, err := p.Run(runCtx, loc, raster, gc)
	if err != nil {
		return failed(res, err)
	}

	res.Status = model.RunStatusComplete
	res.Report = report
	return res
}

func failed(res LocationResult, err error) LocationResult {
	res.Err = err
	if model.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		res.Status = model.RunStatusTimeout
	} else {
		res.Status = model.RunStatusFailed
	}
	zap.L().Warn("location run failed",
		zap.String("location", res.Location.Name),
		zap.String("status", string(res.Status)),
		zap.Error(err),
	)
	return res
}
