package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/canopy-cli/internal/model"
)

var (
	batchFile      string
	batchLimit     int
	batchShapefile string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze a batch of locations from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, batchShapefile)
		if err != nil {
			return err
		}
		defer env.Close()

		locs, err := loadLocations(batchFile)
		if err != nil {
			return err
		}
		if len(locs) == 0 {
			zap.L().Info("no locations in batch file")
			return nil
		}
		if batchLimit > 0 && len(locs) > batchLimit {
			locs = locs[:batchLimit]
		}

		// Register every location before processing so interrupted
		// batches leave a queued record per unprocessed location.
		runIDs := make([]string, len(locs))
		for i, loc := range locs {
			run, err := env.Store.CreateRun(ctx, loc)
			if err != nil {
				return eris.Wrapf(err, "create run for %s", loc.Name)
			}
			runIDs[i] = run.ID
		}

		zap.L().Info("processing batch",
			zap.Int("locations", len(locs)),
			zap.Int("concurrency", cfg.Batch.MaxConcurrentLocations),
		)

		results := env.Pipeline.RunBatch(ctx, locs, env.Acquire)

		var succeeded, failed int
		for i, res := range results {
			switch res.Status {
			case model.RunStatusComplete:
				evaluateSpots(ctx, env.Vision, res.Report, cfg.Vision.MaxSpots)
				if err := env.Store.SaveReport(ctx, runIDs[i], res.Report); err != nil {
					zap.L().Error("save report failed",
						zap.String("location", res.Location.Name),
						zap.Error(err),
					)
					continue
				}
				succeeded++
			default:
				cause := ""
				if res.Err != nil {
					cause = res.Err.Error()
				}
				if err := env.Store.MarkRunFailed(ctx, runIDs[i], res.Status, cause); err != nil {
					zap.L().Error("mark run failed errored",
						zap.String("location", res.Location.Name),
						zap.Error(err),
					)
				}
				failed++
			}
		}

		zap.L().Info("batch complete",
			zap.Int("succeeded", succeeded),
			zap.Int("failed", failed),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "YAML file with a list of locations (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of locations to process (0 = all)")
	batchCmd.Flags().StringVar(&batchShapefile, "shapefile", "", "read vector geometry from a local shapefile instead of Overpass")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// loadLocations parses the batch input file. The file is either a bare
// YAML list of locations or a document with a top-level "locations" key.
func loadLocations(path string) ([]model.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read batch file")
	}

	var wrapped struct {
		Locations []model.Location `yaml:"locations"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err == nil && len(wrapped.Locations) > 0 {
		return wrapped.Locations, nil
	}

	var locs []model.Location
	if err := yaml.Unmarshal(data, &locs); err != nil {
		return nil, eris.Wrap(err, "parse batch file")
	}
	return locs, nil
}
