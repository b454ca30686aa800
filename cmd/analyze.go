package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/canopy-cli/internal/model"
	"github.com/sells-group/canopy-cli/internal/pipeline"
)

var (
	analyzeLat       float64
	analyzeLng       float64
	analyzeName      string
	analyzeShapefile string
	analyzeJSON      bool
	analyzeXLSX      string
	analyzeGeoJSON   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze plantability for a single location",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, analyzeShapefile)
		if err != nil {
			return err
		}
		defer env.Close()

		loc := model.Location{
			Name:      analyzeName,
			Latitude:  analyzeLat,
			Longitude: analyzeLng,
		}

		run, err := env.Store.CreateRun(ctx, loc)
		if err != nil {
			return eris.Wrap(err, "create run")
		}
		if err := env.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
			return eris.Wrap(err, "mark run running")
		}

		raster, err := env.Acquire.FetchRaster(ctx, loc)
		if err != nil {
			_ = env.Store.MarkRunFailed(ctx, run.ID, model.RunStatusFailed, err.Error())
			return eris.Wrap(err, "fetch raster")
		}
		geometry, err := env.Acquire.FetchGeometry(ctx, raster.Bounds)
		if err != nil {
			_ = env.Store.MarkRunFailed(ctx, run.ID, model.RunStatusFailed, err.Error())
			return eris.Wrap(err, "fetch geometry")
		}

		report, err := env.Pipeline.Run(ctx, loc, raster, geometry)
		if err != nil {
			status := model.RunStatusFailed
			if model.IsTimeout(err) {
				status = model.RunStatusTimeout
			}
			_ = env.Store.MarkRunFailed(ctx, run.ID, status, err.Error())
			return eris.Wrap(err, "pipeline run")
		}

		evaluateSpots(ctx, env.Vision, report, cfg.Vision.MaxSpots)

		if err := env.Store.SaveReport(ctx, run.ID, report); err != nil {
			return eris.Wrap(err, "save report")
		}

		zap.L().Info("analysis complete",
			zap.String("run_id", run.ID),
			zap.String("location", loc.Name),
			zap.Int("critical_spots", len(report.CriticalSpots)),
			zap.Float64("plantable_pct", report.Coverage.PlantablePct),
		)

		if analyzeXLSX != "" {
			if err := writeXLSX(report, analyzeXLSX); err != nil {
				return eris.Wrap(err, "write xlsx")
			}
			zap.L().Info("wrote spreadsheet", zap.String("path", analyzeXLSX))
		}
		if analyzeGeoJSON != "" {
			if err := writeGeoJSON(report, analyzeGeoJSON); err != nil {
				return eris.Wrap(err, "write geojson")
			}
			zap.L().Info("wrote geojson", zap.String("path", analyzeGeoJSON))
		}

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Print(pipeline.FormatReport(report))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Float64Var(&analyzeLat, "lat", 0, "latitude of the analysis center (required)")
	analyzeCmd.Flags().Float64Var(&analyzeLng, "lng", 0, "longitude of the analysis center (required)")
	analyzeCmd.Flags().StringVar(&analyzeName, "name", "", "human-readable location name")
	analyzeCmd.Flags().StringVar(&analyzeShapefile, "shapefile", "", "read vector geometry from a local shapefile instead of Overpass")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full report as JSON instead of markdown")
	analyzeCmd.Flags().StringVar(&analyzeXLSX, "xlsx", "", "also write the report to an XLSX workbook at this path")
	analyzeCmd.Flags().StringVar(&analyzeGeoJSON, "geojson", "", "also write critical spots as GeoJSON at this path")
	_ = analyzeCmd.MarkFlagRequired("lat")
	_ = analyzeCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(analyzeCmd)
}
