package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/canopy-cli/internal/model"
	"github.com/sells-group/canopy-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for analysis requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "")
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/analyze", func(w http.ResponseWriter, req *http.Request) {
			var body model.Location
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if body.Latitude == 0 && body.Longitude == 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "latitude and longitude are required"})
				return
			}

			run, err := env.Store.CreateRun(req.Context(), body)
			if err != nil {
				zap.L().Error("create run failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "create run"})
				return
			}

			// Run analysis asynchronously against the server's lifetime
			// context; the response carries the run id for polling.
			go runAnalysis(ctx, env, run)

			writeJSON(w, http.StatusAccepted, map[string]string{
				"status": "accepted",
				"run_id": run.ID,
			})
		})

		r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
			filter := store.RunFilter{
				Status:   model.RunStatus(req.URL.Query().Get("status")),
				Location: req.URL.Query().Get("location"),
				Limit:    100,
			}
			if limit := req.URL.Query().Get("limit"); limit != "" {
				if n, err := strconv.Atoi(limit); err == nil && n > 0 {
					filter.Limit = n
				}
			}

			runs, err := env.Store.ListRuns(req.Context(), filter)
			if err != nil {
				zap.L().Error("list runs failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list runs"})
				return
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
			run, err := env.Store.GetRun(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// runAnalysis executes one accepted analysis request end to end and
// records the outcome on the stored run. Each run gets the same budget
// as a batch location.
func runAnalysis(ctx context.Context, env *pipelineEnv, run *model.Run) {
	// The run budget applies to acquisition and scoring; store updates
	// run against the server's lifetime so an expired run can still be
	// recorded.
	runCtx, cancel := context.WithTimeout(ctx, cfg.Batch.LocationTimeout())
	defer cancel()

	log := zap.L().With(
		zap.String("run_id", run.ID),
		zap.String("location", run.Location.Name),
	)

	if err := env.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		log.Error("mark run running failed", zap.Error(err))
		return
	}

	raster, err := env.Acquire.FetchRaster(runCtx, run.Location)
	if err != nil {
		log.Error("fetch raster failed", zap.Error(err))
		_ = env.Store.MarkRunFailed(ctx, run.ID, failStatus(err), err.Error())
		return
	}
	geometry, err := env.Acquire.FetchGeometry(runCtx, raster.Bounds)
	if err != nil {
		log.Error("fetch geometry failed", zap.Error(err))
		_ = env.Store.MarkRunFailed(ctx, run.ID, failStatus(err), err.Error())
		return
	}

	report, err := env.Pipeline.Run(runCtx, run.Location, raster, geometry)
	if err != nil {
		log.Error("analysis failed", zap.Error(err))
		_ = env.Store.MarkRunFailed(ctx, run.ID, failStatus(err), err.Error())
		return
	}

	evaluateSpots(runCtx, env.Vision, report, cfg.Vision.MaxSpots)

	if err := env.Store.SaveReport(ctx, run.ID, report); err != nil {
		log.Error("save report failed", zap.Error(err))
		return
	}

	log.Info("analysis complete",
		zap.Int("critical_spots", len(report.CriticalSpots)),
		zap.Float64("plantable_pct", report.Coverage.PlantablePct),
	)
}

// failStatus distinguishes a run that exhausted its budget from one
// that failed outright, matching the batch runner's classification.
func failStatus(err error) model.RunStatus {
	if model.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return model.RunStatusTimeout
	}
	return model.RunStatusFailed
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
