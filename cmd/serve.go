package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wakefit-analytics/gmb-pipeline/internal/config"
	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
	"github.com/wakefit-analytics/gmb-pipeline/internal/monitoring"
	"github.com/wakefit-analytics/gmb-pipeline/internal/store"
)

const (
	msgRunSucceeded = "Pipeline executed successfully."
	msgRunFailed    = "Pipeline failed: "
)

var servePort int

// runner executes one snapshot.
type runner interface {
	Run(ctx context.Context) (*model.RunOutcome, error)
}

// runResponse is the body returned by POST /run.
type runResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger",
	Long:  "Serves POST /run for schedulers, plus health and run-history endpoints. Runs the alert checker when run history is enabled.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, config.ModeServe)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Store != nil && env.Alerter.Enabled() {
			checker := monitoring.NewChecker(monitoring.NewCollector(env.Store), env.Alerter, cfg.Monitoring)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env.Pipeline, env.Store),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the HTTP endpoints. runs may be nil when run history
// is disabled.
func buildRouter(p runner, runs store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Runs are serialized so two same-day triggers never clear each
	// other's worksheets mid-write.
	var mu sync.Mutex
	r.Post("/run", func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		status, resp := triggerRun(req.Context(), p)
		writeJSON(w, status, resp)
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		if runs == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run history is disabled"})
			return
		}
		filter := store.RunFilter{
			Status:       model.RunStatus(req.URL.Query().Get("status")),
			SnapshotDate: req.URL.Query().Get("date"),
		}
		if v := req.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
				return
			}
			filter.Limit = n
		}

		list, err := runs.ListRuns(req.Context(), filter)
		if err != nil {
			zap.L().Error("list runs failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list runs failed"})
			return
		}
		if list == nil {
			list = []model.Run{}
		}
		writeJSON(w, http.StatusOK, list)
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		if runs == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run history is disabled"})
			return
		}
		run, err := runs.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
				return
			}
			zap.L().Error("get run failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "get run failed"})
			return
		}
		phases, err := runs.ListPhases(req.Context(), run.ID)
		if err != nil {
			zap.L().Warn("list phases failed", zap.String("run_id", run.ID), zap.Error(err))
		}
		kpis, err := runs.ListKPIs(req.Context(), run.ID)
		if err != nil {
			zap.L().Warn("list kpis failed", zap.String("run_id", run.ID), zap.Error(err))
		}
		writeJSON(w, http.StatusOK, map[string]any{"run": run, "phases": phases, "kpis": kpis})
	})

	return r
}

// triggerRun executes the pipeline and maps the outcome to the trigger's
// response contract.
func triggerRun(ctx context.Context, p runner) (int, runResponse) {
	if p == nil {
		return http.StatusInternalServerError, runResponse{Message: msgRunFailed + "pipeline not configured", Status: http.StatusInternalServerError}
	}

	outcome, err := p.Run(ctx)
	if err != nil {
		zap.L().Error("triggered run failed", zap.Error(err))
		return http.StatusInternalServerError, runResponse{Message: msgRunFailed + err.Error(), Status: http.StatusInternalServerError}
	}

	zap.L().Info("triggered run complete",
		zap.String("run_id", outcome.RunID),
		zap.String("snapshot_date", outcome.Snapshot.Date()),
	)
	return http.StatusOK, runResponse{Message: msgRunSucceeded, Status: http.StatusOK}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
