package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/edc-ingest/internal/bootstrap"
	"github.com/kirillkom/edc-ingest/internal/core/domain"
	"github.com/kirillkom/edc-ingest/internal/observability/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "edc-ingest-worker")
	if err != nil {
		slog.Error("bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer app.Close()

	metricsSrv := &http.Server{
		Addr:              ":" + app.Config.MetricsPort,
		Handler:           metricsMux(app),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		app.Log.Info("worker metrics listening", slog.String("port", app.Config.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Log.Error("metrics server stopped", slog.Any("error", err))
		}
	}()

	app.Log.Info("worker consuming import jobs", slog.String("subject", app.Config.NATSSubject))
	err = app.Queue.SubscribeImportJobs(ctx, func(jobCtx context.Context, job domain.ImportJob) error {
		app.Log.Info("import job received",
			slog.String("batch_id", job.BatchID),
			slog.String("folder", job.Folder),
			slog.String("study", job.Study),
		)
		results, err := app.Importer.Import(jobCtx, job.Folder, job.Study)
		if err != nil {
			return err
		}
		for _, res := range results {
			if !res.Success {
				app.Log.Warn("table load failed",
					slog.String("table", res.TableID),
					slog.String("error", res.Error),
				)
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		app.Log.Error("subscription ended", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		app.Log.Warn("metrics shutdown incomplete", slog.Any("error", err))
	}
}

func metricsMux(app *bootstrap.App) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler(app.Metrics))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
