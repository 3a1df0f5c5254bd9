package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/edc-ingest/internal/adapters/http"
	"github.com/kirillkom/edc-ingest/internal/bootstrap"
	"github.com/kirillkom/edc-ingest/internal/observability/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "edc-ingest-api")
	if err != nil {
		slog.Error("bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer app.Close()

	handler := httpadapter.NewHandler(
		app.Validator, app.Renamer, app.Importer, app.Batches, app.Queue, app.Log)

	mux := handler.Routes()
	mux.Handle("GET /metrics", metrics.Handler(app.Metrics))

	srv := &http.Server{
		Handler: httpadapter.Chain(mux,
			httpadapter.Recover(app.Log),
			httpadapter.RequestID(),
			httpadapter.AccessLog(app.Log),
			httpadapter.RateLimit(app.Config.APIRateLimitRPS, app.Config.APIRateLimitBurst),
			httpadapter.Backpressure(app.Config.APIMaxConnections),
			httpadapter.Instrument(app.NewHTTPMetrics()),
		),
		ReadHeaderTimeout: 5 * time.Second,
		// Imports over large batches are slow by nature.
		WriteTimeout: 10 * time.Minute,
	}

	listener, err := net.Listen("tcp", ":"+app.Config.APIPort)
	if err != nil {
		app.Log.Error("listen failed", slog.String("port", app.Config.APIPort), slog.Any("error", err))
		os.Exit(1)
	}
	listener = netutil.LimitListener(listener, app.Config.APIMaxConnections)

	go func() {
		app.Log.Info("api listening",
			slog.String("port", app.Config.APIPort),
			slog.Int("max_connections", app.Config.APIMaxConnections),
		)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Log.Error("server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	app.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Log.Warn("graceful shutdown incomplete", slog.Any("error", err))
	}
}
