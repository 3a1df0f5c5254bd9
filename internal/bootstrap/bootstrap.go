package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kirillkom/edc-ingest/internal/config"
	"github.com/kirillkom/edc-ingest/internal/core/matching"
	"github.com/kirillkom/edc-ingest/internal/core/ports"
	"github.com/kirillkom/edc-ingest/internal/core/usecase"
	natsqueue "github.com/kirillkom/edc-ingest/internal/infrastructure/queue/nats"
	"github.com/kirillkom/edc-ingest/internal/infrastructure/registry/yamlregistry"
	"github.com/kirillkom/edc-ingest/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/edc-ingest/internal/infrastructure/resilience"
	"github.com/kirillkom/edc-ingest/internal/infrastructure/spreadsheet/excel"
	"github.com/kirillkom/edc-ingest/internal/observability/logging"
	"github.com/kirillkom/edc-ingest/internal/observability/metrics"
)

// App holds the wired pipeline shared by the api and worker binaries.
type App struct {
	Config   *config.Config
	Log      *slog.Logger
	Registry *yamlregistry.Registry
	Metrics  *prometheus.Registry
	Pipeline *metrics.Pipeline

	Validator ports.BatchValidator
	Renamer   ports.BatchRenamer
	Importer  ports.BatchImporter
	Batches   *postgres.BatchStore
	Queue     *natsqueue.Queue

	db *sql.DB
}

func New(ctx context.Context, service string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.NewJSONLogger(service, cfg.LogLevel)

	schemaRegistry, err := yamlregistry.Load(cfg.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("load schema registry: %w", err)
	}
	log.Info("schema registry loaded",
		slog.String("path", cfg.RegistryPath),
		slog.Int("version", schemaRegistry.Version()),
		slog.Int("tables", len(schemaRegistry.All())),
	)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	batches := postgres.NewBatchStore(db)
	if err := batches.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	targets := postgres.NewTargetStore(db)

	executor := resilience.NewExecutor(resilience.Policy{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
		MaxBackoff:     cfg.RetryMaxBackoff,
		Multiplier:     2.0,
		BreakerEnabled: cfg.BreakerEnabled,
	})

	scanner := excel.NewScanner(executor, cfg.ScannerWorkers)
	reader := excel.NewReader(executor)

	matcher := matching.NewMatcher(matching.Weights{
		FileName:        cfg.MatchFileNameWeight,
		Columns:         cfg.MatchColumnsWeight,
		HighThreshold:   cfg.MatchHighThreshold,
		MediumThreshold: cfg.MatchMediumThreshold,
		Epsilon:         cfg.MatchEpsilon,
	})

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipeline := metrics.NewPipeline(promRegistry)

	validator := metrics.NewInstrumentedValidator(
		usecase.NewValidator(scanner, matcher, schemaRegistry, batches, cfg.DefaultStudy, log), pipeline)
	renamer := metrics.NewInstrumentedRenamer(
		usecase.NewRenamer(validator, batches, log), pipeline)
	importer := metrics.NewInstrumentedImporter(
		usecase.NewImporter(scanner, reader, schemaRegistry, targets, batches, cfg.DefaultStudy, log), pipeline)

	queue, err := natsqueue.Connect(cfg.NATSURL, cfg.NATSSubject, executor, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &App{
		Config:    cfg,
		Log:       log,
		Registry:  schemaRegistry,
		Metrics:   promRegistry,
		Pipeline:  pipeline,
		Validator: validator,
		Renamer:   renamer,
		Importer:  importer,
		Batches:   batches,
		Queue:     queue,
		db:        db,
	}, nil
}

func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Log.Warn("close database", slog.Any("error", err))
		}
	}
}

// NewHTTPMetrics registers the API instruments on the app registry.
func (a *App) NewHTTPMetrics() *metrics.HTTP {
	return metrics.NewHTTP(a.Metrics)
}
