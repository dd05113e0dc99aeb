package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/lite-ingest/internal/config"
	"github.com/kirillkom/lite-ingest/internal/core/artifact"
	"github.com/kirillkom/lite-ingest/internal/core/ports"
	"github.com/kirillkom/lite-ingest/internal/core/usecase"
	"github.com/kirillkom/lite-ingest/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/lite-ingest/internal/infrastructure/queue/nats"
	"github.com/kirillkom/lite-ingest/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/lite-ingest/internal/infrastructure/resilience"
	"github.com/kirillkom/lite-ingest/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/lite-ingest/internal/observability/metrics"
)

type App struct {
	Config   config.Config
	Registry *artifact.Registry

	// Events is nil when NATS_URL is unset.
	Events  *nats.EventBus
	Metrics *prometheus.Registry

	Cases    ports.CaseService
	Ingest   ports.Ingestor
	Explorer ports.CaseExplorer

	closeFn func()
}

// New wires every adapter behind the use cases. service tags logs and
// metrics with the binary that owns the App.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	registry, err := artifact.LoadRegistry(cfg.FieldFiltersPath)
	if err != nil {
		return nil, fmt.Errorf("load artifact registry: %w", err)
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	bus, err := openEvents(cfg, service)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	var events ports.EventPublisher
	if bus != nil {
		events = bus
	}

	metricsRegistry := prometheus.NewRegistry()
	observer := metrics.NewIngestMetrics(service, metricsRegistry)

	tables := postgres.NewTableCache(cfg.TableCacheSize)
	caseRepo := postgres.NewCaseRepository(db)
	logRepo := postgres.NewIngestionLogRepository(db)
	namespaces := postgres.NewNamespaceRepository(db, tables)
	store := postgres.NewArtifactStore(db, tables)
	queries := postgres.NewQueryRunner(db, cfg.QueryTimeout)

	casesUC := usecase.NewCaseUseCase(caseRepo, logRepo, namespaces, storage)
	ingestUC := usecase.NewIngestUseCase(caseRepo, logRepo, store, storage, events, observer, registry)
	explorerUC := usecase.NewExplorerUseCase(caseRepo, namespaces, queries, xlsx.NewWriter(), cfg.QueryMaxRows)

	return &App{
		Config:   cfg,
		Registry: registry,
		Events:   bus,
		Metrics:  metricsRegistry,

		Cases:    casesUC,
		Ingest:   ingestUC,
		Explorer: explorerUC,

		closeFn: func() {
			if bus != nil {
				bus.Close()
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// openDB retries the first connection so the binaries survive a database
// that is still starting.
func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	var db *sql.DB
	err := resilience.NewExecutor(resilience.StartupPolicy()).Execute(ctx, "postgres.open", func(context.Context) error {
		opened, err := postgres.OpenDB(cfg.PostgresDSN, cfg.DBMaxOpenConns)
		if err != nil {
			slog.Warn("postgres_not_ready", "error", err)
			return err
		}
		db = opened
		return nil
	}, resilience.Transient)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

func openEvents(cfg config.Config, service string) (*nats.EventBus, error) {
	if cfg.NATSURL == "" {
		if cfg.NATSRequired {
			return nil, errors.New("init event bus: NATS_REQUIRED is set but NATS_URL is empty")
		}
		return nil, nil
	}

	bus, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Name:               service,
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultPolicy()),
	})
	if err != nil {
		return nil, fmt.Errorf("init event bus: %w", err)
	}
	if !bus.Connected() {
		if cfg.NATSRequired {
			bus.Close()
			return nil, fmt.Errorf("init event bus: no NATS server reachable at %s", cfg.NATSURL)
		}
		slog.Warn("nats_unavailable", "url", cfg.NATSURL)
	}
	return bus, nil
}
