// Package app wires the pool subsystem together: one gate, one task set,
// the stores, the generators and the services, all passed by reference
// with no ambient globals.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"missiondeck/internal/background"
	"missiondeck/internal/config"
	"missiondeck/internal/domain/repositories"
	"missiondeck/internal/gate"
	"missiondeck/internal/jobs"
	"missiondeck/internal/repository/memory"
	"missiondeck/internal/repository/postgres"
	"missiondeck/internal/service/dedup"
	"missiondeck/internal/service/generation"
	"missiondeck/internal/service/maintenance"
	"missiondeck/internal/service/pool"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds every long-lived component.
type App struct {
	Config     *config.Config
	Catalog    *config.Catalog
	Gate       *gate.Gate
	Tasks      *background.Tasks
	Engine     *pool.Engine
	Retrieval  *pool.Retrieval
	Scheduler  *maintenance.Scheduler
	Dispatcher *jobs.Dispatcher
	Logger     *slog.Logger

	pgPool *pgxpool.Pool
}

// New builds the application. Only startup misconfiguration is fatal:
// a bad catalog, invalid config, or an unreachable database.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	var (
		variants repositories.VariantRepository
		lock     repositories.MaintenanceLockRepository
		pgPool   *pgxpool.Pool
	)
	if cfg.DatabaseURL != "" {
		pgPool, err = postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		tables := postgres.NewTableNames(cfg.TablePrefix)
		if err := postgres.EnsureSchema(ctx, pgPool, tables); err != nil {
			pgPool.Close()
			return nil, err
		}
		repoConfig := &postgres.RepositoryConfig{Pool: pgPool, Tables: tables, Logger: logger}
		variants = postgres.NewVariantRepository(repoConfig)
		lock = postgres.NewMaintenanceLockRepository(repoConfig)
		logger.Info("database connected", "table_prefix", cfg.TablePrefix)
	} else {
		if cfg.Environment == "prod" {
			return nil, fmt.Errorf("DATABASE_URL is required in prod")
		}
		variants = memory.NewVariantRepository()
		lock = memory.NewMaintenanceLockRepository()
		logger.Warn("no DATABASE_URL set, using in-memory store")
	}

	g := gate.New(cfg.GenerationConcurrency, cfg.GateMaxQueue, logger)
	tasks := background.New(logger)

	media := generation.NewHTTPMediaSearcher(cfg.MediaSearchURL, logger)
	factory := generation.NewProviderFactory(cfg)
	generators := generation.NewRegistry(catalog, factory, cfg, media, logger)

	detector := dedup.New(variants, cfg.DuplicateSimilarityThreshold, cfg.DuplicateScanWindow, logger)

	engine := pool.NewEngine(variants, detector, generators, g, catalog, pool.EngineConfig{
		FreshMaxAge:        cfg.FreshnessMaxAge,
		PerPassCap:         cfg.PerPassGenerationCap,
		RetryAttempts:      cfg.GenRetryAttempts,
		QueueBusyThreshold: cfg.QueueBusyThreshold,
	}, logger)

	retrieval := pool.NewRetrieval(variants, engine, g, catalog, tasks, cfg.FreshnessMaxAge, cfg.QueueBusyThreshold, logger)

	scheduler := maintenance.NewScheduler(engine, lock, catalog, maintenance.SchedulerConfig{
		Interval:       cfg.MaintInterval,
		Budget:         cfg.MaintBudget,
		TaskCap:        cfg.MaintTaskCap,
		MinRunInterval: cfg.MaintMinInterval,
		StreakAbort:    cfg.StreakAbortThreshold,
	}, logger)

	return &App{
		Config:     cfg,
		Catalog:    catalog,
		Gate:       g,
		Tasks:      tasks,
		Engine:     engine,
		Retrieval:  retrieval,
		Scheduler:  scheduler,
		Dispatcher: jobs.NewDispatcher(retrieval, engine, scheduler),
		Logger:     logger,
		pgPool:     pgPool,
	}, nil
}

// Close drains background work and releases the database pool.
func (a *App) Close() {
	a.Tasks.Close()
	if a.pgPool != nil {
		a.pgPool.Close()
	}
}
