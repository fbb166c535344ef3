// Package app wires configuration into the running collaborators shared by
// the HTTP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventariate/backend-go/internal/cache"
	"github.com/andresuchdata/inventariate/backend-go/internal/config"
	"github.com/andresuchdata/inventariate/backend-go/internal/drive"
	"github.com/andresuchdata/inventariate/backend-go/internal/migrations"
	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline"
	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline/inventory"
	"github.com/andresuchdata/inventariate/backend-go/internal/report"
	"github.com/andresuchdata/inventariate/backend-go/internal/repository"
	"github.com/andresuchdata/inventariate/backend-go/internal/repository/sqldb"
	"github.com/andresuchdata/inventariate/backend-go/internal/service"
	"github.com/andresuchdata/inventariate/backend-go/internal/storage"
)

// Options turn optional collaborators off, for commands that do not need
// them.
type Options struct {
	SkipDatabase bool
	SkipDrive    bool
}

type App struct {
	Config    *config.Config
	DB        *sqldb.DB
	Objects   storage.ObjectStorage
	Artifacts *storage.ArtifactStore
	Cache     cache.RunSummaryCache
	Runs      *pipeline.Repository
	Drive     *drive.Service
	Inventory *service.InventoryService

	pdf *report.ChromedpRenderer
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.Objects = objects
	a.Artifacts = storage.NewArtifactStore(objects)

	summaries, err := cache.NewRunSummaryCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, run summaries are not cached")
		summaries = cache.NewNoopRunSummaryCache()
	}
	a.Cache = summaries

	deps := service.Dependencies{
		Pipeline: inventory.NewPipeline(inventory.Options{SafetyFactor: cfg.Pipeline.SafetyFactor}),
		Store:    a.Artifacts,
		Cache:    summaries,
	}

	if !opts.SkipDatabase {
		db, err := sqldb.NewDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		a.DB = db
		if cfg.Database.AutoMigrate {
			if err := MigrateUp(db); err != nil {
				db.Close()
				return nil, err
			}
		}
		a.Runs = pipeline.NewRepository(db)
		deps.History = repository.NewHistoryRepository(db)
		deps.Runs = a.Runs
	}

	if !opts.SkipDrive {
		d, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		switch {
		case errors.Is(err, drive.ErrNotConfigured):
			log.Debug().Msg("drive import disabled")
		case err != nil:
			log.Warn().Err(err).Msg("drive import disabled")
		default:
			a.Drive = d
			deps.Drive = d
		}
	}

	a.pdf = report.NewChromedpRenderer(cfg.Report, log.Logger)
	deps.Renderer = report.NewRenderer(a.pdf, cfg.Pipeline.ChartChunkSize)

	a.Inventory = service.NewInventoryService(deps)
	return a, nil
}

// MigrateUp applies every pending migration for the connection's dialect.
func MigrateUp(db *sqldb.DB) error {
	m, err := migrations.New(db.DB.DB, db.Dialect())
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

func (a *App) Close() error {
	if a.pdf != nil {
		_ = a.pdf.Close()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
