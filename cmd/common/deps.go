// Package common wires the shared dependencies every subcommand needs:
// configuration, logging, the database, repositories, the fetch client,
// and the source adapter registry.
package common

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/scottaicode/seoul-sister/internal/config"
	"github.com/scottaicode/seoul-sister/internal/database"
	"github.com/scottaicode/seoul-sister/internal/fetch"
	"github.com/scottaicode/seoul-sister/internal/logger"
	"github.com/scottaicode/seoul-sister/internal/sources"
)

// Deps holds the wired dependencies for one command invocation.
type Deps struct {
	Config *config.Config
	Logger logger.Logger
	DB     *sqlx.DB

	Staging     *database.StagingRepository
	Products    *database.ProductRepository
	Ingredients *database.IngredientRepository
	Links       *database.LinkRepository
	Retailers   *database.RetailerRepository
	Prices      *database.PriceRepository
	Runs        *database.RunRepository

	Fetch    *fetch.Client
	Registry *sources.Registry
}

// Build loads configuration and constructs the dependency graph.
func Build() (*Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, err
	}

	db, err := database.NewPostgresConnection(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	fetchClient := fetch.NewClient(cfg.Fetch, log)

	registry := sources.NewRegistry(
		sources.NewOliveYoung(fetchClient, log),
		sources.NewYesStyle(fetchClient, log),
		sources.NewStyleVana(fetchClient, log),
	)

	return &Deps{
		Config:      cfg,
		Logger:      log,
		DB:          db,
		Staging:     database.NewStagingRepository(db),
		Products:    database.NewProductRepository(db),
		Ingredients: database.NewIngredientRepository(db),
		Links:       database.NewLinkRepository(db),
		Retailers:   database.NewRetailerRepository(db),
		Prices:      database.NewPriceRepository(db),
		Runs:        database.NewRunRepository(db),
		Fetch:       fetchClient,
		Registry:    registry,
	}, nil
}

// Close releases held resources.
func (d *Deps) Close() {
	if d.DB != nil {
		_ = d.DB.Close()
	}
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}
}
