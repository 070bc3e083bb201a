// Package internal contains core application functionality
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"trafficlens/internal/analytics"
	"trafficlens/internal/config"
	"trafficlens/internal/database"
	"trafficlens/internal/events"
	"trafficlens/internal/http"
	"trafficlens/internal/jobs"
	"trafficlens/internal/pkg/geoip"
	"trafficlens/internal/pkg/user_agent"
	"trafficlens/internal/seeder"
	"trafficlens/internal/timeframe"
)

// Application wraps cartridge.Application with the event store and the query engine.
type Application struct {
	*cartridge.Application
	Config    *config.Config
	DBManager *database.DBManager // opened and migrated only for the sqlite backend
	Store     events.Store
	Engine    *analytics.Engine
	Tracker   *events.Tracker
	Geo       *geoip.Resolver
	Jobs      *jobs.Scheduler // nil when background jobs are disabled
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	return NewAppWithLogger(cfg, cartridge.NewLogger(cfg, nil))
}

// NewAppWithLogger is NewAppWithConfig with an explicit logger.
func NewAppWithLogger(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	ctx := context.Background()
	a := &Application{Config: cfg}

	// The manager connects lazily; only the sqlite backend ever opens the file.
	a.DBManager = database.NewDBManager(cfg, logger)

	var db *gorm.DB
	sqliteBackend := cfg.StoreBackend == config.SQLiteStore
	if sqliteBackend {
		if err := a.DBManager.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := a.DBManager.MigrateDatabase(); err != nil {
			a.DBManager.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		db = a.DBManager.GetConnection()
	}

	store, err := events.NewStore(ctx, cfg, db, logger)
	if err != nil {
		a.DBManager.Close()
		return nil, fmt.Errorf("failed to create event store: %w", err)
	}
	a.Store = store

	if cfg.SeedDemo {
		if _, err := seeder.NewSeeder(store, logger).Run(ctx); err != nil {
			a.closeStores()
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	a.Geo = geoip.Open(cfg.GeoDBPath, logger)
	a.Tracker = events.NewTracker(store, logger,
		events.WithCountryResolver(a.Geo),
		events.WithDeviceClassifier(user_agent.DeviceClass))
	a.Engine = analytics.NewEngine(store, logger, cfg.GetQueryWorkers())

	var workers []cartridge.BackgroundWorker
	if cfg.JobsEnabled {
		var checkpointer jobs.WALCheckpointer
		if sqliteBackend {
			checkpointer = a.DBManager
		}
		a.Jobs = jobs.NewDefaultScheduler(cfg, checkpointer, a.Geo, logger)
		workers = append(workers, a.Jobs)
	}

	deps := http.Dependencies{
		Engine:            a.Engine,
		Tracker:           a.Tracker,
		Ranges:            timeframe.NewRangeParser(cfg.DefaultRangeDays),
		PopularPagesLimit: cfg.GetPopularPagesLimit(),
		Geo:               a.Geo,
	}
	if pinger, ok := store.(http.Pinger); ok {
		deps.Pinger = pinger
	}

	serverCfg := cartridge.DefaultServerConfig()
	serverCfg.ErrorHandler = errorHandler(logger)
	serverCfg.EnableStaticAssets = false

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         a.DBManager,
		ServerConfig:      serverCfg,
		RouteMountFunc:    routeMounter(http.NewHandlers(deps), cfg),
		BackgroundWorkers: workers,
	})
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	a.Application = app

	return a, nil
}

// errorHandler renders unhandled errors in the API's {"message": ...} shape.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			logger.Error("Unhandled request error", slog.String("path", c.Path()), slog.Any("error", err))
		}

		return c.Status(code).JSON(fiber.Map{"message": message})
	}
}

// Shutdown stops the workers and the server, then releases the geo database and the stores.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Application != nil {
		a.Logger.Info("Shutting down server")
		if err := a.Application.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}
	if a.Geo != nil {
		if err := a.Geo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("geoip close: %w", err))
		}
	}
	if err := a.closeStores(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *Application) closeStores() error {
	if pg, ok := a.Store.(*events.PostgresStore); ok {
		pg.Close()
	}
	if err := a.DBManager.Close(); err != nil {
		return fmt.Errorf("database close: %w", err)
	}
	return nil
}
