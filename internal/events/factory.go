package events

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"trafficlens/internal/config"
)

// NewStore builds the event store selected by cfg.StoreBackend. db is only used by the
// sqlite backend and may be nil otherwise.
func NewStore(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *slog.Logger) (Store, error) {
	switch cfg.StoreBackend {
	case config.MemoryStore, "":
		logger.Info("Using in-memory event store")
		return NewMemoryStore(), nil

	case config.SQLiteStore:
		if db == nil {
			return nil, fmt.Errorf("sqlite event store requires an open database connection")
		}
		logger.Info("Using sqlite event store", slog.String("path", cfg.GetDatabasePath()))
		return NewGormStore(db), nil

	case config.PostgresStore:
		store, err := NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to apply postgres schema: %w", err)
		}
		logger.Info("Using postgres event store")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}
