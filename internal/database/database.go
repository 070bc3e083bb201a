package database

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"trafficlens/internal/config"
	"trafficlens/internal/events"
)

// DBManager wraps cartridge's sqlite.Manager with the event table migrations.
// The connection opens lazily, so a manager for a non-sqlite backend never touches disk.
type DBManager struct {
	*sqlite.Manager
	path   string
	logger *slog.Logger
}

var _ cartridge.DBManager = (*DBManager)(nil)

// NewDBManager creates a new database manager using cartridge's sqlite.Manager.
func NewDBManager(cfg *config.Config, logger *slog.Logger) *DBManager {
	path := cfg.GetDatabasePath()
	sqliteCfg := sqlite.Config{
		Path:         path,
		MaxOpenConns: cfg.GetMaxOpenConns(),
		MaxIdleConns: cfg.GetMaxIdleConns(),
		Logger:       logger,
		EnableWAL:    true,
		TxImmediate:  true,
		BusyTimeout:  5000,
	}

	return &DBManager{
		Manager: sqlite.NewManager(sqliteCfg),
		path:    path,
		logger:  logger,
	}
}

// Init creates the database directory and opens the connection.
func (dm *DBManager) Init() error {
	if dir := filepath.Dir(dm.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	_, err := dm.Manager.Connect()
	return err
}

// MigrateDatabase creates or updates the event tables.
func (dm *DBManager) MigrateDatabase() error {
	db := dm.GetConnection()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	migrator := cartridge.NewAutoMigrator(events.Models()...)
	err := db.Transaction(func(tx *gorm.DB) error {
		return migrator.Migrate(tx)
	})
	if err != nil {
		dm.logger.Error("Failed to auto-migrate database", slog.Any("error", err))
		return err
	}

	if err := dm.CheckpointWAL("FULL"); err != nil {
		dm.logger.Warn("Failed to checkpoint WAL after migration", slog.Any("error", err))
	}

	dm.logger.Info("Database migration completed successfully")
	return nil
}
