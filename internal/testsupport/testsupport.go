package testsupport

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"trafficlens/internal/config"
	"trafficlens/internal/database"
	"trafficlens/internal/events"
)

var dbCounter atomic.Int64

// SetupTestDB creates a fresh in-memory sqlite database with the event tables migrated.
// cache=shared lets every pooled connection see the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	sanitizedName := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:test_%s_%d_%d?mode=memory&cache=shared",
		sanitizedName, time.Now().UnixNano(), dbCounter.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(events.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager opens a migrated file-backed database in a temp directory. WAL
// checkpoints need a real file, which the in-memory database of SetupTestDB lacks.
func SetupTestDBManager(t *testing.T) (*database.DBManager, *slog.Logger) {
	t.Helper()
	logger := GetLogger()

	cfg := TestConfig()
	cfg.StoreBackend = config.SQLiteStore
	cfg.DatabaseName = filepath.Join(t.TempDir(), "trafficlens-test.db")

	dbManager := database.NewDBManager(cfg, logger)
	require.NoError(t, dbManager.Init())
	require.NoError(t, dbManager.MigrateDatabase())
	t.Cleanup(func() { dbManager.Close() })

	return dbManager, logger
}

// NewTestDBManager wraps db for code that only needs a cartridge.DBManager.
func NewTestDBManager(db *gorm.DB) *ctestsupport.TestDBManager {
	return ctestsupport.NewTestDBManager(db)
}

// CleanTables deletes every row from the given tables.
func CleanTables(db *gorm.DB, tables ...string) {
	if len(tables) == 0 {
		tables = []string{"page_views", "visitors"}
	}

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// TruncatePostgres empties the postgres event tables between integration tests.
func TruncatePostgres(ctx context.Context, url string) error {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, "TRUNCATE page_views, visitors RESTART IDENTITY")
	return err
}

// GetLogger returns a test logger that discards output
func GetLogger() *slog.Logger {
	return ctestsupport.NewTestLogger()
}

// TestConfig returns a config for the test environment without touching viper.
func TestConfig() *config.Config {
	return &config.Config{
		AppName:           "trafficlens",
		AppPort:           "0",
		Environment:       config.Test,
		LogLevel:          config.LogLevelError,
		StoreBackend:      config.MemoryStore,
		DefaultRangeDays:  7,
		PopularPagesLimit: 5,
		QueryWorkers:      2,
	}
}

// View builds a page-view input. An empty session leaves the session id unset.
func View(visitorID, sessionID, pageURL string, ts time.Time) events.PageViewInput {
	return events.PageViewInput{
		PageURL:   pageURL,
		VisitorID: visitorID,
		SessionID: events.StringPtr(sessionID),
		Timestamp: ts,
	}
}

// ViewOption customizes a page-view input built by View.
type ViewOption func(*events.PageViewInput)

func WithTitle(title string) ViewOption {
	return func(in *events.PageViewInput) { in.PageTitle = events.StringPtr(title) }
}

func WithReferrer(referrer string) ViewOption {
	return func(in *events.PageViewInput) { in.Referrer = events.StringPtr(referrer) }
}

func WithCountry(country string) ViewOption {
	return func(in *events.PageViewInput) { in.Country = events.StringPtr(country) }
}

func WithDevice(device string) ViewOption {
	return func(in *events.PageViewInput) { in.Device = events.StringPtr(device) }
}

func WithDuration(seconds int) ViewOption {
	return func(in *events.PageViewInput) { in.Duration = events.IntPtr(seconds) }
}

// ViewWith is View plus options.
func ViewWith(visitorID, sessionID, pageURL string, ts time.Time, opts ...ViewOption) events.PageViewInput {
	in := View(visitorID, sessionID, pageURL, ts)
	for _, opt := range opts {
		opt(&in)
	}
	return in
}

// RecordViews appends inputs to store in order and returns the stored records.
func RecordViews(t *testing.T, store events.Store, inputs ...events.PageViewInput) []events.PageView {
	t.Helper()

	views := make([]events.PageView, 0, len(inputs))
	for _, in := range inputs {
		view, err := store.RecordPageView(context.Background(), in)
		require.NoError(t, err)
		views = append(views, view)
	}
	return views
}

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
