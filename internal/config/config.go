// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/karloscodes/cartridge"
	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Event store backends
const (
	MemoryStore   = "memory"
	SQLiteStore   = "sqlite"
	PostgresStore = "postgres"
)

// DefaultGeoLiteDownloadURL is MaxMind's permalink for the GeoLite2 country edition.
const DefaultGeoLiteDownloadURL = "https://download.maxmind.com/app/geoip_download?edition_id=GeoLite2-Country&license_key=%s&suffix=tar.gz"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`

	// Event store
	StoreBackend string `mapstructure:"storebackend"`
	DatabasePath string `mapstructure:"storagepath"`
	DatabaseName string `mapstructure:"-"` // Derived from other settings
	PostgresURL  string `mapstructure:"postgresurl"`
	GeoDBPath    string `mapstructure:"geodbpath"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Query defaults
	DefaultRangeDays  int `mapstructure:"defaultrangedays"`
	PopularPagesLimit int `mapstructure:"popularpageslimit"`
	QueryWorkers      int `mapstructure:"queryworkers"`

	// HTTP settings
	APIKey             string `mapstructure:"apikey"` // protects read endpoints when set
	RateLimitPerMinute int    `mapstructure:"ratelimitperminute"`

	// Background jobs
	JobsEnabled        bool   `mapstructure:"jobsenabled"`
	GeoLiteLicenseKey  string `mapstructure:"geolitelicensekey"`
	GeoLiteDownloadURL string `mapstructure:"geolitedownloadurl"` // %s is replaced by the license key

	// Seed demo data on startup (memory backend only makes sense for demos)
	SeedDemo bool `mapstructure:"seeddemo"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "trafficlens")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("storebackend", MemoryStore)
		v.SetDefault("storagepath", "storage")
		v.SetDefault("postgresurl", "")
		v.SetDefault("geodbpath", "storage/GeoLite2-Country.mmdb")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("defaultrangedays", 7)
		v.SetDefault("popularpageslimit", 5)
		v.SetDefault("queryworkers", 4)
		v.SetDefault("apikey", "")
		v.SetDefault("ratelimitperminute", 70)
		v.SetDefault("seeddemo", false)
		v.SetDefault("jobsenabled", true)
		v.SetDefault("geolitelicensekey", "")
		v.SetDefault("geolitedownloadurl", DefaultGeoLiteDownloadURL)

		v.BindEnv("appname", "TRAFFICLENS_APP_NAME")
		v.BindEnv("appport", "TRAFFICLENS_APP_PORT")
		v.BindEnv("environment", "TRAFFICLENS_ENV")
		v.BindEnv("loglevel", "TRAFFICLENS_LOG_LEVEL")
		v.BindEnv("storebackend", "TRAFFICLENS_STORE_BACKEND")
		v.BindEnv("storagepath", "TRAFFICLENS_STORAGE_PATH")
		v.BindEnv("postgresurl", "TRAFFICLENS_POSTGRES_URL")
		v.BindEnv("geodbpath", "TRAFFICLENS_GEO_DB_PATH")
		v.BindEnv("logsdir", "TRAFFICLENS_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "TRAFFICLENS_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "TRAFFICLENS_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "TRAFFICLENS_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbmaxopenconns", "TRAFFICLENS_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "TRAFFICLENS_DB_MAX_IDLE_CONNS")
		v.BindEnv("defaultrangedays", "TRAFFICLENS_DEFAULT_RANGE_DAYS")
		v.BindEnv("popularpageslimit", "TRAFFICLENS_POPULAR_PAGES_LIMIT")
		v.BindEnv("queryworkers", "TRAFFICLENS_QUERY_WORKERS")
		v.BindEnv("apikey", "TRAFFICLENS_API_KEY")
		v.BindEnv("ratelimitperminute", "TRAFFICLENS_RATE_LIMIT_PER_MINUTE")
		v.BindEnv("seeddemo", "TRAFFICLENS_SEED_DEMO")
		v.BindEnv("jobsenabled", "TRAFFICLENS_JOBS_ENABLED")
		v.BindEnv("geolitelicensekey", "TRAFFICLENS_GEOLITE_LICENSE_KEY")
		v.BindEnv("geolitedownloadurl", "TRAFFICLENS_GEOLITE_DOWNLOAD_URL")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validBackends := map[string]bool{
		MemoryStore:   true,
		SQLiteStore:   true,
		PostgresStore: true,
	}
	if !validBackends[c.StoreBackend] {
		return fmt.Errorf("invalid store backend: %s", c.StoreBackend)
	}

	if c.StoreBackend == PostgresStore && c.PostgresURL == "" {
		return fmt.Errorf("postgres store backend requires TRAFFICLENS_POSTGRES_URL")
	}

	if c.DefaultRangeDays <= 0 {
		return fmt.Errorf("defaultrangedays must be positive, got %d", c.DefaultRangeDays)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

var (
	_ cartridge.Config            = (*Config)(nil)
	_ cartridge.LogConfigProvider = (*Config)(nil)
)

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP port the server listens on
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory is empty: the API serves no static assets.
func (c *Config) GetPublicDirectory() string {
	return ""
}

func (c *Config) GetAssetsPrefix() string {
	return ""
}

func (c *Config) GetAppName() string {
	return c.AppName
}

// Log settings consumed by cartridge.NewLogger.

func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1
// - Development/Production: 10 (allows concurrent reads for parallel overview queries)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetPopularPagesLimit returns the default number of rows for popular pages
func (c *Config) GetPopularPagesLimit() int {
	if c.PopularPagesLimit > 0 {
		return c.PopularPagesLimit
	}
	return 5
}

// GetQueryWorkers returns the worker count used for parallel metric computation
func (c *Config) GetQueryWorkers() int {
	if c.QueryWorkers > 0 {
		return c.QueryWorkers
	}
	return 1
}

// GetRateLimitPerMinute returns the per-IP limit for the tracking endpoint
func (c *Config) GetRateLimitPerMinute() int {
	if c.RateLimitPerMinute > 0 {
		return c.RateLimitPerMinute
	}
	return 70
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
