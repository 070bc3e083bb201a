package geoip

import (
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// Resolver maps client IPs to ISO country codes using a GeoLite2 database.
// A Resolver without a database resolves nothing; GeoIP is optional.
type Resolver struct {
	mu     sync.RWMutex
	path   string
	db     *geoip2.Reader
	logger *slog.Logger
}

// Open loads the database at path. A missing or unreadable file yields a disabled resolver.
func Open(path string, logger *slog.Logger) *Resolver {
	r := &Resolver{path: path, logger: logger}
	r.db = r.load()
	return r
}

func (r *Resolver) load() *geoip2.Reader {
	if r.path == "" {
		r.logger.Debug("GeoIP database path not configured - GeoIP features disabled")
		return nil
	}

	fileInfo, err := os.Stat(r.path)
	if os.IsNotExist(err) {
		r.logger.Info("GeoLite2 database not found - GeoIP features disabled",
			slog.String("path", r.path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return nil
	} else if err != nil {
		r.logger.Warn("Error checking GeoLite2 database file",
			slog.String("path", r.path),
			slog.Any("error", err))
		return nil
	}

	db, err := geoip2.Open(r.path)
	if err != nil {
		r.logger.Error("Failed to open GeoLite2 database",
			slog.String("path", r.path),
			slog.Any("error", err))
		return nil
	}

	r.logger.Info("GeoLite2 database initialized successfully",
		slog.String("path", r.path),
		slog.Int64("size_bytes", fileInfo.Size()))
	return db
}

// Enabled reports whether a database is loaded.
func (r *Resolver) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db != nil
}

// Country returns the upper-case ISO code for ipAddress, or "" when it cannot be resolved.
func (r *Resolver) Country(ipAddress string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.db == nil {
		return ""
	}

	ip := net.ParseIP(strings.TrimSpace(ipAddress))
	if ip == nil {
		r.logger.Debug("Failed to parse IP address", slog.String("ip_address", ipAddress))
		return ""
	}

	record, err := r.db.Country(ip)
	if err != nil {
		r.logger.Warn("Error looking up country for IP",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
		return ""
	}

	if record.Country.IsoCode == "" || record.Country.IsoCode == "--" {
		return ""
	}
	return strings.ToUpper(record.Country.IsoCode)
}

// Reload reopens the database from disk. Call this after downloading a new file.
func (r *Resolver) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		r.db.Close()
	}
	r.db = r.load()
	if r.db != nil {
		r.logger.Info("GeoLite2 database reloaded successfully")
	}
}

// Close releases the database file.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}
