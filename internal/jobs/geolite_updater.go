package jobs

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trafficlens/internal/config"
)

const (
	// GeoLite database is updated weekly by MaxMind
	GeoLiteUpdateInterval = 7 * 24 * time.Hour
	// How often the job wakes up to check the age of the file
	GeoLiteCheckInterval = 6 * time.Hour
)

var ErrNoMMDB = errors.New("no .mmdb file found in archive")

// Reloader reopens the GeoIP database after the file on disk was replaced.
type Reloader interface {
	Reload()
}

// GeoLiteUpdaterJob downloads a fresh GeoLite2 database when the one on disk is older
// than GeoLiteUpdateInterval, then reloads the resolver.
type GeoLiteUpdaterJob struct {
	licenseKey  string
	downloadURL string
	destPath    string
	resolver    Reloader
	client      *http.Client
	logger      *slog.Logger
	now         func() time.Time
}

// NewGeoLiteUpdaterJob creates a new GeoLite updater job
func NewGeoLiteUpdaterJob(cfg *config.Config, resolver Reloader, logger *slog.Logger) *GeoLiteUpdaterJob {
	downloadURL := cfg.GeoLiteDownloadURL
	if downloadURL == "" {
		downloadURL = config.DefaultGeoLiteDownloadURL
	}
	return &GeoLiteUpdaterJob{
		licenseKey:  cfg.GeoLiteLicenseKey,
		downloadURL: downloadURL,
		destPath:    cfg.GeoDBPath,
		resolver:    resolver,
		client:      &http.Client{Timeout: 5 * time.Minute},
		logger:      logger,
		now:         time.Now,
	}
}

// Configured reports whether a license key and a destination are set.
func (j *GeoLiteUpdaterJob) Configured() bool {
	return j.licenseKey != "" && j.destPath != ""
}

func (j *GeoLiteUpdaterJob) Job() Job {
	return Job{Name: "geolite_updater", Interval: GeoLiteCheckInterval, Run: j.Run}
}

// Run executes the GeoLite update job
func (j *GeoLiteUpdaterJob) Run(ctx context.Context) error {
	if !j.Configured() {
		j.logger.Debug("GeoLite license key not configured, skipping update")
		return nil
	}

	lastUpdate := j.lastUpdateTime()
	if age := j.now().Sub(lastUpdate); age < GeoLiteUpdateInterval {
		j.logger.Debug("GeoLite database is up to date",
			slog.Time("last_update", lastUpdate),
			slog.Duration("age", age))
		return nil
	}

	j.logger.Info("Starting GeoLite database update", slog.Time("last_update", lastUpdate))

	if err := j.downloadAndUpdate(ctx); err != nil {
		return fmt.Errorf("failed to update GeoLite database: %w", err)
	}

	if j.resolver != nil {
		j.resolver.Reload()
	}

	j.logger.Info("GeoLite database updated successfully", slog.String("path", j.destPath))
	return nil
}

// lastUpdateTime is the modification time of the database file, zero when it is missing.
func (j *GeoLiteUpdaterJob) lastUpdateTime() time.Time {
	info, err := os.Stat(j.destPath)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func (j *GeoLiteUpdaterJob) downloadAndUpdate(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(j.destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	url := j.downloadURL
	if strings.Contains(url, "%s") {
		url = fmt.Sprintf(url, j.licenseKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download GeoLite database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	// Extract next to the destination and rename so readers never see a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(j.destPath), ".geolite-*.mmdb")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := extractMMDB(resp.Body, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write database: %w", err)
	}

	if err := os.Rename(tmp.Name(), j.destPath); err != nil {
		return fmt.Errorf("failed to replace database: %w", err)
	}
	return nil
}

// extractMMDB copies the first .mmdb entry of a tar.gz stream into dst.
func extractMMDB(src io.Reader, dst io.Writer) error {
	gzr, err := gzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return ErrNoMMDB
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}

		if header.Typeflag == tar.TypeReg && strings.HasSuffix(header.Name, ".mmdb") {
			if _, err := io.Copy(dst, tr); err != nil {
				return fmt.Errorf("failed to extract file: %w", err)
			}
			return nil
		}
	}
}
