package jobs

import (
	"log/slog"

	"trafficlens/internal/config"
)

// NewDefaultScheduler registers the jobs that apply to cfg: the GeoLite updater when a
// license key is set and the WAL checkpoint when a checkpointer is given.
func NewDefaultScheduler(cfg *config.Config, checkpointer WALCheckpointer, resolver Reloader, logger *slog.Logger) *Scheduler {
	var registered []Job

	if updater := NewGeoLiteUpdaterJob(cfg, resolver, logger); updater.Configured() {
		registered = append(registered, updater.Job())
	}
	if checkpointer != nil {
		registered = append(registered, NewCheckpointJob(checkpointer, logger).Job())
	}

	return NewScheduler(logger, registered...)
}
