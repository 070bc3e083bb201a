package jobs

import (
	"context"
	"log/slog"
	"time"
)

const CheckpointInterval = time.Hour

// WALCheckpointer is implemented by database.DBManager.
type WALCheckpointer interface {
	CheckpointWAL(mode string) error
}

// CheckpointJob folds the sqlite write-ahead log back into the database file so it does
// not grow without bound under steady ingestion.
type CheckpointJob struct {
	dbManager WALCheckpointer
	logger    *slog.Logger
}

func NewCheckpointJob(dbManager WALCheckpointer, logger *slog.Logger) *CheckpointJob {
	return &CheckpointJob{dbManager: dbManager, logger: logger}
}

func (j *CheckpointJob) Run(ctx context.Context) error {
	if err := j.dbManager.CheckpointWAL("TRUNCATE"); err != nil {
		return err
	}
	j.logger.Debug("WAL checkpoint completed")
	return nil
}

func (j *CheckpointJob) Job() Job {
	return Job{Name: "wal_checkpoint", Interval: CheckpointInterval, Run: j.Run}
}
