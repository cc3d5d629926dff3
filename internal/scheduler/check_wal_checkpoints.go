package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/aristath/ecovest/internal/database"
)

// walWarnPages is the WAL size, in pages, above which a truncating checkpoint
// is forced.
const walWarnPages = 10000

// CheckWALCheckpointsJob keeps the SQLite WAL file from growing unbounded
type CheckWALCheckpointsJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewCheckWALCheckpointsJob creates a new CheckWALCheckpointsJob
func NewCheckWALCheckpointsJob(db *database.DB, log zerolog.Logger) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		db:  db,
		log: log.With().Str("job", "check_wal_checkpoints").Logger(),
	}
}

// Name returns the job name
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run executes the check WAL checkpoints job
func (j *CheckWALCheckpointsJob) Run() error {
	if j.db == nil {
		return nil
	}

	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, logPages, checkpointed int
	err := j.db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &logPages, &checkpointed)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to check WAL checkpoint")
		return nil
	}

	if logPages > walWarnPages {
		j.log.Warn().Int("wal_pages", logPages).Msg("WAL is large, forcing truncate checkpoint")
		if _, err := j.db.Conn().Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			j.log.Error().Err(err).Msg("Truncate checkpoint failed")
			return err
		}
	}

	j.log.Debug().
		Int("busy", busy).
		Int("wal_pages", logPages).
		Int("checkpointed", checkpointed).
		Msg("WAL checkpoint checked")
	return nil
}
