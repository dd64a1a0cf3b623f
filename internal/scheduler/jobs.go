package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/aristath/argus/internal/database"
	"github.com/aristath/argus/internal/modules/calculations"
)

// JobFunc adapts a bare function to the Job interface.
type JobFunc struct {
	JobName string
	Fn      func() error
}

// Name returns the job name.
func (j JobFunc) Name() string { return j.JobName }

// Run executes the wrapped function.
func (j JobFunc) Run() error { return j.Fn() }

// CachePurgeJob evicts expired calculation cache rows so lapsed factor
// models and analyses do not accumulate between runs.
type CachePurgeJob struct {
	cache *calculations.Cache
	log   zerolog.Logger
}

// NewCachePurgeJob creates the purge job.
func NewCachePurgeJob(cache *calculations.Cache, log zerolog.Logger) *CachePurgeJob {
	return &CachePurgeJob{
		cache: cache,
		log:   log.With().Str("job", "cache_purge").Logger(),
	}
}

// Name returns the job name.
func (j *CachePurgeJob) Name() string { return "cache_purge" }

// Run deletes every expired cache row.
func (j *CachePurgeJob) Run() error {
	removed, err := j.cache.PurgeExpired()
	if err != nil {
		return err
	}
	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Purged expired cache rows")
	}
	return nil
}

// VacuumJob compacts databases to reclaim the space purged cache rows
// leave behind. VACUUM rewrites the whole file, so this runs weekly.
type VacuumJob struct {
	dbs []*database.DB
	log zerolog.Logger
}

// NewVacuumJob creates the vacuum job over the given databases. Nil
// entries are tolerated and skipped.
func NewVacuumJob(log zerolog.Logger, dbs ...*database.DB) *VacuumJob {
	return &VacuumJob{
		dbs: dbs,
		log: log.With().Str("job", "vacuum").Logger(),
	}
}

// Name returns the job name.
func (j *VacuumJob) Name() string { return "vacuum" }

// Run vacuums every database, continuing past individual failures and
// returning the first error encountered.
func (j *VacuumJob) Run() error {
	var firstErr error
	for _, db := range j.dbs {
		if db == nil {
			continue
		}

		var before int64
		if stats, err := db.GetStats(); err == nil {
			before = stats.SizeBytes
		}

		if err := db.Vacuum(); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("Vacuum failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		event := j.log.Info().Str("database", db.Name())
		if stats, err := db.GetStats(); err == nil && before > 0 {
			event = event.Int64("reclaimed_bytes", before-stats.SizeBytes)
		}
		event.Msg("Vacuum complete")
	}
	return firstErr
}

// WALCheckpointJob truncates the write-ahead logs of the long-lived
// databases so WAL files do not grow unbounded under steady writes.
type WALCheckpointJob struct {
	dbs []*database.DB
	log zerolog.Logger
}

// NewWALCheckpointJob creates the checkpoint job over the given databases.
// Nil entries are tolerated and skipped.
func NewWALCheckpointJob(log zerolog.Logger, dbs ...*database.DB) *WALCheckpointJob {
	return &WALCheckpointJob{
		dbs: dbs,
		log: log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name.
func (j *WALCheckpointJob) Name() string { return "wal_checkpoint" }

// Run checkpoints every database, continuing past individual failures and
// returning the first error encountered.
func (j *WALCheckpointJob) Run() error {
	var firstErr error
	for _, db := range j.dbs {
		if db == nil {
			continue
		}
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		j.log.Debug().Str("database", db.Name()).Msg("WAL checkpoint complete")
	}
	return firstErr
}
