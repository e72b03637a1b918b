package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRun is one scheduler window's bookkeeping row for one job. The unique
// (job_name, window_start) index plus a do-nothing conflict clause lets
// concurrent workers share a row without leader election: whoever inserts
// first owns the start/finish log lines, everybody accumulates counters.
type JobRun struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	JobName     string       `gorm:"size:64;uniqueIndex:idx_job_runs_window,priority:1"`
	WindowStart time.Time    `gorm:"uniqueIndex:idx_job_runs_window,priority:2"`
	StartedAt   time.Time
	FinishedAt  *time.Time
	Batches     int
	Processed   int
	Transitions int
	Noops       int
	Errors      int
}

func (JobRun) TableName() string { return "scheduler_job_runs" }

func (s *Scheduler) ensureJobRun(ctx context.Context, job string) (*JobRun, bool, error) {
	now := s.clock.Now(ctx)
	run := &JobRun{
		ID:          s.genID.Generate(),
		JobName:     job,
		WindowStart: now.Truncate(s.cfg.Scheduler.Interval),
		StartedAt:   now,
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(run)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected > 0 {
		return run, true, nil
	}

	var existing JobRun
	err := s.db.WithContext(ctx).
		Where("job_name = ? AND window_start = ?", job, run.WindowStart).
		Limit(1).
		Find(&existing).Error
	if err != nil {
		return nil, false, err
	}
	if existing.ID == 0 {
		// The owning worker's transaction has not landed yet; fall back to a
		// private row so this worker's counters still get recorded.
		if err := s.insertPrivateJobRun(ctx, run); err != nil {
			return nil, false, err
		}
		return run, false, nil
	}

	// Counters on the returned run are this worker's contribution only;
	// finishJobRun adds them to the shared row.
	existing.Batches, existing.Processed, existing.Transitions, existing.Noops, existing.Errors = 0, 0, 0, 0, 0
	return &existing, false, nil
}

// insertPrivateJobRun persists a run keyed by its exact start time instead
// of the shared window, sidestepping the unique index held by the invisible
// owner row. finishJobRun updates by id, so the row must exist.
func (s *Scheduler) insertPrivateJobRun(ctx context.Context, run *JobRun) error {
	run.WindowStart = run.StartedAt
	return s.db.WithContext(ctx).Create(run).Error
}

func (s *Scheduler) finishJobRun(ctx context.Context, run *JobRun) {
	now := s.clock.Now(ctx)
	err := s.db.WithContext(ctx).
		Model(&JobRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"finished_at": now,
			"batches":     gorm.Expr("batches + ?", run.Batches),
			"processed":   gorm.Expr("processed + ?", run.Processed),
			"transitions": gorm.Expr("transitions + ?", run.Transitions),
			"noops":       gorm.Expr("noops + ?", run.Noops),
			"errors":      gorm.Expr("errors + ?", run.Errors),
		}).Error
	if err != nil {
		s.log.Warn("record job run", zap.String("job", run.JobName), zap.Error(err))
	}
}
