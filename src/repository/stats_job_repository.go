package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeengine/src/database"
	"tradeengine/src/model"
)

// StatsJobRepository is the queue of pending aggregate updates. Enqueue is
// called from the execution path; the rest is consumed by the stats worker.
type StatsJobRepository struct {
	db *gorm.DB
}

// NewStatsJobRepository creates a new repository instance.
func NewStatsJobRepository() *StatsJobRepository {
	return &StatsJobRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *StatsJobRepository) WithDB(db *gorm.DB) *StatsJobRepository {
	return &StatsJobRepository{db: db}
}

// Enqueue inserts a pending job. Failures are logged and returned but the
// caller is expected to treat them as non-fatal.
func (r *StatsJobRepository) Enqueue(ctx context.Context, job *model.StatsJob) error {
	job.Status = model.StatsJobStatusPending
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "StatsJobRepository",
			"op":     "Enqueue",
			"bot_id": job.BotID,
		}).WithError(err).Error("Failed to enqueue stats job")
		return err
	}
	return nil
}

// FindPending returns up to limit pending jobs, oldest first.
func (r *StatsJobRepository) FindPending(ctx context.Context, limit int) ([]model.StatsJob, error) {
	if limit <= 0 {
		limit = 50
	}

	var jobs []model.StatsJob
	err := r.db.WithContext(ctx).
		Where("status = ?", model.StatsJobStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "StatsJobRepository",
			"op":   "FindPending",
		}).WithError(err).Error("Failed to fetch pending stats jobs")
		return nil, err
	}
	return jobs, nil
}

// MarkDone flips a job to done. Must run inside the same transaction that
// applied the job's delta; the guard on status keeps a concurrent worker
// from applying the delta twice.
func (r *StatsJobRepository) MarkDone(ctx context.Context, id uint, now time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.StatsJob{}).
		Where("id = ? AND status = ?", id, model.StatsJobStatusPending).
		Updates(map[string]interface{}{
			"status":       model.StatsJobStatusDone,
			"processed_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
