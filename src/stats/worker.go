package stats

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeengine/src/metrics"
	"tradeengine/src/model"
	"tradeengine/src/repository"
)

// Worker drains the stats job queue and folds the deltas into the bots'
// aggregate counters. Delivery is at least once; correctness comes from
// applying each delta and marking its job done in one transaction.
type Worker struct {
	db        *gorm.DB
	jobs      *repository.StatsJobRepository
	bots      *repository.BotRepository
	interval  time.Duration
	batchSize int

	now func() time.Time
}

func NewWorker(db *gorm.DB, config Config) *Worker {
	return &Worker{
		db:        db,
		jobs:      repository.NewStatsJobRepository().WithDB(db),
		bots:      repository.NewBotRepository().WithDB(db),
		interval:  config.PollInterval,
		batchSize: config.BatchSize,
		now:       time.Now,
	}
}

// Run polls for pending jobs until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	logger.WithField("interval", w.interval).Info("Stats worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stats worker stopped")
			return
		case <-ticker.C:
			if n, err := w.ProcessBatch(ctx); err != nil {
				logger.WithError(err).Error("Stats batch failed")
			} else if n > 0 {
				logger.WithField("jobs", n).Debug("Stats batch processed")
			}
		}
	}
}

// ProcessBatch applies one batch of pending jobs and returns how many were
// completed.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	jobs, err := w.jobs.FindPending(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range jobs {
		job := &jobs[i]
		if err := w.processJob(ctx, job); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Another worker claimed the job between the read and the
				// guarded update. Not a failure.
				continue
			}
			metrics.StatsJobsProcessed.WithLabelValues("failed").Inc()
			logger.WithFields(map[string]interface{}{
				"job_id": job.ID,
				"bot_id": job.BotID,
			}).WithError(err).Error("Stats job failed")
			continue
		}
		metrics.StatsJobsProcessed.WithLabelValues("done").Inc()
		processed++
	}

	return processed, nil
}

func (w *Worker) processJob(ctx context.Context, job *model.StatsJob) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The guarded done-marking goes first: if the job is no longer
		// pending the transaction rolls back before any delta is applied.
		if err := w.jobs.WithDB(tx).MarkDone(ctx, job.ID, w.now()); err != nil {
			return err
		}
		return w.bots.WithDB(tx).ApplyStatsDelta(
			ctx, job.BotID, job.TradesDelta, job.WinsDelta, job.PnlDelta)
	})
}
