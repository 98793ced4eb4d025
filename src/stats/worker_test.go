package stats_test

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tradeengine/src/model"
	"tradeengine/src/repository"
	"tradeengine/src/stats"
)

// helper to create a new in memory gorm DB and migrate schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in memory db: %v", err)
	}

	if err := db.AutoMigrate(&model.Bot{}, &model.StatsJob{}); err != nil {
		t.Fatalf("failed to automigrate: %v", err)
	}

	return db
}

func newWorker(db *gorm.DB) *stats.Worker {
	return stats.NewWorker(db, stats.Config{PollInterval: time.Second, BatchSize: 50})
}

func TestProcessBatchAppliesDeltasAndMarksDone(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	bot := &model.Bot{Name: "trend", AccountType: model.AccountTypeSpot, Active: true}
	if err := db.Create(bot).Error; err != nil {
		t.Fatalf("failed to create bot: %v", err)
	}

	jobs := repository.NewStatsJobRepository().WithDB(db)
	if err := jobs.Enqueue(ctx, &model.StatsJob{BotID: bot.ID, PositionID: 1, TradesDelta: 1}); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}
	if err := jobs.Enqueue(ctx, &model.StatsJob{BotID: bot.ID, PositionID: 1, WinsDelta: 1, PnlDelta: 20}); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	processed, err := newWorker(db).ProcessBatch(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected 2 processed jobs, got %d", processed)
	}

	var updated model.Bot
	if err := db.First(&updated, bot.ID).Error; err != nil {
		t.Fatalf("failed to reload bot: %v", err)
	}
	if updated.TotalTrades != 1 || updated.WinningTrades != 1 {
		t.Fatalf("unexpected aggregates: trades=%d wins=%d", updated.TotalTrades, updated.WinningTrades)
	}
	if updated.TotalPnl != 20 {
		t.Fatalf("unexpected pnl: %f", updated.TotalPnl)
	}

	var pending int64
	if err := db.Model(&model.StatsJob{}).
		Where("status = ?", model.StatsJobStatusPending).
		Count(&pending).Error; err != nil {
		t.Fatalf("failed to count pending: %v", err)
	}
	if pending != 0 {
		t.Fatalf("expected no pending jobs, got %d", pending)
	}
}

func TestProcessBatchDoesNotReplayDoneJobs(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	bot := &model.Bot{Name: "trend", AccountType: model.AccountTypeSpot, Active: true}
	if err := db.Create(bot).Error; err != nil {
		t.Fatalf("failed to create bot: %v", err)
	}

	jobs := repository.NewStatsJobRepository().WithDB(db)
	if err := jobs.Enqueue(ctx, &model.StatsJob{BotID: bot.ID, PositionID: 1, TradesDelta: 1, PnlDelta: 5}); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	worker := newWorker(db)
	if _, err := worker.ProcessBatch(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := worker.ProcessBatch(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var updated model.Bot
	if err := db.First(&updated, bot.ID).Error; err != nil {
		t.Fatalf("failed to reload bot: %v", err)
	}
	if updated.TotalTrades != 1 {
		t.Fatalf("delta applied more than once: trades=%d", updated.TotalTrades)
	}
	if updated.TotalPnl != 5 {
		t.Fatalf("unexpected pnl: %f", updated.TotalPnl)
	}
}

func TestProcessBatchSkipsJobsForMissingBot(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	jobs := repository.NewStatsJobRepository().WithDB(db)
	if err := jobs.Enqueue(ctx, &model.StatsJob{BotID: 999, TradesDelta: 1}); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	processed, err := newWorker(db).ProcessBatch(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 0 {
		t.Fatalf("expected 0 processed jobs, got %d", processed)
	}
}
