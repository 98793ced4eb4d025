package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/gorm"

	"tradeengine/src/model"
)

func TestStatsJobRepositoryEnqueueForcesPendingStatus(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&StatsJobRepository{}).WithDB(mockDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "stats_jobs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectCommit()

	job := &model.StatsJob{BotID: 1, PositionID: 42, TradesDelta: 1, PnlDelta: 20, Status: "done"}
	if err := repo.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Status != model.StatsJobStatusPending {
		t.Fatalf("expected pending status, got %s", job.Status)
	}
}

func TestStatsJobRepositoryFindPendingOldestFirst(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&StatsJobRepository{}).WithDB(mockDB)

	rows := sqlmock.NewRows([]string{"id", "bot_id", "status"}).
		AddRow(1, 1, model.StatsJobStatusPending).
		AddRow(2, 1, model.StatsJobStatusPending)

	mock.ExpectQuery(`SELECT \* FROM "stats_jobs"`).
		WithArgs(model.StatsJobStatusPending, 10).
		WillReturnRows(rows)

	jobs, err := repo.FindPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != 1 {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
}

func TestStatsJobRepositoryMarkDoneGuardsOnPending(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&StatsJobRepository{}).WithDB(mockDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "stats_jobs"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.MarkDone(context.Background(), 5, time.Now())
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound for already-done job, got %v", err)
	}
}

func TestBotRepositoryApplyStatsDelta(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&BotRepository{}).WithDB(mockDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bots"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.ApplyStatsDelta(context.Background(), 1, 1, 1, 20.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestBotRepositoryApplyStatsDeltaMissingBot(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&BotRepository{}).WithDB(mockDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bots"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.ApplyStatsDelta(context.Background(), 99, 1, 0, 0)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}
