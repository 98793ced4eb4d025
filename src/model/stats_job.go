package model

import "time"

const (
	StatsJobStatusPending = "pending"
	StatsJobStatusDone    = "done"
)

// StatsJob is one queued aggregate update for a bot. Jobs carry deltas, not
// snapshots, so a replayed job applied once keeps the aggregates correct
// under at-least-once delivery: the worker marks the job done in the same
// transaction that applies the delta.
type StatsJob struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	BotID      uint `gorm:"index" json:"bot_id"`
	PositionID uint `gorm:"index" json:"position_id"`

	TradesDelta int64   `json:"trades_delta"`
	WinsDelta   int64   `json:"wins_delta"`
	PnlDelta    float64 `json:"pnl_delta"`

	Status      string     `gorm:"size:20;not null;default:pending;index" json:"status"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StatsJob) TableName() string {
	return "stats_jobs"
}
