package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeengine/src/database"
	"tradeengine/src/model"
)

// BotRepository reads bot configuration and applies aggregate deltas. The
// execution engine never mutates bot configuration itself.
type BotRepository struct {
	db *gorm.DB
}

// NewBotRepository creates a new repository instance.
func NewBotRepository() *BotRepository {
	return &BotRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *BotRepository) WithDB(db *gorm.DB) *BotRepository {
	return &BotRepository{db: db}
}

// FindByID fetches a bot with its exchange account preloaded, or nil when
// the bot does not exist.
func (r *BotRepository) FindByID(ctx context.Context, id uint) (*model.Bot, error) {
	var bot model.Bot
	err := r.db.WithContext(ctx).
		Preload("ExchangeAccount").
		First(&bot, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":   "BotRepository",
			"op":     "FindByID",
			"bot_id": id,
		}).WithError(err).Error("Failed to fetch bot")
		return nil, err
	}
	return &bot, nil
}

// ApplyStatsDelta increments the bot's aggregate counters in place. The
// update is relative, so replaying the same delta twice would corrupt the
// aggregates; callers must pair it with the job's done-marking in one
// transaction.
func (r *BotRepository) ApplyStatsDelta(ctx context.Context, botID uint, tradesDelta, winsDelta int64, pnlDelta float64) error {
	result := r.db.WithContext(ctx).Model(&model.Bot{}).
		Where("id = ?", botID).
		Updates(map[string]interface{}{
			"total_trades":   gorm.Expr("total_trades + ?", tradesDelta),
			"winning_trades": gorm.Expr("winning_trades + ?", winsDelta),
			"total_pnl":      gorm.Expr("total_pnl + ?", pnlDelta),
		})
	if result.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "BotRepository",
			"op":     "ApplyStatsDelta",
			"bot_id": botID,
		}).WithError(result.Error).Error("Failed to apply stats delta")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
