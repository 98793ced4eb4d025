package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeengine/src/database"
	"tradeengine/src/model"
)

// SignalRepository persists inbound signals and their terminal outcome.
type SignalRepository struct {
	db *gorm.DB
}

// NewSignalRepository creates a new repository instance.
func NewSignalRepository() *SignalRepository {
	return &SignalRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *SignalRepository) WithDB(db *gorm.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// Create inserts a freshly parsed signal.
func (r *SignalRepository) Create(ctx context.Context, signal *model.Signal) error {
	if err := r.db.WithContext(ctx).Create(signal).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "SignalRepository",
			"op":     "Create",
			"bot_id": signal.BotID,
			"action": signal.Action,
			"symbol": signal.Symbol,
		}).WithError(err).Error("Failed to create signal")
		return err
	}
	return nil
}

// MarkProcessed flags the signal as consumed, recording the error text when
// execution failed. The row is terminal afterward.
func (r *SignalRepository) MarkProcessed(ctx context.Context, id uint, execErr string) error {
	err := r.db.WithContext(ctx).Model(&model.Signal{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed": true,
			"error":     execErr,
		}).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "SignalRepository",
			"op":        "MarkProcessed",
			"signal_id": id,
		}).WithError(err).Error("Failed to mark signal processed")
	}
	return err
}
