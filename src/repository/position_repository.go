package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeengine/src/database"
	"tradeengine/src/model"
)

// ErrOpenPositionExists is returned when a create loses the race against a
// concurrent signal for the same (bot, symbol, side). Callers report this as
// skipped, not as a failure.
var ErrOpenPositionExists = errors.New("an open position already exists for this bot, symbol and side")

// PositionRepository owns all Position and Order mutation. Nothing else in
// the engine writes to those tables.
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new repository instance using the main
// read/write database.
func NewPositionRepository() *PositionRepository {
	return &PositionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// FindOpen returns the OPEN position for (bot, symbol, side), or nil when
// there is none.
func (r *PositionRepository) FindOpen(ctx context.Context, botID uint, symbol, side string) (*model.Position, error) {
	var position model.Position
	err := r.db.WithContext(ctx).
		Where("bot_id = ? AND symbol = ? AND side = ? AND status = ?",
			botID, symbol, side, model.PositionStatusOpen).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":   "PositionRepository",
			"op":     "FindOpen",
			"bot_id": botID,
			"symbol": symbol,
			"side":   side,
		}).WithError(err).Error("Failed to fetch open position")
		return nil, err
	}
	return &position, nil
}

// CreateOpenPosition persists a freshly filled entry as an OPEN position
// together with its entry order, inside a serializable transaction that
// re-checks no conflicting OPEN position appeared since the pre-check.
// Returns ErrOpenPositionExists when the re-check finds a conflict; the
// caller decides what to do about the exchange order that already filled.
func (r *PositionRepository) CreateOpenPosition(ctx context.Context, position *model.Position, order *model.Order) error {
	log := logger.WithFields(map[string]interface{}{
		"repo":   "PositionRepository",
		"op":     "CreateOpenPosition",
		"bot_id": position.BotID,
		"symbol": position.Symbol,
		"side":   position.Side,
	})

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Position{}).
			Where("bot_id = ? AND symbol = ? AND side = ? AND status = ?",
				position.BotID, position.Symbol, position.Side, model.PositionStatusOpen).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrOpenPositionExists
		}

		if err := tx.Create(position).Error; err != nil {
			return err
		}

		order.PositionID = position.ID
		order.BotID = position.BotID
		return tx.Create(order).Error
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})

	if err != nil {
		if errors.Is(err, ErrOpenPositionExists) {
			log.Info("Open position already exists, create aborted")
			return err
		}
		log.WithError(err).Error("Failed to create open position")
		return err
	}

	log.WithField("position_id", position.ID).Info("Position opened")
	return nil
}

// CloseWithOrder marks the position CLOSED with its exit numbers and records
// the exit order, atomically. Protective order statuses are flipped to
// CANCELED in the same write; the exchange-side cancels happen before this.
func (r *PositionRepository) CloseWithOrder(ctx context.Context, position *model.Position, order *model.Order, closedAt time.Time) error {
	log := logger.WithFields(map[string]interface{}{
		"repo":        "PositionRepository",
		"op":          "CloseWithOrder",
		"position_id": position.ID,
	})

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":      model.PositionStatusClosed,
			"exit_price":  position.ExitPrice,
			"exit_value":  position.ExitValue,
			"pnl":         position.Pnl,
			"pnl_percent": position.PnlPercent,
			"closed_at":   closedAt,
		}
		if position.StopLossOrderID != nil {
			updates["stop_loss_status"] = model.ProtectiveOrderStatusCanceled
		}
		if position.TakeProfitOrderID != nil {
			updates["take_profit_status"] = model.ProtectiveOrderStatusCanceled
		}

		result := tx.Model(&model.Position{}).
			Where("id = ? AND status = ?", position.ID, model.PositionStatusOpen).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		order.PositionID = position.ID
		order.BotID = position.BotID
		return tx.Create(order).Error
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})

	if err != nil {
		log.WithError(err).Error("Failed to close position")
		return err
	}

	position.Status = model.PositionStatusClosed
	position.ClosedAt = &closedAt
	log.Info("Position closed")
	return nil
}

// UpdateProtectiveOrders persists the exchange identifiers and statuses of a
// position's stop-loss and take-profit legs after placement.
func (r *PositionRepository) UpdateProtectiveOrders(ctx context.Context, position *model.Position) error {
	return r.db.WithContext(ctx).Model(&model.Position{}).
		Where("id = ?", position.ID).
		Updates(map[string]interface{}{
			"stop_loss_price":      position.StopLossPrice,
			"stop_loss_order_id":   position.StopLossOrderID,
			"stop_loss_status":     position.StopLossStatus,
			"take_profit_price":    position.TakeProfitPrice,
			"take_profit_order_id": position.TakeProfitOrderID,
			"take_profit_status":   position.TakeProfitStatus,
		}).Error
}

// PositionSearchOptions filters the position listing.
type PositionSearchOptions struct {
	BotID  uint
	Symbol *string
	Status *string
	Limit  int
	Offset int
}

// Search lists positions for the read-side API, newest first.
func (r *PositionRepository) Search(ctx context.Context, opts PositionSearchOptions) ([]model.Position, error) {
	q := r.db.WithContext(ctx).Model(&model.Position{})

	if opts.BotID != 0 {
		q = q.Where("bot_id = ?", opts.BotID)
	}
	if opts.Symbol != nil {
		q = q.Where("symbol = ?", *opts.Symbol)
	}
	if opts.Status != nil {
		q = q.Where("status = ?", *opts.Status)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var positions []model.Position
	if err := q.Order("created_at DESC, id DESC").Find(&positions).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "Search",
		}).WithError(err).Error("Failed to search positions")
		return nil, err
	}
	return positions, nil
}
