package model

import "time"

const (
	PositionSideLong  = "LONG"
	PositionSideShort = "SHORT"
)

const (
	PositionStatusOpen     = "OPEN"
	PositionStatusClosed   = "CLOSED"
	PositionStatusCanceled = "CANCELED"
	PositionStatusFailed   = "FAILED"
)

const (
	PositionSourceBot    = "BOT"
	PositionSourceManual = "MANUAL"
)

const (
	ProtectiveOrderStatusActive   = "ACTIVE"
	ProtectiveOrderStatusCanceled = "CANCELED"
	ProtectiveOrderStatusFailed   = "FAILED"
)

// Position is a directional exposure held by a bot. A position is created
// already OPEN, after the exchange confirmed the entry fill. For a given
// (bot, symbol, side) at most one position may be OPEN at any time; the
// ledger enforces this with a serializable re-check, not a row lock.
type Position struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	BotID  uint   `gorm:"index:idx_positions_bot_symbol_side" json:"bot_id"`
	Symbol string `gorm:"size:50;not null;index:idx_positions_bot_symbol_side" json:"symbol"`
	Side   string `gorm:"size:10;not null;index:idx_positions_bot_symbol_side" json:"side"`

	Status string `gorm:"size:20;not null;default:OPEN;index" json:"status"`

	EntryPrice    float64 `json:"entry_price"`
	EntryQuantity float64 `json:"entry_quantity"`
	EntryValue    float64 `json:"entry_value"`

	ExitPrice *float64 `json:"exit_price,omitempty"`
	ExitValue *float64 `json:"exit_value,omitempty"`

	Pnl        *float64 `json:"pnl,omitempty"`
	PnlPercent *float64 `json:"pnl_percent,omitempty"`

	Leverage       float64 `gorm:"default:1" json:"leverage"`
	BorrowedAmount float64 `json:"borrowed_amount"`
	BorrowedAsset  string  `gorm:"size:20" json:"borrowed_asset,omitempty"`

	StopLossPrice     *float64 `json:"stop_loss_price,omitempty"`
	TakeProfitPrice   *float64 `json:"take_profit_price,omitempty"`
	StopLossOrderID   *string  `gorm:"size:60" json:"stop_loss_order_id,omitempty"`
	TakeProfitOrderID *string  `gorm:"size:60" json:"take_profit_order_id,omitempty"`
	StopLossStatus    string   `gorm:"size:20" json:"stop_loss_status,omitempty"`
	TakeProfitStatus  string   `gorm:"size:20" json:"take_profit_status,omitempty"`

	AccountType string `gorm:"size:10;not null" json:"account_type"`
	Source      string `gorm:"size:10;not null;default:BOT" json:"source"`

	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Orders []Order `gorm:"foreignKey:PositionID" json:"orders,omitempty"`
}

func (Position) TableName() string {
	return "positions"
}

// IsOpen reports whether the position is still the live exposure for its key.
func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}
