package model

import "time"

const (
	OrderTypeEntry = "ENTRY"
	OrderTypeExit  = "EXIT"
)

const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"
)

const (
	OrderKindMarket = "MARKET"
	OrderKindLimit  = "LIMIT"
)

const (
	OrderStatusFilled   = "FILLED"
	OrderStatusCanceled = "CANCELED"
	OrderStatusRejected = "REJECTED"
)

// Order is one exchange-side fill record. Rows are created only after the
// exchange confirmed the order; a FILLED row is immutable.
type Order struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	PositionID uint `gorm:"index" json:"position_id"`
	BotID      uint `gorm:"index" json:"bot_id"`

	// Identifier returned by the exchange.
	ExchangeOrderID string `gorm:"size:60;index" json:"exchange_order_id"`
	// Client-generated id sent with the request. Acts as the idempotency key
	// for tracing orders whose ledger write lost a create race.
	ClientOrderID string `gorm:"size:60;uniqueIndex" json:"client_order_id"`

	Symbol    string `gorm:"size:50;not null" json:"symbol"`
	Type      string `gorm:"size:10;not null" json:"type"`
	Side      string `gorm:"size:10;not null" json:"side"`
	OrderKind string `gorm:"size:10;not null;default:MARKET" json:"order_kind"`

	ExecutedPrice    float64 `json:"executed_price"`
	ExecutedQuantity float64 `json:"executed_quantity"`
	ExecutedValue    float64 `json:"executed_value"`

	Status      string  `gorm:"size:20;not null" json:"status"`
	FillPercent float64 `json:"fill_percent"`

	// Realized pnl, exit orders only.
	Pnl *float64 `json:"pnl,omitempty"`

	ExecutedAt *time.Time `json:"executed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}
