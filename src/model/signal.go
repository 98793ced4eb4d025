package model

import "time"

const (
	SignalActionEnterLong  = "ENTER_LONG"
	SignalActionExitLong   = "EXIT_LONG"
	SignalActionEnterShort = "ENTER_SHORT"
	SignalActionExitShort  = "EXIT_SHORT"
)

// Signal is one parsed trading instruction produced by the webhook boundary.
// It is consumed exactly once; once Processed is set the row is terminal.
type Signal struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	BotID  uint   `gorm:"index;not null" json:"bot_id"`
	Action string `gorm:"size:20;not null" json:"action"`
	Symbol string `gorm:"size:50;not null;index" json:"symbol"`

	// Optional price hint from the alert source; execution uses live ticker
	// price and only falls back to this value.
	Price *float64 `json:"price,omitempty"`

	Processed bool   `gorm:"default:false;index" json:"processed"`
	Error     string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Signal) TableName() string {
	return "signals"
}

// IsEntry reports whether the action opens exposure.
func (s *Signal) IsEntry() bool {
	return s.Action == SignalActionEnterLong || s.Action == SignalActionEnterShort
}

// PositionSide maps the signal action onto the position side it targets.
func (s *Signal) PositionSide() string {
	switch s.Action {
	case SignalActionEnterLong, SignalActionExitLong:
		return PositionSideLong
	default:
		return PositionSideShort
	}
}

// OrderSide maps the signal action onto the exchange order side.
// Entering long and exiting short both buy; the other two sell.
func (s *Signal) OrderSide() string {
	switch s.Action {
	case SignalActionEnterLong, SignalActionExitShort:
		return OrderSideBuy
	default:
		return OrderSideSell
	}
}
