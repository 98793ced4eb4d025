package model

import (
	"strings"
	"time"
)

const (
	AccountTypeSpot   = "SPOT"
	AccountTypeMargin = "MARGIN"
)

const (
	TradeAmountUnitQuote = "QUOTE"
	TradeAmountUnitBase  = "BASE"
)

// Bot holds the trading configuration a signal is executed against.
// The execution engine only reads it; trade counters and cumulative
// pnl are owned by the stats updater and lag execution.
type Bot struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100" json:"name"`

	// Comma separated list of symbols this bot accepts, e.g. "BTCUSDT,ETHUSDT".
	Symbols string `gorm:"size:500" json:"symbols"`

	AccountType string `gorm:"size:10;not null;default:SPOT" json:"account_type"`

	TradeAmount     float64 `json:"trade_amount"`
	TradeAmountUnit string  `gorm:"size:10;not null;default:QUOTE" json:"trade_amount_unit"`

	// Leverage >= 1. Only meaningful for MARGIN bots; leverage 1 means no borrowing.
	Leverage         float64 `gorm:"default:1" json:"leverage"`
	MaxBorrowPercent float64 `gorm:"default:100" json:"max_borrow_percent"`

	StopLossPct   *float64 `json:"stop_loss_pct,omitempty"`
	TakeProfitPct *float64 `json:"take_profit_pct,omitempty"`

	Active bool `gorm:"default:true;index" json:"active"`

	ExchangeAccountID uint  `gorm:"index" json:"exchange_account_id"`
	PortfolioID       *uint `gorm:"index" json:"portfolio_id,omitempty"`

	// Aggregates, eventually consistent. Written only by the stats updater.
	TotalTrades   int64   `json:"total_trades"`
	WinningTrades int64   `json:"winning_trades"`
	TotalPnl      float64 `json:"total_pnl"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ExchangeAccount *ExchangeAccount `gorm:"constraint:OnDelete:SET NULL" json:"exchange_account,omitempty"`
}

func (Bot) TableName() string {
	return "bots"
}

// AllowsSymbol reports whether the symbol is in the bot's configured list.
// An empty list means the bot accepts any symbol.
func (b *Bot) AllowsSymbol(symbol string) bool {
	if strings.TrimSpace(b.Symbols) == "" {
		return true
	}
	for _, s := range strings.Split(b.Symbols, ",") {
		if strings.EqualFold(strings.TrimSpace(s), symbol) {
			return true
		}
	}
	return false
}
