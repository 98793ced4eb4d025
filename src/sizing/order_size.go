package sizing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradeengine/src/model"
)

// OrderSize is the target sizing for one entry before lot formatting.
type OrderSize struct {
	// Base asset quantity to trade.
	Quantity decimal.Decimal
	// Quote value of the position, quantity * price.
	NotionalValue decimal.Decimal
	Leverage      decimal.Decimal
	// Amount that must be borrowed to fund the position. Zero at leverage 1.
	BorrowRequired decimal.Decimal
}

// CalculateOrderSize turns bot capital configuration into a target quantity
// and notional at the given price.
//
// QUOTE denominated capital: notional = capital * leverage, quantity follows
// from the price. BASE denominated capital: quantity = capital * leverage.
func CalculateOrderSize(capital decimal.Decimal, unit string, leverage, price decimal.Decimal) (*OrderSize, error) {
	if capital.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("trade amount must be positive, got %s", capital)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("price must be positive, got %s", price)
	}
	if leverage.LessThan(decimal.NewFromInt(1)) {
		leverage = decimal.NewFromInt(1)
	}

	size := &OrderSize{
		Leverage:       leverage,
		BorrowRequired: capital.Mul(leverage.Sub(decimal.NewFromInt(1))),
	}

	switch unit {
	case model.TradeAmountUnitQuote:
		size.NotionalValue = capital.Mul(leverage)
		size.Quantity = size.NotionalValue.Div(price)
	case model.TradeAmountUnitBase:
		size.Quantity = capital.Mul(leverage)
		size.NotionalValue = size.Quantity.Mul(price)
	default:
		return nil, fmt.Errorf("unknown trade amount unit %q", unit)
	}

	return size, nil
}

// CheckBorrowLimit validates the borrow requirement against the bot's share
// of the exchange-reported borrow capacity. Exceeding the limit is a hard
// failure, never a silent clamp.
func CheckBorrowLimit(borrowRequired, maxBorrowable decimal.Decimal, maxBorrowPercent float64) error {
	if borrowRequired.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	pct := decimal.NewFromFloat(maxBorrowPercent)
	if pct.LessThanOrEqual(decimal.Zero) || pct.GreaterThan(decimal.NewFromInt(100)) {
		pct = decimal.NewFromInt(100)
	}

	limit := maxBorrowable.Mul(pct).Div(decimal.NewFromInt(100))
	if borrowRequired.GreaterThan(limit) {
		return fmt.Errorf(
			"required borrow %s exceeds limit %s (%s%% of max borrowable %s)",
			borrowRequired, limit, pct, maxBorrowable,
		)
	}

	return nil
}
