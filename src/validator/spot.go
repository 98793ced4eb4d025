package validator

import (
	"context"
	"fmt"

	"tradeengine/src/connectors"
)

// checkSpotBuy verifies the quote asset balance covers the order's notional.
func (v *Validator) checkSpotBuy(ctx context.Context, symbol string, order *ValidatedOrder) error {
	_, quote := connectors.SplitSymbol(symbol)

	balance, err := v.connector.GetBalance(ctx, quote, false)
	if err != nil {
		return fmt.Errorf("fetching %s balance: %w", quote, err)
	}
	order.AvailableBalance = balance.Available

	if balance.Available.LessThan(order.NotionalValue) {
		return fmt.Errorf(
			"insufficient %s balance: need %s, have %s", quote, order.NotionalValue, balance.Available)
	}
	return nil
}
