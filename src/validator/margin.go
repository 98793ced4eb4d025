package validator

import (
	"context"
	"fmt"

	"tradeengine/src/connectors"
	"tradeengine/src/model"
	"tradeengine/src/sizing"
)

// checkMarginEntry verifies buying power and borrow capacity for a margin
// entry and fills in the borrow/side-effect fields of the validated order.
func (v *Validator) checkMarginEntry(ctx context.Context, bot *model.Bot, signal *model.Signal, order *ValidatedOrder, size *sizing.OrderSize) error {
	base, quote := connectors.SplitSymbol(signal.Symbol)

	switch signal.Action {
	case model.SignalActionEnterLong:
		// Long entries spend quote. Own balance plus borrow capacity must
		// cover the notional; borrowing itself stays under the bot's cap.
		balance, err := v.connector.GetBalance(ctx, quote, true)
		if err != nil {
			return fmt.Errorf("fetching %s margin balance: %w", quote, err)
		}
		order.AvailableBalance = balance.Available

		maxBorrowable, err := v.connector.GetMaxBorrowable(ctx, quote)
		if err != nil {
			return fmt.Errorf("fetching max borrowable %s: %w", quote, err)
		}

		buyingPower := balance.Available.Add(maxBorrowable)
		if buyingPower.LessThan(order.NotionalValue) {
			return fmt.Errorf(
				"insufficient buying power: need %s %s, have %s available plus %s borrowable",
				order.NotionalValue, quote, balance.Available, maxBorrowable)
		}

		if size.BorrowRequired.IsPositive() {
			if err := sizing.CheckBorrowLimit(size.BorrowRequired, maxBorrowable, bot.MaxBorrowPercent); err != nil {
				return err
			}
			order.BorrowRequired = size.BorrowRequired
			order.BorrowAsset = quote
			order.SideEffect = connectors.SideEffectMarginBuy
		}
		return nil

	case model.SignalActionEnterShort:
		// Short entries sell borrowed base. The whole quantity is borrowed.
		maxBorrowable, err := v.connector.GetMaxBorrowable(ctx, base)
		if err != nil {
			return fmt.Errorf("fetching max borrowable %s: %w", base, err)
		}

		if err := sizing.CheckBorrowLimit(order.Quantity, maxBorrowable, bot.MaxBorrowPercent); err != nil {
			return err
		}

		order.BorrowRequired = order.Quantity
		order.BorrowAsset = base
		order.SideEffect = connectors.SideEffectMarginBuy
		return nil

	default:
		return fmt.Errorf("action %s is not a margin entry", signal.Action)
	}
}

// checkMarginExit verifies the margin account can close the position and
// sets the auto repay side effect so the borrow is settled by the exit fill.
func (v *Validator) checkMarginExit(ctx context.Context, signal *model.Signal, order *ValidatedOrder) error {
	_, quote := connectors.SplitSymbol(signal.Symbol)

	switch signal.Action {
	case model.SignalActionExitLong:
		if err := v.checkBaseBalanceForSell(ctx, signal.Symbol, order, true); err != nil {
			return err
		}

	case model.SignalActionExitShort:
		// Buying back a short may itself need borrowed quote.
		balance, err := v.connector.GetBalance(ctx, quote, true)
		if err != nil {
			return fmt.Errorf("fetching %s margin balance: %w", quote, err)
		}
		order.AvailableBalance = balance.Available

		maxBorrowable, err := v.connector.GetMaxBorrowable(ctx, quote)
		if err != nil {
			return fmt.Errorf("fetching max borrowable %s: %w", quote, err)
		}

		buyingPower := balance.Available.Add(maxBorrowable)
		if buyingPower.LessThan(order.NotionalValue) {
			return fmt.Errorf(
				"insufficient buying power to close short: need %s %s, have %s available plus %s borrowable",
				order.NotionalValue, quote, balance.Available, maxBorrowable)
		}

	default:
		return fmt.Errorf("action %s is not a margin exit", signal.Action)
	}

	order.SideEffect = connectors.SideEffectAutoRepay
	return nil
}
