package validator

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tradeengine/src/connectors"
	"tradeengine/src/exchangeinfo"
	"tradeengine/src/model"
	"tradeengine/src/sizing"
)

// stepTolerance is how many lot steps below the target a balance may sit
// before a sell is rejected instead of silently reduced.
const stepTolerance = 2

// ValidatedOrder is the outcome of a successful validation: everything the
// executor needs to place the order without touching the exchange again.
type ValidatedOrder struct {
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	NotionalValue decimal.Decimal
	Constraints   *connectors.SymbolConstraints

	AvailableBalance decimal.Decimal

	// Margin only. Zero borrow means no side effect is needed.
	BorrowRequired decimal.Decimal
	BorrowAsset    string
	SideEffect     string
}

// Validator decides whether a signal can safely become an exchange order and
// computes the final order size. It never places orders and never writes to
// the database.
type Validator struct {
	connector   connectors.ExchangeConnector
	constraints *exchangeinfo.ConstraintCache
}

func New(connector connectors.ExchangeConnector, constraints *exchangeinfo.ConstraintCache) *Validator {
	return &Validator{connector: connector, constraints: constraints}
}

// ValidateEntry sizes and checks an ENTER_LONG / ENTER_SHORT signal.
func (v *Validator) ValidateEntry(ctx context.Context, bot *model.Bot, signal *model.Signal, price decimal.Decimal) (*ValidatedOrder, error) {
	if err := checkPreconditions(bot, signal); err != nil {
		return nil, err
	}
	if !signal.IsEntry() {
		return nil, fmt.Errorf("action %s is not an entry", signal.Action)
	}

	leverage := decimal.NewFromInt(1)
	if bot.AccountType == model.AccountTypeMargin {
		leverage = decimal.NewFromFloat(bot.Leverage)
	}

	size, err := sizing.CalculateOrderSize(
		decimal.NewFromFloat(bot.TradeAmount), bot.TradeAmountUnit, leverage, price)
	if err != nil {
		return nil, err
	}

	order, err := v.formatAgainstConstraints(ctx, signal.Symbol, size.Quantity, price)
	if err != nil {
		return nil, err
	}

	if bot.AccountType == model.AccountTypeSpot {
		if signal.Action == model.SignalActionEnterShort {
			return nil, fmt.Errorf("bot %d is a SPOT bot and cannot open shorts", bot.ID)
		}
		if err := v.checkSpotBuy(ctx, signal.Symbol, order); err != nil {
			return nil, err
		}
		return order, nil
	}

	if err := v.checkMarginEntry(ctx, bot, signal, order, size); err != nil {
		return nil, err
	}
	return order, nil
}

// ValidateExit sizes and checks an EXIT_LONG / EXIT_SHORT signal. The target
// quantity is the position's entry quantity, not a fresh size calculation.
func (v *Validator) ValidateExit(ctx context.Context, bot *model.Bot, signal *model.Signal, price, positionQty decimal.Decimal) (*ValidatedOrder, error) {
	if err := checkPreconditions(bot, signal); err != nil {
		return nil, err
	}
	if signal.IsEntry() {
		return nil, fmt.Errorf("action %s is not an exit", signal.Action)
	}

	order, err := v.formatAgainstConstraints(ctx, signal.Symbol, positionQty, price)
	if err != nil {
		return nil, err
	}

	if bot.AccountType == model.AccountTypeSpot {
		if signal.Action == model.SignalActionExitShort {
			return nil, fmt.Errorf("bot %d is a SPOT bot and cannot hold shorts", bot.ID)
		}
		if err := v.checkBaseBalanceForSell(ctx, signal.Symbol, order, false); err != nil {
			return nil, err
		}
		return order, nil
	}

	if err := v.checkMarginExit(ctx, signal, order); err != nil {
		return nil, err
	}
	return order, nil
}

// -----------------------------
// shared checks
// -----------------------------

func checkPreconditions(bot *model.Bot, signal *model.Signal) error {
	if !bot.Active {
		return fmt.Errorf("bot %d is not active", bot.ID)
	}
	if bot.ExchangeAccount == nil || !bot.ExchangeAccount.Active {
		return fmt.Errorf("bot %d has no active exchange account", bot.ID)
	}
	if bot.AccountType != model.AccountTypeSpot && bot.AccountType != model.AccountTypeMargin {
		return fmt.Errorf("bot %d has unknown account type %q", bot.ID, bot.AccountType)
	}
	if !bot.AllowsSymbol(signal.Symbol) {
		return fmt.Errorf("bot %d does not trade %s", bot.ID, signal.Symbol)
	}
	return nil
}

// formatAgainstConstraints applies the symbol's lot and notional rules to a
// raw quantity and rejects orders the exchange would refuse anyway.
func (v *Validator) formatAgainstConstraints(ctx context.Context, symbol string, raw, price decimal.Decimal) (*ValidatedOrder, error) {
	constraints, err := v.constraints.Get(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("loading constraints for %s: %w", symbol, err)
	}

	qty := sizing.FormatQuantity(raw, constraints)
	if qty.IsZero() {
		return nil, fmt.Errorf(
			"quantity %s on %s is below the minimum lot %s", raw, symbol, constraints.MinQty)
	}

	notional := qty.Mul(price)
	if constraints.MinNotional.IsPositive() && notional.LessThan(constraints.MinNotional) {
		return nil, fmt.Errorf(
			"order value %s on %s is below the minimum notional %s", notional, symbol, constraints.MinNotional)
	}

	return &ValidatedOrder{
		Quantity:      qty,
		Price:         price,
		NotionalValue: notional,
		Constraints:   constraints,
	}, nil
}

// checkBaseBalanceForSell verifies the base asset balance covers the sell.
// A balance within stepTolerance lot steps of the target reduces the order
// to the held amount instead of failing, to absorb rounding drift.
func (v *Validator) checkBaseBalanceForSell(ctx context.Context, symbol string, order *ValidatedOrder, margin bool) error {
	base, _ := connectors.SplitSymbol(symbol)

	balance, err := v.connector.GetBalance(ctx, base, margin)
	if err != nil {
		return fmt.Errorf("fetching %s balance: %w", base, err)
	}
	order.AvailableBalance = balance.Available

	if balance.Available.GreaterThanOrEqual(order.Quantity) {
		return nil
	}

	if !sizing.WithinStepTolerance(order.Quantity, balance.Available, order.Constraints.StepSize, stepTolerance) {
		return fmt.Errorf(
			"insufficient %s balance: need %s, have %s", base, order.Quantity, balance.Available)
	}

	reduced := sizing.FormatQuantity(balance.Available, order.Constraints)
	if reduced.IsZero() {
		return fmt.Errorf(
			"insufficient %s balance: need %s, have %s", base, order.Quantity, balance.Available)
	}

	order.Quantity = reduced
	order.NotionalValue = reduced.Mul(order.Price)
	return nil
}
