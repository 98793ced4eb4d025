package executor

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradeengine/src/connectors"
	"tradeengine/src/metrics"
	"tradeengine/src/model"
)

func (e *TradeExecutor) executeExit(ctx context.Context, bot *model.Bot, signal *model.Signal) *Result {
	side := signal.PositionSide()

	position, err := e.ledger.FindOpen(ctx, bot.ID, signal.Symbol, side)
	if err != nil {
		return failure(err)
	}
	if position == nil {
		return skipped(fmt.Sprintf(
			"no open %s position for bot %d on %s", side, bot.ID, signal.Symbol))
	}

	price, err := e.priceFor(ctx, signal)
	if err != nil {
		return failure(err)
	}

	validated, err := e.validator.ValidateExit(
		ctx, bot, signal, price, decimal.NewFromFloat(position.EntryQuantity))
	if err != nil {
		return failure(err)
	}

	// Cancel protective orders before the closing order goes out, so a
	// stale SL/TP cannot fire against a position that is already flat.
	cancel := e.protect.CancelForPosition(ctx, position)
	if cancel.StopLoss != nil && cancel.StopLoss.Err != nil {
		metrics.RecordProtectiveFailure(position.Symbol, "stop_loss")
	}
	if cancel.TakeProfit != nil && cancel.TakeProfit.Err != nil {
		metrics.RecordProtectiveFailure(position.Symbol, "take_profit")
	}

	clientOrderID := e.newClientOrderID()
	resp, err := e.connector.PlaceOrder(ctx, connectors.OrderRequest{
		Symbol:        signal.Symbol,
		Side:          signal.OrderSide(),
		Kind:          model.OrderKindMarket,
		Quantity:      validated.Quantity,
		Margin:        bot.AccountType == model.AccountTypeMargin,
		SideEffect:    validated.SideEffect,
		ClientOrderID: clientOrderID,
	})
	if err != nil {
		// Protective orders may already be gone at this point.
		logger.WithFields(map[string]interface{}{
			"position_id": position.ID,
			"symbol":      signal.Symbol,
		}).WithError(err).Warn("Exit order rejected, position may be unprotected")
		return failure(fmt.Errorf("exchange rejected exit: %w", err))
	}

	base, _ := connectors.SplitSymbol(signal.Symbol)
	netQty := resp.NetExecutedQuantity(base)
	avgPrice := resp.AverageFillPrice(price)
	exitValue := netQty.Mul(avgPrice)

	entryValue := decimal.NewFromFloat(position.EntryValue)
	var pnl decimal.Decimal
	if position.Side == model.PositionSideLong {
		pnl = exitValue.Sub(entryValue)
	} else {
		pnl = entryValue.Sub(exitValue)
	}

	var pnlPercent decimal.Decimal
	if entryValue.IsPositive() {
		pnlPercent = pnl.Div(entryValue).Mul(decimal.NewFromInt(100))
	}

	exitPriceF := avgPrice.InexactFloat64()
	exitValueF := exitValue.InexactFloat64()
	pnlF := pnl.InexactFloat64()
	pnlPercentF := pnlPercent.InexactFloat64()

	position.ExitPrice = &exitPriceF
	position.ExitValue = &exitValueF
	position.Pnl = &pnlF
	position.PnlPercent = &pnlPercentF

	executedAt := e.now()
	exitOrder := &model.Order{
		ExchangeOrderID:  resp.OrderID,
		ClientOrderID:    clientOrderID,
		Symbol:           signal.Symbol,
		Type:             model.OrderTypeExit,
		Side:             signal.OrderSide(),
		OrderKind:        model.OrderKindMarket,
		ExecutedPrice:    exitPriceF,
		ExecutedQuantity: netQty.InexactFloat64(),
		ExecutedValue:    exitValueF,
		Status:           model.OrderStatusFilled,
		FillPercent:      fillPercent(netQty, validated.Quantity),
		Pnl:              &pnlF,
		ExecutedAt:       &executedAt,
	}

	if err := e.ledger.CloseWithOrder(ctx, position, exitOrder, executedAt); err != nil {
		return failure(fmt.Errorf("persisting exit: %w", err))
	}

	wins := int64(0)
	if pnl.IsPositive() {
		wins = 1
	}
	e.enqueueStats(ctx, &model.StatsJob{
		BotID:      bot.ID,
		PositionID: position.ID,
		WinsDelta:  wins,
		PnlDelta:   pnlF,
	})

	metrics.RecordTrade(signal.Symbol, "success", pnlF)
	metrics.OpenPositions.Dec()

	return &Result{
		Success:         true,
		PositionID:      position.ID,
		OrderID:         exitOrder.ID,
		ExchangeOrderID: resp.OrderID,
		Message: fmt.Sprintf("%s closed: %s %s at %s, pnl %s (%s%%)",
			side, netQty, signal.Symbol, avgPrice,
			pnl.StringFixed(8), pnlPercent.StringFixed(2)),
	}
}
