package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradeengine/src/connectors"
	"tradeengine/src/metrics"
	"tradeengine/src/model"
	"tradeengine/src/protect"
	"tradeengine/src/repository"
)

// newClientOrderID generates the client order id sent with every exchange
// order. It is stored on the Order row, so an exchange order whose ledger
// write lost a create race can still be traced back.
func newClientOrderID() string {
	return uuid.NewString()
}

func (e *TradeExecutor) executeEntry(ctx context.Context, bot *model.Bot, signal *model.Signal) *Result {
	side := signal.PositionSide()

	// Cheap pre-check. The create transaction re-checks under serializable
	// isolation; this read only avoids a pointless exchange call.
	existing, err := e.ledger.FindOpen(ctx, bot.ID, signal.Symbol, side)
	if err != nil {
		return failure(err)
	}
	if existing != nil {
		return skipped(fmt.Sprintf(
			"position already exists: %s %s position %d is open", signal.Symbol, side, existing.ID))
	}

	price, err := e.priceFor(ctx, signal)
	if err != nil {
		return failure(err)
	}

	validated, err := e.validator.ValidateEntry(ctx, bot, signal, price)
	if err != nil {
		return failure(err)
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
		return failure(fmt.Errorf("exchange rejected entry: %w", err))
	}

	base, _ := connectors.SplitSymbol(signal.Symbol)
	netQty := resp.NetExecutedQuantity(base)
	avgPrice := resp.AverageFillPrice(price)
	entryValue := netQty.Mul(avgPrice)

	leverage := 1.0
	if bot.AccountType == model.AccountTypeMargin && bot.Leverage > 1 {
		leverage = bot.Leverage
	}

	openedAt := e.now()
	position := &model.Position{
		BotID:          bot.ID,
		Symbol:         signal.Symbol,
		Side:           side,
		Status:         model.PositionStatusOpen,
		EntryPrice:     avgPrice.InexactFloat64(),
		EntryQuantity:  netQty.InexactFloat64(),
		EntryValue:     entryValue.InexactFloat64(),
		Leverage:       leverage,
		BorrowedAmount: validated.BorrowRequired.InexactFloat64(),
		BorrowedAsset:  validated.BorrowAsset,
		AccountType:    bot.AccountType,
		Source:         model.PositionSourceBot,
		OpenedAt:       openedAt,
	}
	entryOrder := &model.Order{
		ExchangeOrderID:  resp.OrderID,
		ClientOrderID:    clientOrderID,
		Symbol:           signal.Symbol,
		Type:             model.OrderTypeEntry,
		Side:             signal.OrderSide(),
		OrderKind:        model.OrderKindMarket,
		ExecutedPrice:    avgPrice.InexactFloat64(),
		ExecutedQuantity: netQty.InexactFloat64(),
		ExecutedValue:    entryValue.InexactFloat64(),
		Status:           model.OrderStatusFilled,
		FillPercent:      fillPercent(netQty, validated.Quantity),
		ExecutedAt:       &openedAt,
	}

	if err := e.ledger.CreateOpenPosition(ctx, position, entryOrder); err != nil {
		if errors.Is(err, repository.ErrOpenPositionExists) {
			// A concurrent signal won the create race after our exchange
			// order filled. The fill is real but stays off the ledger.
			logger.WithFields(map[string]interface{}{
				"bot_id":            bot.ID,
				"symbol":            signal.Symbol,
				"side":              side,
				"exchange_order_id": resp.OrderID,
				"client_order_id":   clientOrderID,
			}).Warn("Entry lost create race, exchange order is not recorded")
			return skipped("position already exists, created by a concurrent signal")
		}
		return failure(fmt.Errorf("persisting position: %w", err))
	}

	if bot.AccountType == model.AccountTypeMargin {
		e.placeProtection(ctx, bot, position, netQty, avgPrice)
	}

	e.enqueueStats(ctx, &model.StatsJob{
		BotID:       bot.ID,
		PositionID:  position.ID,
		TradesDelta: 1,
	})

	metrics.RecordTrade(signal.Symbol, "success", 0)
	metrics.OpenPositions.Inc()

	return &Result{
		Success:         true,
		PositionID:      position.ID,
		OrderID:         entryOrder.ID,
		ExchangeOrderID: resp.OrderID,
		Message: fmt.Sprintf("%s opened: %s %s at %s",
			side, netQty, signal.Symbol, avgPrice),
	}
}

// placeProtection places the configured SL/TP legs and persists whatever
// succeeded. A failed leg leaves the position open without that protection;
// it never fails the trade.
func (e *TradeExecutor) placeProtection(ctx context.Context, bot *model.Bot, position *model.Position, quantity, entryPrice decimal.Decimal) {
	stopLoss, takeProfit := protect.Levels(position.Side, entryPrice, bot.StopLossPct, bot.TakeProfitPct)
	if stopLoss == nil && takeProfit == nil {
		return
	}

	result := e.protect.PlaceForPosition(ctx, position, quantity, stopLoss, takeProfit)

	if result.StopLoss != nil {
		price := stopLoss.InexactFloat64()
		position.StopLossPrice = &price
		if result.StopLoss.Err != nil {
			position.StopLossStatus = model.ProtectiveOrderStatusFailed
			metrics.RecordProtectiveFailure(position.Symbol, "stop_loss")
		} else {
			id := result.StopLoss.OrderID
			position.StopLossOrderID = &id
			position.StopLossStatus = model.ProtectiveOrderStatusActive
		}
	}
	if result.TakeProfit != nil {
		price := takeProfit.InexactFloat64()
		position.TakeProfitPrice = &price
		if result.TakeProfit.Err != nil {
			position.TakeProfitStatus = model.ProtectiveOrderStatusFailed
			metrics.RecordProtectiveFailure(position.Symbol, "take_profit")
		} else {
			id := result.TakeProfit.OrderID
			position.TakeProfitOrderID = &id
			position.TakeProfitStatus = model.ProtectiveOrderStatusActive
		}
	}

	if err := e.ledger.UpdateProtectiveOrders(ctx, position); err != nil {
		logger.WithFields(map[string]interface{}{
			"position_id": position.ID,
		}).WithError(err).Warn("Failed to persist protective order state")
	}
}

// enqueueStats schedules an aggregate update. The trade's outcome is already
// decided; a queue failure is logged and dropped.
func (e *TradeExecutor) enqueueStats(ctx context.Context, job *model.StatsJob) {
	if err := e.stats.Enqueue(ctx, job); err != nil {
		logger.WithFields(map[string]interface{}{
			"bot_id":      job.BotID,
			"position_id": job.PositionID,
		}).WithError(err).Warn("Failed to enqueue stats job")
	}
}

func fillPercent(executed, requested decimal.Decimal) float64 {
	if !requested.IsPositive() {
		return 0
	}
	return executed.Div(requested).Mul(decimal.NewFromInt(100)).InexactFloat64()
}
