package protect

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradeengine/src/connectors"
	"tradeengine/src/model"
)

const (
	conditionalTypeStopLoss   = "STOP_LOSS"
	conditionalTypeTakeProfit = "TAKE_PROFIT"
)

// Leg is the outcome of one protective order. A leg either has an exchange
// order id or an error, never both.
type Leg struct {
	OrderID string
	Err     error
}

// Result carries both legs independently. One leg failing says nothing about
// the other; callers must not collapse this into a single error.
type Result struct {
	StopLoss   *Leg
	TakeProfit *Leg
}

// Manager places and cancels the stop-loss/take-profit orders tied to a
// position.
type Manager struct {
	connector connectors.ExchangeConnector
}

func NewManager(connector connectors.ExchangeConnector) *Manager {
	return &Manager{connector: connector}
}

// Levels derives the protective trigger prices from the entry price and the
// bot's configured percentages. A nil percentage yields a nil level.
func Levels(side string, entryPrice decimal.Decimal, slPct, tpPct *float64) (stopLoss, takeProfit *decimal.Decimal) {
	hundred := decimal.NewFromInt(100)

	if slPct != nil {
		offset := entryPrice.Mul(decimal.NewFromFloat(*slPct)).Div(hundred)
		var price decimal.Decimal
		if side == model.PositionSideLong {
			price = entryPrice.Sub(offset)
		} else {
			price = entryPrice.Add(offset)
		}
		stopLoss = &price
	}

	if tpPct != nil {
		offset := entryPrice.Mul(decimal.NewFromFloat(*tpPct)).Div(hundred)
		var price decimal.Decimal
		if side == model.PositionSideLong {
			price = entryPrice.Add(offset)
		} else {
			price = entryPrice.Sub(offset)
		}
		takeProfit = &price
	}

	return stopLoss, takeProfit
}

// PlaceForPosition places one conditional order per non-nil level, on the
// side opposite to the position. Margin orders carry auto repay so a trigger
// also settles the borrow.
func (m *Manager) PlaceForPosition(ctx context.Context, position *model.Position, quantity decimal.Decimal, stopLoss, takeProfit *decimal.Decimal) *Result {
	side := model.OrderSideSell
	if position.Side == model.PositionSideShort {
		side = model.OrderSideBuy
	}

	margin := position.AccountType == model.AccountTypeMargin
	sideEffect := ""
	if margin {
		sideEffect = connectors.SideEffectAutoRepay
	}

	result := &Result{}
	if stopLoss != nil {
		result.StopLoss = m.placeLeg(ctx, connectors.ConditionalOrderRequest{
			Symbol:        position.Symbol,
			Side:          side,
			Type:          conditionalTypeStopLoss,
			Quantity:      quantity,
			StopPrice:     *stopLoss,
			Margin:        margin,
			SideEffect:    sideEffect,
			ClientOrderID: uuid.NewString(),
		})
	}
	if takeProfit != nil {
		result.TakeProfit = m.placeLeg(ctx, connectors.ConditionalOrderRequest{
			Symbol:        position.Symbol,
			Side:          side,
			Type:          conditionalTypeTakeProfit,
			Quantity:      quantity,
			StopPrice:     *takeProfit,
			Margin:        margin,
			SideEffect:    sideEffect,
			ClientOrderID: uuid.NewString(),
		})
	}

	return result
}

func (m *Manager) placeLeg(ctx context.Context, req connectors.ConditionalOrderRequest) *Leg {
	resp, err := m.connector.PlaceConditionalOrder(ctx, req)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"symbol": req.Symbol,
			"type":   req.Type,
			"stop":   req.StopPrice.String(),
		}).WithError(err).Warn("Protective order placement failed")
		return &Leg{Err: err}
	}

	logger.WithFields(map[string]interface{}{
		"symbol":   req.Symbol,
		"type":     req.Type,
		"order_id": resp.OrderID,
	}).Info("Protective order placed")
	return &Leg{OrderID: resp.OrderID}
}

// CancelForPosition cancels whichever protective orders the position still
// references. The connector treats unknown orders as already canceled, so a
// triggered or expired leg does not surface as an error here.
func (m *Manager) CancelForPosition(ctx context.Context, position *model.Position) *Result {
	margin := position.AccountType == model.AccountTypeMargin

	result := &Result{}
	if position.StopLossOrderID != nil {
		result.StopLoss = m.cancelLeg(ctx, position.Symbol, *position.StopLossOrderID, margin)
	}
	if position.TakeProfitOrderID != nil {
		result.TakeProfit = m.cancelLeg(ctx, position.Symbol, *position.TakeProfitOrderID, margin)
	}
	return result
}

func (m *Manager) cancelLeg(ctx context.Context, symbol, orderID string, margin bool) *Leg {
	if err := m.connector.CancelOrder(ctx, symbol, orderID, margin); err != nil {
		logger.WithFields(map[string]interface{}{
			"symbol":   symbol,
			"order_id": orderID,
		}).WithError(err).Warn("Protective order cancel failed")
		return &Leg{Err: err}
	}
	return &Leg{OrderID: orderID}
}
