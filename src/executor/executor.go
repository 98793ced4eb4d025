package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradeengine/src/connectors"
	"tradeengine/src/metrics"
	"tradeengine/src/model"
	"tradeengine/src/protect"
	"tradeengine/src/validator"
)

// Result is the structured outcome of one signal execution. Skipped is
// neither success nor failure: the intended state already held, so nothing
// was done.
type Result struct {
	Success    bool   `json:"success"`
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`

	PositionID      uint   `json:"position_id,omitempty"`
	OrderID         uint   `json:"order_id,omitempty"`
	ExchangeOrderID string `json:"exchange_order_id,omitempty"`

	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	ExecutionTimeMs int64 `json:"execution_time_ms"`
}

// positionLedger is the slice of the position repository the executor needs.
type positionLedger interface {
	FindOpen(ctx context.Context, botID uint, symbol, side string) (*model.Position, error)
	CreateOpenPosition(ctx context.Context, position *model.Position, order *model.Order) error
	CloseWithOrder(ctx context.Context, position *model.Position, order *model.Order, closedAt time.Time) error
	UpdateProtectiveOrders(ctx context.Context, position *model.Position) error
}

// statsQueue enqueues aggregate updates; failures are never fatal here.
type statsQueue interface {
	Enqueue(ctx context.Context, job *model.StatsJob) error
}

// signalValidator sizes and checks signals before any exchange call.
type signalValidator interface {
	ValidateEntry(ctx context.Context, bot *model.Bot, signal *model.Signal, price decimal.Decimal) (*validator.ValidatedOrder, error)
	ValidateExit(ctx context.Context, bot *model.Bot, signal *model.Signal, price, positionQty decimal.Decimal) (*validator.ValidatedOrder, error)
}

// protector manages the stop-loss/take-profit legs of a position.
type protector interface {
	PlaceForPosition(ctx context.Context, position *model.Position, quantity decimal.Decimal, stopLoss, takeProfit *decimal.Decimal) *protect.Result
	CancelForPosition(ctx context.Context, position *model.Position) *protect.Result
}

// PriceSource is a non-blocking last-price lookup, typically the websocket
// book-ticker cache.
type PriceSource interface {
	LastPrice(symbol string) (decimal.Decimal, bool)
}

// TradeExecutor turns validated signals into exchange orders and ledger
// rows. One executor instance serves both SPOT and MARGIN bots; the account
// type steers side effects and protective orders, not the control flow.
type TradeExecutor struct {
	connector connectors.ExchangeConnector
	validator signalValidator
	protect   protector
	ledger    positionLedger
	stats     statsQueue
	prices    PriceSource

	newClientOrderID func() string
	now              func() time.Time
}

// New wires a TradeExecutor from its collaborators. prices may be nil; the
// executor then always uses the REST ticker.
func New(
	connector connectors.ExchangeConnector,
	val signalValidator,
	prot protector,
	ledger positionLedger,
	stats statsQueue,
	prices PriceSource,
) *TradeExecutor {
	return &TradeExecutor{
		connector:        connector,
		validator:        val,
		protect:          prot,
		ledger:           ledger,
		stats:            stats,
		prices:           prices,
		newClientOrderID: newClientOrderID,
		now:              time.Now,
	}
}

// Execute runs one signal end to end and reports a structured result. It
// never panics across this boundary and never returns a Go error; every
// failure mode lands in the Result.
func (e *TradeExecutor) Execute(ctx context.Context, bot *model.Bot, signal *model.Signal) *Result {
	start := e.now()

	log := logger.WithFields(map[string]interface{}{
		"bot_id": bot.ID,
		"action": signal.Action,
		"symbol": signal.Symbol,
	})
	log.Info("Executing signal")

	var result *Result
	if signal.IsEntry() {
		result = e.executeEntry(ctx, bot, signal)
	} else {
		result = e.executeExit(ctx, bot, signal)
	}

	result.ExecutionTimeMs = e.now().Sub(start).Milliseconds()
	metrics.RecordExecution(bot.AccountType, signal.Action, float64(result.ExecutionTimeMs))

	switch {
	case result.Skipped:
		metrics.TradesTotal.WithLabelValues(signal.Symbol, "skipped").Inc()
		log.WithField("reason", result.SkipReason).Info("Signal skipped")
	case result.Success:
		log.WithFields(map[string]interface{}{
			"position_id": result.PositionID,
			"elapsed_ms":  result.ExecutionTimeMs,
		}).Info("Signal executed")
	default:
		metrics.TradesTotal.WithLabelValues(signal.Symbol, "failed").Inc()
		log.WithField("error", result.Error).Warn("Signal execution failed")
	}

	return result
}

// priceFor resolves the execution price: websocket cache first, then the
// REST ticker, then the signal's own price hint as a last resort.
func (e *TradeExecutor) priceFor(ctx context.Context, signal *model.Signal) (decimal.Decimal, error) {
	if e.prices != nil {
		if price, ok := e.prices.LastPrice(signal.Symbol); ok && price.IsPositive() {
			return price, nil
		}
	}

	price, err := e.connector.GetPrice(ctx, signal.Symbol)
	if err == nil && price.IsPositive() {
		return price, nil
	}

	if signal.Price != nil && *signal.Price > 0 {
		logger.WithFields(map[string]interface{}{
			"symbol": signal.Symbol,
			"price":  *signal.Price,
		}).Warn("Falling back to signal price hint")
		return decimal.NewFromFloat(*signal.Price), nil
	}

	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching price for %s: %w", signal.Symbol, err)
	}
	return decimal.Zero, fmt.Errorf("no usable price for %s", signal.Symbol)
}

func failure(err error) *Result {
	return &Result{Error: err.Error()}
}

func skipped(reason string) *Result {
	return &Result{Skipped: true, SkipReason: reason}
}
