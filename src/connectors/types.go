package connectors

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Side effect instructions for margin orders.
const (
	SideEffectNone      = "NO_SIDE_EFFECT"
	SideEffectMarginBuy = "MARGIN_BUY"
	SideEffectAutoRepay = "AUTO_REPAY"
)

// ExchangeConnector is the capability surface the execution engine needs from
// an exchange. Implementations must parse exchange payloads into the typed
// structs below; business logic never sees raw JSON.
type ExchangeConnector interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error)
	PlaceConditionalOrder(ctx context.Context, req ConditionalOrderRequest) (*ConditionalOrderResponse, error)
	// CancelOrder treats an "unknown order" response as a successful cancel,
	// the order is already gone.
	CancelOrder(ctx context.Context, symbol, orderID string, margin bool) error
	GetBalance(ctx context.Context, asset string, margin bool) (*Balance, error)
	GetMaxBorrowable(ctx context.Context, asset string) (decimal.Decimal, error)
	GetSymbolConstraints(ctx context.Context, symbol string) (*SymbolConstraints, error)
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// OrderRequest describes one market or limit order.
type OrderRequest struct {
	Symbol        string
	Side          string // BUY | SELL
	Kind          string // MARKET | LIMIT
	Quantity      decimal.Decimal
	Price         *decimal.Decimal // LIMIT only
	Margin        bool
	SideEffect    string // margin only, empty means NO_SIDE_EFFECT
	ClientOrderID string
}

// ConditionalOrderRequest describes a protective stop order. The order rests
// on the exchange and triggers at StopPrice.
type ConditionalOrderRequest struct {
	Symbol        string
	Side          string
	Type          string // STOP_LOSS | TAKE_PROFIT
	Quantity      decimal.Decimal
	StopPrice     decimal.Decimal
	Margin        bool
	SideEffect    string
	ClientOrderID string
}

// Fill is one partial execution inside an order response.
type Fill struct {
	Price           decimal.Decimal `json:"price"`
	Quantity        decimal.Decimal `json:"qty"`
	Commission      decimal.Decimal `json:"commission"`
	CommissionAsset string          `json:"commissionAsset"`
}

// OrderResponse is the parsed result of a placed order.
type OrderResponse struct {
	OrderID             string          `json:"orderId"`
	ClientOrderID       string          `json:"clientOrderId"`
	Symbol              string          `json:"symbol"`
	Status              string          `json:"status"`
	ExecutedQuantity    decimal.Decimal `json:"executedQty"`
	CummulativeQuoteQty decimal.Decimal `json:"cummulativeQuoteQty"`
	Price               decimal.Decimal `json:"price"`
	Fills               []Fill          `json:"fills"`
}

// ConditionalOrderResponse is the parsed result of a protective order.
type ConditionalOrderResponse struct {
	OrderID       string `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
}

// Balance is the free/locked amount of one asset.
type Balance struct {
	Asset     string
	Available decimal.Decimal
	Locked    decimal.Decimal
}

// SymbolConstraints are the exchange trading rules for one symbol.
type SymbolConstraints struct {
	Symbol      string
	MinQty      decimal.Decimal
	MaxQty      decimal.Decimal
	StepSize    decimal.Decimal
	MinNotional decimal.Decimal
}

// NetExecutedQuantity returns the executed quantity minus any commission that
// was charged in the given asset. Commission paid in the received asset
// shrinks what actually lands on the account.
func (r *OrderResponse) NetExecutedQuantity(asset string) decimal.Decimal {
	net := r.ExecutedQuantity
	for _, fill := range r.Fills {
		if strings.EqualFold(fill.CommissionAsset, asset) {
			net = net.Sub(fill.Commission)
		}
	}
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}

// AverageFillPrice returns the volume weighted execution price. Preference
// order: cumulative quote value over executed quantity, then the order level
// price, then the caller supplied fallback (ticker or signal price).
func (r *OrderResponse) AverageFillPrice(fallback decimal.Decimal) decimal.Decimal {
	if r.CummulativeQuoteQty.IsPositive() && r.ExecutedQuantity.IsPositive() {
		return r.CummulativeQuoteQty.Div(r.ExecutedQuantity)
	}
	if r.Price.IsPositive() {
		return r.Price
	}
	return fallback
}

// SplitSymbol splits a concatenated pair into base and quote assets using the
// common quote suffixes. "BTCUSDT" -> ("BTC", "USDT").
func SplitSymbol(symbol string) (base, quote string) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, q := range []string{"USDT", "BUSD", "USDC", "BTC", "ETH", "BNB", "EUR", "TRY"} {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return strings.TrimSuffix(s, q), q
		}
	}
	if len(s) > 3 {
		return s[:len(s)-3], s[len(s)-3:]
	}
	return s, ""
}
