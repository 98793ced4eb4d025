// REST CLIENT FOR BINANCE SPOT + CROSS MARGIN
// RESTY ONLY + INTERNAL RETRY
package connectors

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	// Default retry configuration
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

// Exchange error codes that change control flow.
const (
	// Cancel of an order the exchange no longer knows. Treated as success.
	codeUnknownOrder = -2011
)

// apiError is the standard error envelope returned on non-2xx responses.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("exchange error %d: %s", e.Code, e.Msg)
}

// -----------------------------
// WIRE PAYLOADS
// -----------------------------

type rawOrderResponse struct {
	OrderID             json.Number `json:"orderId"`
	ClientOrderID       string      `json:"clientOrderId"`
	Symbol              string      `json:"symbol"`
	Status              string      `json:"status"`
	ExecutedQty         string      `json:"executedQty"`
	CummulativeQuoteQty string      `json:"cummulativeQuoteQty"`
	Price               string      `json:"price"`
	Fills               []struct {
		Price           string `json:"price"`
		Qty             string `json:"qty"`
		Commission      string `json:"commission"`
		CommissionAsset string `json:"commissionAsset"`
	} `json:"fills"`
}

type rawAccountResponse struct {
	Balances []rawBalance `json:"balances"`
}

type rawMarginAccountResponse struct {
	UserAssets []rawMarginAsset `json:"userAssets"`
}

type rawBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type rawMarginAsset struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type rawMaxBorrowableResponse struct {
	Amount string `json:"amount"`
}

type rawTickerPriceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type rawExchangeInfoResponse struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType  string `json:"filterType"`
			MinQty      string `json:"minQty"`
			MaxQty      string `json:"maxQty"`
			StepSize    string `json:"stepSize"`
			MinNotional string `json:"minNotional"`
		} `json:"filters"`
	} `json:"symbols"`
}

// -----------------------------
// AUTHENTICATED CLIENT
// -----------------------------

// BinanceConnector talks to the Binance spot/cross-margin REST API.
type BinanceConnector struct {
	apiKey    string
	apiSecret string
	baseURL   string
	http      *resty.Client
	now       func() time.Time
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

func NewBinanceConnector(apiKey, apiSecret, baseURL string) *BinanceConnector {
	retryCount := defaultRetryAttempts - 1

	if baseURL == "" {
		baseURL = "https://testnet.binance.vision"
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(retryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &BinanceConnector{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		http:      httpClient,
		now:       time.Now,
	}
}

func signQuery(query, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// signedCall issues an authenticated request. The timestamp and signature are
// appended to the query string as the API requires.
func (c *BinanceConnector) signedCall(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	params.Set("recvWindow", "5000")

	query := params.Encode()
	query += "&signature=" + signQuery(query, c.apiSecret)

	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetQueryString(query)

	var resp *resty.Response
	var err error

	switch method {
	case resty.MethodPost:
		resp, err = req.Post(path)
	case resty.MethodDelete:
		resp, err = req.Delete(path)
	default:
		resp, err = req.Get(path)
	}

	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}

	if resp.IsError() {
		return nil, parseAPIError(resp.Body(), resp.StatusCode())
	}

	return resp.Body(), nil
}

func (c *BinanceConnector) publicCall(ctx context.Context, path string, params url.Values) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("GET %s failed: %w", path, err)
	}
	if resp.IsError() {
		return nil, parseAPIError(resp.Body(), resp.StatusCode())
	}
	return resp.Body(), nil
}

func parseAPIError(body []byte, status int) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
		return &apiErr
	}
	return fmt.Errorf("exchange returned status %d: %s", status, string(body))
}

// -----------------------------
// ORDERS
// -----------------------------

func (c *BinanceConnector) PlaceOrder(ctx context.Context, orderReq OrderRequest) (*OrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", orderReq.Symbol)
	params.Set("side", orderReq.Side)
	params.Set("type", orderReq.Kind)
	params.Set("quantity", orderReq.Quantity.String())
	params.Set("newOrderRespType", "FULL")

	if orderReq.ClientOrderID != "" {
		params.Set("newClientOrderId", orderReq.ClientOrderID)
	}

	if orderReq.Kind == "LIMIT" && orderReq.Price != nil {
		params.Set("price", orderReq.Price.String())
		params.Set("timeInForce", "GTC")
	}

	path := "/api/v3/order"
	if orderReq.Margin {
		path = "/sapi/v1/margin/order"
		sideEffect := orderReq.SideEffect
		if sideEffect == "" {
			sideEffect = SideEffectNone
		}
		params.Set("sideEffectType", sideEffect)
	}

	logger.WithFields(map[string]interface{}{
		"symbol":          orderReq.Symbol,
		"side":            orderReq.Side,
		"type":            orderReq.Kind,
		"qty":             orderReq.Quantity.String(),
		"margin":          orderReq.Margin,
		"client_order_id": orderReq.ClientOrderID,
	}).Info("placing exchange order")

	body, err := c.signedCall(ctx, resty.MethodPost, path, params)
	if err != nil {
		return nil, err
	}

	var raw rawOrderResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	return raw.toOrderResponse()
}

func (c *BinanceConnector) PlaceConditionalOrder(ctx context.Context, orderReq ConditionalOrderRequest) (*ConditionalOrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", orderReq.Symbol)
	params.Set("side", orderReq.Side)
	params.Set("type", orderReq.Type)
	params.Set("quantity", orderReq.Quantity.String())
	params.Set("stopPrice", orderReq.StopPrice.String())

	if orderReq.ClientOrderID != "" {
		params.Set("newClientOrderId", orderReq.ClientOrderID)
	}

	path := "/api/v3/order"
	if orderReq.Margin {
		path = "/sapi/v1/margin/order"
		sideEffect := orderReq.SideEffect
		if sideEffect == "" {
			sideEffect = SideEffectNone
		}
		params.Set("sideEffectType", sideEffect)
	}

	logger.WithFields(map[string]interface{}{
		"symbol":     orderReq.Symbol,
		"side":       orderReq.Side,
		"type":       orderReq.Type,
		"stop_price": orderReq.StopPrice.String(),
		"margin":     orderReq.Margin,
	}).Info("placing conditional order")

	body, err := c.signedCall(ctx, resty.MethodPost, path, params)
	if err != nil {
		return nil, err
	}

	var raw rawOrderResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode conditional order response: %w", err)
	}

	return &ConditionalOrderResponse{
		OrderID:       raw.OrderID.String(),
		ClientOrderID: raw.ClientOrderID,
		Symbol:        raw.Symbol,
		Status:        raw.Status,
	}, nil
}

func (c *BinanceConnector) CancelOrder(ctx context.Context, symbol, orderID string, margin bool) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	path := "/api/v3/order"
	if margin {
		path = "/sapi/v1/margin/order"
	}

	_, err := c.signedCall(ctx, resty.MethodDelete, path, params)
	if err != nil {
		var apiErr *apiError
		if asAPIError(err, &apiErr) && apiErr.Code == codeUnknownOrder {
			logger.WithFields(map[string]interface{}{
				"symbol":   symbol,
				"order_id": orderID,
			}).Info("cancel target unknown to exchange, treating as canceled")
			return nil
		}
		return err
	}

	return nil
}

func asAPIError(err error, target **apiError) bool {
	e, ok := err.(*apiError)
	if ok {
		*target = e
	}
	return ok
}

// -----------------------------
// ACCOUNT DATA
// -----------------------------

func (c *BinanceConnector) GetBalance(ctx context.Context, asset string, margin bool) (*Balance, error) {
	if margin {
		body, err := c.signedCall(ctx, resty.MethodGet, "/sapi/v1/margin/account", nil)
		if err != nil {
			return nil, err
		}

		var raw rawMarginAccountResponse
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode margin account response: %w", err)
		}

		for _, a := range raw.UserAssets {
			if a.Asset == asset {
				return parseBalance(a.Asset, a.Free, a.Locked)
			}
		}
		return &Balance{Asset: asset}, nil
	}

	body, err := c.signedCall(ctx, resty.MethodGet, "/api/v3/account", nil)
	if err != nil {
		return nil, err
	}

	var raw rawAccountResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode account response: %w", err)
	}

	for _, b := range raw.Balances {
		if b.Asset == asset {
			return parseBalance(b.Asset, b.Free, b.Locked)
		}
	}
	return &Balance{Asset: asset}, nil
}

func (c *BinanceConnector) GetMaxBorrowable(ctx context.Context, asset string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("asset", asset)

	body, err := c.signedCall(ctx, resty.MethodGet, "/sapi/v1/margin/maxBorrowable", params)
	if err != nil {
		return decimal.Zero, err
	}

	var raw rawMaxBorrowableResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode maxBorrowable response: %w", err)
	}

	amount, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid maxBorrowable amount %q: %w", raw.Amount, err)
	}

	return amount, nil
}

func (c *BinanceConnector) GetSymbolConstraints(ctx context.Context, symbol string) (*SymbolConstraints, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.publicCall(ctx, "/api/v3/exchangeInfo", params)
	if err != nil {
		return nil, err
	}

	var raw rawExchangeInfoResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode exchangeInfo response: %w", err)
	}
	if len(raw.Symbols) == 0 {
		return nil, fmt.Errorf("symbol %s not found on exchange", symbol)
	}

	constraints := &SymbolConstraints{Symbol: raw.Symbols[0].Symbol}
	for _, filter := range raw.Symbols[0].Filters {
		switch filter.FilterType {
		case "LOT_SIZE":
			constraints.MinQty = mustDecimal(filter.MinQty)
			constraints.MaxQty = mustDecimal(filter.MaxQty)
			constraints.StepSize = mustDecimal(filter.StepSize)
		case "NOTIONAL", "MIN_NOTIONAL":
			constraints.MinNotional = mustDecimal(filter.MinNotional)
		}
	}

	return constraints, nil
}

func (c *BinanceConnector) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.publicCall(ctx, "/api/v3/ticker/price", params)
	if err != nil {
		return decimal.Zero, err
	}

	var raw rawTickerPriceResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode ticker response: %w", err)
	}

	price, err := decimal.NewFromString(raw.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid ticker price %q: %w", raw.Price, err)
	}

	return price, nil
}

// -----------------------------
// PARSING HELPERS
// -----------------------------

func (raw *rawOrderResponse) toOrderResponse() (*OrderResponse, error) {
	out := &OrderResponse{
		OrderID:       raw.OrderID.String(),
		ClientOrderID: raw.ClientOrderID,
		Symbol:        raw.Symbol,
		Status:        raw.Status,
	}

	var err error
	if out.ExecutedQuantity, err = decimalOrZero(raw.ExecutedQty); err != nil {
		return nil, fmt.Errorf("invalid executedQty %q: %w", raw.ExecutedQty, err)
	}
	if out.CummulativeQuoteQty, err = decimalOrZero(raw.CummulativeQuoteQty); err != nil {
		return nil, fmt.Errorf("invalid cummulativeQuoteQty %q: %w", raw.CummulativeQuoteQty, err)
	}
	if out.Price, err = decimalOrZero(raw.Price); err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", raw.Price, err)
	}

	for _, fill := range raw.Fills {
		parsed := Fill{CommissionAsset: fill.CommissionAsset}
		if parsed.Price, err = decimalOrZero(fill.Price); err != nil {
			return nil, fmt.Errorf("invalid fill price %q: %w", fill.Price, err)
		}
		if parsed.Quantity, err = decimalOrZero(fill.Qty); err != nil {
			return nil, fmt.Errorf("invalid fill qty %q: %w", fill.Qty, err)
		}
		if parsed.Commission, err = decimalOrZero(fill.Commission); err != nil {
			return nil, fmt.Errorf("invalid fill commission %q: %w", fill.Commission, err)
		}
		out.Fills = append(out.Fills, parsed)
	}

	return out, nil
}

func parseBalance(asset, free, locked string) (*Balance, error) {
	available, err := decimalOrZero(free)
	if err != nil {
		return nil, fmt.Errorf("invalid free balance %q: %w", free, err)
	}
	lockedAmount, err := decimalOrZero(locked)
	if err != nil {
		return nil, fmt.Errorf("invalid locked balance %q: %w", locked, err)
	}

	return &Balance{
		Asset:     asset,
		Available: available,
		Locked:    lockedAmount,
	}, nil
}

func decimalOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
