package protect

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeengine/src/connectors"
	"tradeengine/src/model"
)

type fakeConnector struct {
	conditional []connectors.ConditionalOrderRequest
	canceled    []string

	failTypes  map[string]error
	cancelErrs map[string]error
	nextID     int
}

func (f *fakeConnector) PlaceOrder(context.Context, connectors.OrderRequest) (*connectors.OrderResponse, error) {
	return nil, errors.New("not used")
}

func (f *fakeConnector) PlaceConditionalOrder(_ context.Context, req connectors.ConditionalOrderRequest) (*connectors.ConditionalOrderResponse, error) {
	f.conditional = append(f.conditional, req)
	if err := f.failTypes[req.Type]; err != nil {
		return nil, err
	}
	f.nextID++
	return &connectors.ConditionalOrderResponse{OrderID: decimal.NewFromInt(int64(f.nextID)).String()}, nil
}

func (f *fakeConnector) CancelOrder(_ context.Context, _, orderID string, _ bool) error {
	f.canceled = append(f.canceled, orderID)
	return f.cancelErrs[orderID]
}

func (f *fakeConnector) GetBalance(context.Context, string, bool) (*connectors.Balance, error) {
	return nil, errors.New("not used")
}

func (f *fakeConnector) GetMaxBorrowable(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeConnector) GetSymbolConstraints(context.Context, string) (*connectors.SymbolConstraints, error) {
	return nil, errors.New("not used")
}

func (f *fakeConnector) GetPrice(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func ptrFloat(v float64) *float64 {
	return &v
}

func ptrString(v string) *string {
	return &v
}

func TestLevelsLong(t *testing.T) {
	sl, tp := Levels(model.PositionSideLong, decimal.NewFromInt(100), ptrFloat(5), ptrFloat(10))
	require.NotNil(t, sl)
	require.NotNil(t, tp)
	assert.True(t, sl.Equal(decimal.NewFromInt(95)), "got %s", sl)
	assert.True(t, tp.Equal(decimal.NewFromInt(110)), "got %s", tp)
}

func TestLevelsShort(t *testing.T) {
	sl, tp := Levels(model.PositionSideShort, decimal.NewFromInt(100), ptrFloat(5), ptrFloat(10))
	require.NotNil(t, sl)
	require.NotNil(t, tp)
	assert.True(t, sl.Equal(decimal.NewFromInt(105)), "got %s", sl)
	assert.True(t, tp.Equal(decimal.NewFromInt(90)), "got %s", tp)
}

func TestLevelsNilPercentages(t *testing.T) {
	sl, tp := Levels(model.PositionSideLong, decimal.NewFromInt(100), nil, nil)
	assert.Nil(t, sl)
	assert.Nil(t, tp)
}

func TestPlaceForPositionLongPlacesOppositeSide(t *testing.T) {
	conn := &fakeConnector{}
	manager := NewManager(conn)

	position := &model.Position{
		Symbol:      "BTCUSDT",
		Side:        model.PositionSideLong,
		AccountType: model.AccountTypeMargin,
	}

	sl := decimal.NewFromInt(95)
	tp := decimal.NewFromInt(110)
	result := manager.PlaceForPosition(context.Background(), position, decimal.NewFromInt(2), &sl, &tp)

	require.NotNil(t, result.StopLoss)
	require.NotNil(t, result.TakeProfit)
	assert.NoError(t, result.StopLoss.Err)
	assert.NoError(t, result.TakeProfit.Err)

	require.Len(t, conn.conditional, 2)
	for _, req := range conn.conditional {
		assert.Equal(t, model.OrderSideSell, req.Side)
		assert.True(t, req.Margin)
		assert.Equal(t, connectors.SideEffectAutoRepay, req.SideEffect)
		assert.NotEmpty(t, req.ClientOrderID)
	}
	assert.Equal(t, conditionalTypeStopLoss, conn.conditional[0].Type)
	assert.Equal(t, conditionalTypeTakeProfit, conn.conditional[1].Type)
}

func TestPlaceForPositionShortBuysBack(t *testing.T) {
	conn := &fakeConnector{}
	manager := NewManager(conn)

	position := &model.Position{
		Symbol:      "BTCUSDT",
		Side:        model.PositionSideShort,
		AccountType: model.AccountTypeMargin,
	}

	sl := decimal.NewFromInt(105)
	result := manager.PlaceForPosition(context.Background(), position, decimal.NewFromInt(2), &sl, nil)

	require.NotNil(t, result.StopLoss)
	assert.Nil(t, result.TakeProfit)
	require.Len(t, conn.conditional, 1)
	assert.Equal(t, model.OrderSideBuy, conn.conditional[0].Side)
}

func TestPlaceForPositionLegsFailIndependently(t *testing.T) {
	conn := &fakeConnector{failTypes: map[string]error{
		conditionalTypeStopLoss: errors.New("rejected"),
	}}
	manager := NewManager(conn)

	position := &model.Position{
		Symbol:      "BTCUSDT",
		Side:        model.PositionSideLong,
		AccountType: model.AccountTypeMargin,
	}

	sl := decimal.NewFromInt(95)
	tp := decimal.NewFromInt(110)
	result := manager.PlaceForPosition(context.Background(), position, decimal.NewFromInt(2), &sl, &tp)

	require.NotNil(t, result.StopLoss)
	require.NotNil(t, result.TakeProfit)
	assert.Error(t, result.StopLoss.Err)
	assert.NoError(t, result.TakeProfit.Err)
	assert.NotEmpty(t, result.TakeProfit.OrderID)
}

func TestCancelForPositionCancelsAttachedLegs(t *testing.T) {
	conn := &fakeConnector{}
	manager := NewManager(conn)

	position := &model.Position{
		Symbol:            "BTCUSDT",
		Side:              model.PositionSideLong,
		AccountType:       model.AccountTypeMargin,
		StopLossOrderID:   ptrString("11"),
		TakeProfitOrderID: ptrString("12"),
	}

	result := manager.CancelForPosition(context.Background(), position)

	require.NotNil(t, result.StopLoss)
	require.NotNil(t, result.TakeProfit)
	assert.NoError(t, result.StopLoss.Err)
	assert.NoError(t, result.TakeProfit.Err)
	assert.Equal(t, []string{"11", "12"}, conn.canceled)
}

func TestCancelForPositionSkipsMissingLegs(t *testing.T) {
	conn := &fakeConnector{}
	manager := NewManager(conn)

	position := &model.Position{Symbol: "BTCUSDT", Side: model.PositionSideLong}
	result := manager.CancelForPosition(context.Background(), position)

	assert.Nil(t, result.StopLoss)
	assert.Nil(t, result.TakeProfit)
	assert.Empty(t, conn.canceled)
}
