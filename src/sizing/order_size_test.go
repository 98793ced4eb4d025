package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeengine/src/model"
)

func TestCalculateOrderSizeQuoteCapital(t *testing.T) {
	capital := decimal.RequireFromString("100")
	price := decimal.RequireFromString("50000")
	leverage := decimal.RequireFromString("3")

	size, err := CalculateOrderSize(capital, model.TradeAmountUnitQuote, leverage, price)
	require.NoError(t, err)

	// quantity * price == capital * leverage
	assert.True(t, size.Quantity.Mul(price).Equal(capital.Mul(leverage)),
		"quantity %s price %s", size.Quantity, price)
	assert.True(t, size.NotionalValue.Equal(decimal.RequireFromString("300")))
	assert.True(t, size.BorrowRequired.Equal(decimal.RequireFromString("200")))
}

func TestCalculateOrderSizeBaseCapital(t *testing.T) {
	capital := decimal.RequireFromString("0.002")
	price := decimal.RequireFromString("50000")

	size, err := CalculateOrderSize(capital, model.TradeAmountUnitBase, decimal.RequireFromString("2"), price)
	require.NoError(t, err)

	assert.True(t, size.Quantity.Equal(decimal.RequireFromString("0.004")))
	assert.True(t, size.NotionalValue.Equal(decimal.RequireFromString("200")))
	assert.True(t, size.BorrowRequired.Equal(decimal.RequireFromString("0.002")))
}

func TestCalculateOrderSizeLeverageOneNeverBorrows(t *testing.T) {
	size, err := CalculateOrderSize(
		decimal.RequireFromString("100"),
		model.TradeAmountUnitQuote,
		decimal.RequireFromString("1"),
		decimal.RequireFromString("100"),
	)
	require.NoError(t, err)
	assert.True(t, size.BorrowRequired.IsZero())
}

func TestCalculateOrderSizeRejectsBadInputs(t *testing.T) {
	one := decimal.NewFromInt(1)

	_, err := CalculateOrderSize(decimal.Zero, model.TradeAmountUnitQuote, one, one)
	assert.Error(t, err)

	_, err = CalculateOrderSize(one, model.TradeAmountUnitQuote, one, decimal.Zero)
	assert.Error(t, err)

	_, err = CalculateOrderSize(one, "PERCENT", one, one)
	assert.Error(t, err)
}

func TestCheckBorrowLimit(t *testing.T) {
	maxBorrowable := decimal.RequireFromString("100")

	// 60 required against 50% of 100 fails.
	err := CheckBorrowLimit(decimal.RequireFromString("60"), maxBorrowable, 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds limit")

	// 40 required against 50% of 100 passes.
	assert.NoError(t, CheckBorrowLimit(decimal.RequireFromString("40"), maxBorrowable, 50))

	// Zero borrow always passes, regardless of capacity.
	assert.NoError(t, CheckBorrowLimit(decimal.Zero, decimal.Zero, 0))

	// Out of range percent falls back to the full capacity.
	assert.NoError(t, CheckBorrowLimit(decimal.RequireFromString("100"), maxBorrowable, 0))
	assert.NoError(t, CheckBorrowLimit(decimal.RequireFromString("100"), maxBorrowable, 150))
}
