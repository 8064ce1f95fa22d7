package fixedpoint_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/fundta-api/internal/fixedpoint"
	"github.com/ksred/fundta-api/internal/types"
)

func TestSharesFor(t *testing.T) {
	tests := []struct {
		name        string
		amount      uint64
		price       uint64
		scaleFactor uint64
		want        uint64
	}{
		{name: "exact division", amount: 500, price: 100, scaleFactor: 1, want: 5},
		{name: "floors remainder", amount: 10, price: 3, scaleFactor: 1, want: 3},
		{name: "scale factor applied", amount: 500, price: 10_000, scaleFactor: 10_000, want: 500},
		{name: "zero amount", amount: 0, price: 100, scaleFactor: 1, want: 0},
		{name: "sub share amount floors to zero", amount: 99, price: 100, scaleFactor: 1, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fixedpoint.SharesFor(tt.amount, tt.price, tt.scaleFactor)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSharesForZeroPrice(t *testing.T) {
	_, err := fixedpoint.SharesFor(100, 0, 1)
	assert.ErrorIs(t, err, types.ErrDivisionByZero)
}

func TestSharesForOverflow(t *testing.T) {
	_, err := fixedpoint.SharesFor(math.MaxUint64, 1, 2)
	assert.ErrorIs(t, err, types.ErrArithmeticOverflow)
}

func TestDividendShares(t *testing.T) {
	// balance 1000, rate 50, price 10: dividend amount 50000, 5000 shares
	got, err := fixedpoint.DividendShares(1000, 50, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), got)

	// balance 100, rate 200, price 1: naive 20000 shares before clamping
	got, err = fixedpoint.DividendShares(100, 200, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(20000), got)
}

func TestDividendSharesZeroPrice(t *testing.T) {
	_, err := fixedpoint.DividendShares(1000, 50, 0, 1)
	assert.ErrorIs(t, err, types.ErrDivisionByZero)
}

func TestAbs(t *testing.T) {
	got, err := fixedpoint.Abs(5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got)

	got, err = fixedpoint.Abs(-5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got)

	got, err = fixedpoint.Abs(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)
}

func TestAbsMinInt64(t *testing.T) {
	_, err := fixedpoint.Abs(math.MinInt64)
	assert.ErrorIs(t, err, types.ErrArithmeticOverflow)
}

func TestDescale(t *testing.T) {
	assert.Equal(t, "5", fixedpoint.Descale(50_000, 10_000).String())
	assert.Equal(t, "0.5", fixedpoint.Descale(5_000, 10_000).String())
	assert.Equal(t, "50000", fixedpoint.Descale(50_000, 1).String())
}

func TestCashValue(t *testing.T) {
	assert.Equal(t, "50000", fixedpoint.CashValue(1000, 50, 1).String())
	assert.Equal(t, "5", fixedpoint.CashValue(1000, 50, 10_000).String())
}
