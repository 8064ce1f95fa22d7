// Package fixedpoint implements the scaled-integer share arithmetic used
// by the settlement and dividend engines. All conversions floor; rounding
// loss is accepted and never redistributed.
package fixedpoint

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/ksred/fundta-api/internal/types"
)

// SharesFor converts a scaled cash amount into a whole share quantity at
// the given NAV price: floor(amount * scaleFactor / price).
func SharesFor(amount, price, scaleFactor uint64) (uint64, error) {
	if price == 0 {
		return 0, types.ErrDivisionByZero
	}

	q := new(big.Int).SetUint64(amount)
	q.Mul(q, new(big.Int).SetUint64(scaleFactor))
	q.Quo(q, new(big.Int).SetUint64(price))

	if !q.IsUint64() {
		return 0, types.ErrArithmeticOverflow
	}
	return q.Uint64(), nil
}

// DividendShares computes the share delta for a dividend distribution:
// floor(balance * rateMagnitude * scaleFactor / price).
func DividendShares(balance, rateMagnitude, price, scaleFactor uint64) (uint64, error) {
	if price == 0 {
		return 0, types.ErrDivisionByZero
	}

	q := new(big.Int).SetUint64(balance)
	q.Mul(q, new(big.Int).SetUint64(rateMagnitude))
	q.Mul(q, new(big.Int).SetUint64(scaleFactor))
	q.Quo(q, new(big.Int).SetUint64(price))

	if !q.IsUint64() {
		return 0, types.ErrArithmeticOverflow
	}
	return q.Uint64(), nil
}

// Abs returns the unsigned magnitude of x. MinInt64 has no positive
// representation and fails rather than wrapping.
func Abs(x int64) (uint64, error) {
	if x == math.MinInt64 {
		return 0, types.ErrArithmeticOverflow
	}
	if x < 0 {
		return uint64(-x), nil
	}
	return uint64(x), nil
}

// Descale converts a scaled cash amount into its display-precision
// decimal value for event payloads.
func Descale(amount, scaleFactor uint64) decimal.Decimal {
	v := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0)
	if scaleFactor == 0 {
		return v
	}
	return v.Div(decimal.NewFromBigInt(new(big.Int).SetUint64(scaleFactor), 0))
}

// CashValue is the descaled cash equivalent of balance * rateMagnitude,
// used when recording dividend events.
func CashValue(balance, rateMagnitude, scaleFactor uint64) decimal.Decimal {
	v := new(big.Int).SetUint64(balance)
	v.Mul(v, new(big.Int).SetUint64(rateMagnitude))
	d := decimal.NewFromBigInt(v, 0)
	if scaleFactor == 0 {
		return d
	}
	return d.Div(decimal.NewFromBigInt(new(big.Int).SetUint64(scaleFactor), 0))
}
