// Package fixedpoint provides the exact numeric types used for balances,
// prices and fee accrual. Native amounts are arbitrary-precision decimals;
// lot quantities are int64 with checked arithmetic so overflow surfaces as
// an error instead of wrapping.
package fixedpoint

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var ErrLotOverflow = errors.New("lot arithmetic overflow")

const bpsDenominator = 10_000

// Amount is an exact signed fixed-point amount in native units.
// The zero value is usable and equals zero.
type Amount struct {
	d decimal.Decimal
}

func New(d decimal.Decimal) Amount {
	return Amount{d: d}
}

func FromInt64(v int64) Amount {
	return Amount{d: decimal.NewFromInt(v)}
}

func MustParse(s string) Amount {
	return Amount{d: decimal.RequireFromString(s)}
}

func Zero() Amount {
	return Amount{}
}

func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

func (a Amount) Sub(b Amount) Amount {
	return Amount{d: a.d.Sub(b.d)}
}

// MulLots scales a per-lot native size by a lot count.
func (a Amount) MulLots(lots int64) Amount {
	return Amount{d: a.d.Mul(decimal.NewFromInt(lots))}
}

// MulBps returns a*bps/10000, used for fee and rebate accrual.
func (a Amount) MulBps(bps int64) Amount {
	return Amount{d: a.d.Mul(decimal.NewFromInt(bps)).Div(decimal.NewFromInt(bpsDenominator))}
}

// Div divides by a lot count; lots must be non-zero.
func (a Amount) Div(lots int64) Amount {
	return Amount{d: a.d.Div(decimal.NewFromInt(lots))}
}

func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

func (a Amount) IsNegative() bool {
	return a.d.IsNegative()
}

func (a Amount) IsPositive() bool {
	return a.d.IsPositive()
}

func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

func (a Amount) String() string {
	return a.d.String()
}

// AddLots adds two lot counts, failing on int64 overflow.
func AddLots(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, ErrLotOverflow
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, ErrLotOverflow
	}
	return a + b, nil
}

// MulLots multiplies two lot counts, failing on int64 overflow.
func MulLots(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	p := a * b
	if p/b != a {
		return 0, ErrLotOverflow
	}
	return p, nil
}
