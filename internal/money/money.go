// Package money provides an exact decimal currency amount.
//
// Money wraps shopspring/decimal and never passes through a binary float:
// addition, subtraction and integer multiplication are exact, and nothing in
// this package rounds.
package money

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a monetary string cannot be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

// displayPlaces is the minimum number of fractional digits rendered by String.
const displayPlaces = 2

// Money is an exact base-10 currency amount. The zero value is 0.
type Money struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{}

// Parse converts a decimal string such as "10.00" into Money.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, errors.Wrapf(ErrInvalidAmount, "parse %q", s)
	}
	return Money{d: d}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDecimal wraps an existing decimal value.
func FromDecimal(d decimal.Decimal) Money {
	return Money{d: d}
}

// FromInt returns a whole-unit amount.
func FromInt(units int64) Money {
	return Money{d: decimal.NewFromInt(units)}
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return Money{d: m.d.Sub(o.d)}
}

// MulInt returns m * n.
func (m Money) MulInt(n int64) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(n))}
}

// MulRatio returns m * r without rounding.
func (m Money) MulRatio(r decimal.Decimal) Money {
	return Money{d: m.d.Mul(r)}
}

// Decimal exposes the underlying exact value.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// FitsScale reports whether m has at most places significant fractional
// digits, so storing it in a column of that scale keeps it unchanged.
func (m Money) FitsScale(places int32) bool {
	return m.d.Equal(m.d.Truncate(places))
}

// Equal reports whether both amounts are numerically equal ("20" == "20.00").
func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

// Cmp compares m and o and returns -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	return m.d.Cmp(o.d)
}

// IsZero reports whether m == 0.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

// String renders at least two fractional digits. Extra precision is kept.
func (m Money) String() string {
	if m.d.Exponent() >= -displayPlaces {
		return m.d.StringFixed(displayPlaces)
	}
	return m.d.String()
}

// Sum adds all amounts left to right starting at zero.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
