package promo

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-orders/internal/money"
)

// ErrNotFound is returned by a Registry when no promo matches the code.
var ErrNotFound = errors.New("promo code not found")

// DiscountKind enumerates the supported discount variants.
type DiscountKind string

const (
	// KindFixedAmount subtracts a fixed monetary amount.
	KindFixedAmount DiscountKind = "fixed"
	// KindPercent subtracts a ratio of the subtotal.
	KindPercent DiscountKind = "percent"
)

// Discount is the tagged variant describing how a promo reduces an order.
type Discount interface {
	Kind() DiscountKind
	// Amount returns the discount for the given subtotal.
	Amount(subtotal money.Money) money.Money
}

// FixedAmount discounts a constant amount regardless of subtotal.
type FixedAmount struct {
	Value money.Money
}

// Kind implements Discount.
func (FixedAmount) Kind() DiscountKind { return KindFixedAmount }

// Amount implements Discount.
func (f FixedAmount) Amount(money.Money) money.Money { return f.Value }

// Percent discounts Ratio × subtotal, where Ratio is a fraction (0.15 is 15%).
type Percent struct {
	Ratio decimal.Decimal
}

// Kind implements Discount.
func (Percent) Kind() DiscountKind { return KindPercent }

// Amount implements Discount.
func (p Percent) Amount(subtotal money.Money) money.Money { return subtotal.MulRatio(p.Ratio) }

// NewDiscount builds a Discount from its stored kind and value.
func NewDiscount(kind DiscountKind, value decimal.Decimal) (Discount, error) {
	switch kind {
	case KindFixedAmount:
		return FixedAmount{Value: money.FromDecimal(value)}, nil
	case KindPercent:
		return Percent{Ratio: value}, nil
	default:
		return nil, errors.Errorf("unsupported discount kind: %q", kind)
	}
}

// DiscountValue returns the stored scalar of a discount: the amount for
// FixedAmount, the ratio for Percent.
func DiscountValue(d Discount) decimal.Decimal {
	switch v := d.(type) {
	case FixedAmount:
		return v.Value.Decimal()
	case Percent:
		return v.Ratio
	default:
		return decimal.Zero
	}
}

// Code is an immutable promo definition.
type Code struct {
	Code     string
	Discount Discount
	// MaxUsed caps completed orders counted since StartedAt. A count equal
	// to MaxUsed is still accepted.
	MaxUsed   int
	StartedAt time.Time
	ExpiredAt time.Time
}

// Rejection explains why a promo was not applied.
type Rejection string

const (
	RejectNotFound         Rejection = "not_found"
	RejectExpired          Rejection = "expired"
	RejectUsageCapExceeded Rejection = "usage_cap_exceeded"
)

// Outcome is the result of validating a promo code: either applied with a
// discount, or rejected with a reason.
type Outcome struct {
	Code      string
	Discount  money.Money
	Rejection Rejection
}

// Applied returns an outcome granting discount.
func Applied(code string, discount money.Money) Outcome {
	return Outcome{Code: code, Discount: discount}
}

// Rejected returns an outcome refusing the promo.
func Rejected(code string, reason Rejection) Outcome {
	return Outcome{Code: code, Discount: money.Zero, Rejection: reason}
}

// IsApplied reports whether the promo grants a discount.
func (o Outcome) IsApplied() bool {
	return o.Rejection == ""
}

// LookupError reports a store fault while resolving or counting a promo.
// It is distinct from a rejection: the caller must abort instead of
// silently dropping the discount.
type LookupError struct {
	Code string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("promo %s lookup failed: %v", e.Code, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
