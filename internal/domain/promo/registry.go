package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-orders/internal/money"
)

// Registry resolves promo definitions by exact code.
// Lookup returns ErrNotFound when no definition exists.
type Registry interface {
	Lookup(ctx context.Context, code string) (*Code, error)
}

var _ Registry = (*StaticRegistry)(nil)

// StaticRegistry is an in-process, read-only promo table.
type StaticRegistry struct {
	codes map[string]Code
}

// NewStaticRegistry builds a registry from the given definitions. Duplicate
// or malformed definitions are rejected.
func NewStaticRegistry(codes ...Code) (*StaticRegistry, error) {
	m := make(map[string]Code, len(codes))
	for _, c := range codes {
		if err := Validate(c); err != nil {
			return nil, err
		}
		if _, ok := m[c.Code]; ok {
			return nil, errors.Errorf("duplicate promo code %q", c.Code)
		}
		m[c.Code] = c
	}
	return &StaticRegistry{codes: m}, nil
}

// Lookup implements Registry.
func (r *StaticRegistry) Lookup(_ context.Context, code string) (*Code, error) {
	c, ok := r.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

// Len returns the number of definitions.
func (r *StaticRegistry) Len() int {
	return len(r.codes)
}

// Scales of stored discount values.
const (
	AmountScale = 2
	RatioScale  = 4
)

// Validate checks a definition for internal consistency.
func Validate(c Code) error {
	switch {
	case c.Code == "":
		return errors.New("promo code is empty")
	case c.Discount == nil:
		return errors.Errorf("promo %q has no discount", c.Code)
	case c.MaxUsed < 0:
		return errors.Errorf("promo %q has negative max used", c.Code)
	case c.ExpiredAt.Before(c.StartedAt):
		return errors.Errorf("promo %q expires before it starts", c.Code)
	}
	return validateDiscount(c.Code, c.Discount)
}

func validateDiscount(code string, d Discount) error {
	switch d := d.(type) {
	case FixedAmount:
		if d.Value.IsNegative() {
			return errors.Errorf("promo %q has negative amount %s", code, d.Value)
		}
		if !d.Value.FitsScale(AmountScale) {
			return errors.Errorf("promo %q amount %s has more than %d decimal places", code, d.Value, AmountScale)
		}
	case Percent:
		if d.Ratio.IsNegative() || d.Ratio.GreaterThan(decimal.NewFromInt(1)) {
			return errors.Errorf("promo %q ratio %s is outside [0, 1]", code, d.Ratio)
		}
		if !d.Ratio.Equal(d.Ratio.Truncate(RatioScale)) {
			return errors.Errorf("promo %q ratio %s has more than %d decimal places", code, d.Ratio, RatioScale)
		}
	}
	return nil
}

// DefaultCodes returns the built-in promo table.
func DefaultCodes() []Code {
	return []Code{
		{
			Code:      "D20TTS20240501",
			Discount:  FixedAmount{Value: money.MustParse("20.00")},
			MaxUsed:   5,
			StartedAt: time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
			ExpiredAt: time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC),
		},
	}
}
