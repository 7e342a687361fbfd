package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/promo-orders/internal/money"
)

// UsageCounter counts completed orders that used a promo code.
type UsageCounter interface {
	CountCompletedOrders(ctx context.Context, code string, since time.Time) (int, error)
}

// Validator decides whether a promo code applies to an order.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal money.Money) (Outcome, error)
}

var _ Validator = (*RegistryValidator)(nil)

// RegistryValidator implements Validator on top of a Registry and a
// UsageCounter.
//
// The lookup and the usage count are not serialized with the later order
// write, so concurrent orders may both pass a nearly exhausted cap.
type RegistryValidator struct {
	registry Registry
	usage    UsageCounter
	now      func() time.Time
}

// NewRegistryValidator creates a RegistryValidator.
func NewRegistryValidator(registry Registry, usage UsageCounter) *RegistryValidator {
	return &RegistryValidator{registry: registry, usage: usage, now: time.Now}
}

// SetClock replaces the time source used for expiry checks.
func (v *RegistryValidator) SetClock(now func() time.Time) {
	v.now = now
}

// Validate looks the code up, checks expiry, then counts completed orders
// since the promo started. Rejections are returned as outcomes; store faults
// are returned as *LookupError.
func (v *RegistryValidator) Validate(ctx context.Context, code string, subtotal money.Money) (Outcome, error) {
	def, err := v.registry.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Rejected(code, RejectNotFound), nil
		}
		return Outcome{}, &LookupError{Code: code, Err: errors.Wrap(err, "lookup")}
	}

	if v.now().After(def.ExpiredAt) {
		return Rejected(code, RejectExpired), nil
	}

	used, err := v.usage.CountCompletedOrders(ctx, code, def.StartedAt)
	if err != nil {
		return Outcome{}, &LookupError{Code: code, Err: errors.Wrap(err, "count usage")}
	}
	if used > def.MaxUsed {
		return Rejected(code, RejectUsageCapExceeded), nil
	}

	return Applied(code, def.Discount.Amount(subtotal)), nil
}
