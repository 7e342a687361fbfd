package order

import (
	"context"
	"time"

	"github.com/xenking/promo-orders/internal/domain/promo"
	"github.com/xenking/promo-orders/internal/money"
)

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPending is assigned at creation. This package never sets anything else.
	StatusPending Status = "PENDING"
	// StatusCompleted is set by payment confirmation; only completed orders
	// count against promo usage caps.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed is set when payment is declined.
	StatusFailed Status = "FAILED"
)

// Order is a persisted customer order with its price breakdown.
// GrandTotal always equals Subtotal - DiscountTotal.
type Order struct {
	ID             string
	PaymentMethod  string
	PaymentOrderID string
	// PromoCode is empty unless a promo was applied.
	PromoCode     string
	PromoDiscount money.Money
	Subtotal      money.Money
	DiscountTotal money.Money
	GrandTotal    money.Money
	Status        Status
	CreatedAt     time.Time
}

// Item is a line of an order, snapshotted from the product at creation time.
type Item struct {
	OrderID   string
	SKU       string
	Name      string
	BasePrice money.Money
	Price     money.Money
	Quantity  int
}

// Repository persists orders and answers promo usage queries.
type Repository interface {
	promo.UsageCounter
	// SaveAtomically writes the order and all of its items, or nothing.
	SaveAtomically(ctx context.Context, o *Order, items []Item) error
}
