package order

import (
	"github.com/xenking/promo-orders/internal/domain/product"
	"github.com/xenking/promo-orders/internal/money"
)

// Line pairs a resolved product with the requested quantity.
type Line struct {
	Product  product.Product
	Quantity int
}

// Breakdown is the authoritative price of an order.
type Breakdown struct {
	Subtotal      money.Money
	DiscountTotal money.Money
	GrandTotal    money.Money
}

// Subtotal sums price * quantity over lines.
func Subtotal(lines []Line) money.Money {
	sum := money.Zero
	for _, l := range lines {
		sum = sum.Add(l.Product.Price.MulInt(int64(l.Quantity)))
	}
	return sum
}

// Price computes the breakdown for lines with the given discount applied in
// full. GrandTotal is not floored at zero, so a discount larger than the
// subtotal yields a negative total.
func Price(lines []Line, discount money.Money) Breakdown {
	subtotal := Subtotal(lines)
	return Breakdown{
		Subtotal:      subtotal,
		DiscountTotal: discount,
		GrandTotal:    subtotal.Sub(discount),
	}
}
