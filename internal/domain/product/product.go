package product

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/promo-orders/internal/money"
)

// PriceScale is the number of fractional digits stored for prices.
const PriceScale = 2

// Product is a purchasable catalog entry. Price is the sale price used for
// order totals; BasePrice is informational.
type Product struct {
	SKU       string
	Name      string
	BasePrice money.Money
	Price     money.Money
}

// Catalog resolves SKUs to priced products.
//
// Resolve expects de-duplicated SKUs and returns at most one product per SKU.
// Unknown SKUs are omitted rather than reported as errors.
type Catalog interface {
	Resolve(ctx context.Context, skus []string) ([]Product, error)
}

// Lister returns the whole catalog.
type Lister interface {
	List(ctx context.Context) ([]Product, error)
}

// Index maps products by SKU.
func Index(products []Product) map[string]Product {
	m := make(map[string]Product, len(products))
	for _, p := range products {
		m[p.SKU] = p
	}
	return m
}

// Validate checks that p can be stored without losing precision.
func Validate(p Product) error {
	if p.SKU == "" {
		return errors.New("product without sku")
	}
	for _, price := range []struct {
		name  string
		value money.Money
	}{
		{"price", p.Price},
		{"base price", p.BasePrice},
	} {
		if price.value.IsNegative() {
			return errors.Errorf("product %q has negative %s", p.SKU, price.name)
		}
		if !price.value.FitsScale(PriceScale) {
			return errors.Errorf("product %q %s %s has more than %d decimal places", p.SKU, price.name, price.value, PriceScale)
		}
	}
	return nil
}
