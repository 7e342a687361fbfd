package main

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/promo-orders/internal/domain/product"
	"github.com/xenking/promo-orders/internal/money"
)

// parseProducts decodes a JSON array of {sku, name, basePrice, price}.
// basePrice defaults to price when omitted.
func parseProducts(data []byte) ([]product.Product, error) {
	var products []product.Product
	seen := make(map[string]struct{})

	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var (
			p         product.Product
			basePrice string
			price     string
		)
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "sku":
				p.SKU, err = d.Str()
			case "name":
				p.Name, err = d.Str()
			case "basePrice":
				basePrice, err = d.Str()
			case "price":
				price, err = d.Str()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}

		if p.SKU == "" {
			return errors.New("product without sku")
		}
		if _, dup := seen[p.SKU]; dup {
			return errors.Errorf("duplicate sku %q", p.SKU)
		}
		seen[p.SKU] = struct{}{}

		var err error
		if p.Price, err = money.Parse(price); err != nil {
			return errors.Wrapf(err, "product %q price", p.SKU)
		}
		p.BasePrice = p.Price
		if basePrice != "" {
			if p.BasePrice, err = money.Parse(basePrice); err != nil {
				return errors.Wrapf(err, "product %q base price", p.SKU)
			}
		}
		if err := product.Validate(p); err != nil {
			return err
		}

		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}
