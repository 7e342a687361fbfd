package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/promo-orders/db"
	"github.com/xenking/promo-orders/internal/money"
)

func TestParseProducts_Embedded(t *testing.T) {
	products, err := parseProducts(db.Products)
	require.NoError(t, err)
	require.NotEmpty(t, products)

	for _, p := range products {
		assert.NotEmpty(t, p.SKU)
		assert.NotEmpty(t, p.Name)
		assert.True(t, p.Price.IsPositive(), p.SKU)
	}
}

func TestParseProducts(t *testing.T) {
	products, err := parseProducts([]byte(`[
		{"sku": "A", "name": "Alpha", "basePrice": "12.00", "price": "10.00", "tags": ["x"]},
		{"sku": "B", "name": "Beta", "price": "5"}
	]`))
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.True(t, money.MustParse("12.00").Equal(products[0].BasePrice))
	assert.True(t, money.MustParse("10.00").Equal(products[0].Price))
	assert.True(t, products[1].BasePrice.Equal(products[1].Price))
}

func TestParseProducts_TrailingZerosKept(t *testing.T) {
	products, err := parseProducts([]byte(`[{"sku": "A", "price": "10.500"}]`))
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, money.MustParse("10.50").Equal(products[0].Price))
}

func TestParseProducts_Errors(t *testing.T) {
	for name, input := range map[string]string{
		"not an array":            `{"sku":"A"}`,
		"missing sku":             `[{"name":"A","price":"1"}]`,
		"duplicate sku":           `[{"sku":"A","price":"1"},{"sku":"A","price":"2"}]`,
		"bad price":               `[{"sku":"A","price":"one"}]`,
		"missing price":           `[{"sku":"A"}]`,
		"negative price":          `[{"sku":"A","price":"-1"}]`,
		"numeric price":           `[{"sku":"A","price":1.5}]`,
		"price beyond cents":      `[{"sku":"A","price":"10.005"}]`,
		"base price beyond cents": `[{"sku":"A","basePrice":"1.999","price":"1"}]`,
		"negative base price":     `[{"sku":"A","basePrice":"-1","price":"1"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseProducts([]byte(input))
			require.Error(t, err)
		})
	}
}
