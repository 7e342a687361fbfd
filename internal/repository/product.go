package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-orders/internal/domain/product"
	"github.com/xenking/promo-orders/internal/money"
)

const (
	listProductsSQL = `SELECT sku, name, base_price, price FROM products ORDER BY sku`

	resolveProductsSQL = `SELECT sku, name, base_price, price FROM products WHERE sku = ANY($1)`

	upsertProductSQL = `INSERT INTO products (sku, name, base_price, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sku) DO UPDATE SET name = EXCLUDED.name, base_price = EXCLUDED.base_price, price = EXCLUDED.price`
)

var (
	_ product.Catalog = (*ProductRepository)(nil)
	_ product.Lister  = (*ProductRepository)(nil)
)

// ProductRepository implements product.Catalog backed by PostgreSQL.
type ProductRepository struct {
	db DB
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(db DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns all products ordered by SKU.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Resolve returns the products matching skus in one query. Unknown SKUs are
// absent from the result.
func (r *ProductRepository) Resolve(ctx context.Context, skus []string) ([]product.Product, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, resolveProductsSQL, skus)
	if err != nil {
		return nil, fmt.Errorf("resolving products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("resolving products: %w", err)
	}
	return products, nil
}

// Upsert inserts products or updates existing ones in a single transaction.
func (r *ProductRepository) Upsert(ctx context.Context, products []product.Product) error {
	return withinTx(ctx, r.db, func(tx pgx.Tx) error {
		for _, p := range products {
			if _, err := tx.Exec(ctx, upsertProductSQL,
				p.SKU, p.Name, p.BasePrice.Decimal(), p.Price.Decimal(),
			); err != nil {
				return fmt.Errorf("upserting product %q: %w", p.SKU, err)
			}
		}
		return nil
	})
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p         product.Product
		basePrice decimal.Decimal
		price     decimal.Decimal
	)
	err := row.Scan(&p.SKU, &p.Name, &basePrice, &price)
	p.BasePrice = money.FromDecimal(basePrice)
	p.Price = money.FromDecimal(price)
	return p, err
}
