package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/promo-orders/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, payment_method, payment_order_id, promo_code, promo_discount,
		subtotal, discount_total, grand_total, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, sku, name, base_price, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)`

	countCompletedOrdersSQL = `SELECT COUNT(*) FROM orders
		WHERE promo_code = $1 AND status = $2 AND created_at >= $3`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db DB
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(db DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// SaveAtomically inserts the order and its items in one transaction.
func (r *OrderRepository) SaveAtomically(ctx context.Context, o *order.Order, items []order.Item) error {
	err := withinTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.PaymentMethod, o.PaymentOrderID, nullIfEmpty(o.PromoCode), o.PromoDiscount.Decimal(),
			o.Subtotal.Decimal(), o.DiscountTotal.Decimal(), o.GrandTotal.Decimal(),
			string(o.Status), o.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		for _, it := range items {
			if _, err := tx.Exec(ctx, insertOrderItemSQL,
				o.ID, it.SKU, it.Name, it.BasePrice.Decimal(), it.Price.Decimal(), it.Quantity,
			); err != nil {
				return fmt.Errorf("inserting item %q: %w", it.SKU, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving order %q: %w", o.ID, err)
	}
	return nil
}

// CountCompletedOrders counts completed orders that used code and were
// created at or after since.
func (r *OrderRepository) CountCompletedOrders(ctx context.Context, code string, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, countCompletedOrdersSQL,
		code, string(order.StatusCompleted), since,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders for promo %q: %w", code, err)
	}
	return n, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
