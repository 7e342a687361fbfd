//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/promo-orders/internal/domain/order"
	"github.com/xenking/promo-orders/internal/domain/product"
	"github.com/xenking/promo-orders/internal/domain/promo"
	"github.com/xenking/promo-orders/internal/money"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "orders",
				"POSTGRES_PASSWORD": "orders",
				"POSTGRES_DB":       "orders",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Terminate(context.Background())
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := NewPool(ctx, fmt.Sprintf("postgres://orders:orders@%s:%s/orders?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestIntegration_OrderLifecycle(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	products := NewProductRepository(pool)
	promos := NewPromoRepository(pool)
	orders := NewOrderRepository(pool)

	require.NoError(t, products.Upsert(ctx, []product.Product{
		{SKU: "A", Name: "Alpha", BasePrice: money.MustParse("10.00"), Price: money.MustParse("10.00")},
		{SKU: "B", Name: "Beta", BasePrice: money.MustParse("6.00"), Price: money.MustParse("5.00")},
	}))
	n, err := promos.Insert(ctx, promo.DefaultCodes())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	resolved, err := products.Resolve(ctx, []string{"A", "B", "X"})
	require.NoError(t, err)
	assert.Len(t, resolved, 2)

	def, err := promos.Lookup(ctx, "D20TTS20240501")
	require.NoError(t, err)
	assert.Equal(t, 5, def.MaxUsed)

	_, err = promos.Lookup(ctx, "d20tts20240501")
	require.ErrorIs(t, err, promo.ErrNotFound)

	created := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	for i := range 3 {
		o := &order.Order{
			ID:            fmt.Sprintf("order-%d", i),
			PromoCode:     "D20TTS20240501",
			PromoDiscount: money.MustParse("20.00"),
			Subtotal:      money.MustParse("20.00"),
			DiscountTotal: money.MustParse("20.00"),
			GrandTotal:    money.MustParse("0.00"),
			Status:        order.StatusPending,
			CreatedAt:     created,
		}
		items := []order.Item{{OrderID: o.ID, SKU: "A", Name: "Alpha",
			BasePrice: money.MustParse("10.00"), Price: money.MustParse("10.00"), Quantity: 2}}
		require.NoError(t, orders.SaveAtomically(ctx, o, items))
	}

	// Pending orders do not count towards the cap.
	used, err := orders.CountCompletedOrders(ctx, "D20TTS20240501", def.StartedAt)
	require.NoError(t, err)
	assert.Zero(t, used)

	_, err = pool.Exec(ctx, `UPDATE orders SET status = 'COMPLETED' WHERE id IN ('order-0', 'order-1')`)
	require.NoError(t, err)

	used, err = orders.CountCompletedOrders(ctx, "D20TTS20240501", def.StartedAt)
	require.NoError(t, err)
	assert.Equal(t, 2, used)

	used, err = orders.CountCompletedOrders(ctx, "D20TTS20240501", created.Add(time.Second))
	require.NoError(t, err)
	assert.Zero(t, used)
}

func TestIntegration_SaveAtomicallyLeavesNothingOnFailure(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	orders := NewOrderRepository(pool)

	o := &order.Order{
		ID:         "order-bad",
		Subtotal:   money.MustParse("1.00"),
		GrandTotal: money.MustParse("1.00"),
		Status:     order.StatusPending,
		CreatedAt:  time.Now(),
	}
	items := []order.Item{
		{OrderID: o.ID, SKU: "A", Name: "Alpha", Price: money.MustParse("1.00"), Quantity: 1},
		{OrderID: o.ID, SKU: "B", Name: "Beta", Price: money.MustParse("1.00"), Quantity: 0},
	}
	require.Error(t, orders.SaveAtomically(ctx, o, items))

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE id = $1`, o.ID).Scan(&count))
	assert.Zero(t, count)
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM order_items WHERE order_id = $1`, o.ID).Scan(&count))
	assert.Zero(t, count)
}
