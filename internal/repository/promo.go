package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-orders/internal/domain/promo"
)

const (
	getPromoByCodeSQL = `SELECT code, discount_kind, discount_value, max_used, started_at, expired_at
		FROM promo_codes WHERE code = $1`

	insertPromoSQL = `INSERT INTO promo_codes (code, discount_kind, discount_value, max_used, started_at, expired_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO NOTHING`
)

var _ promo.Registry = (*PromoRepository)(nil)

// PromoRepository implements promo.Registry backed by PostgreSQL.
type PromoRepository struct {
	db DB
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(db DB) *PromoRepository {
	return &PromoRepository{db: db}
}

// Lookup returns the promo stored under exactly code. Returns
// promo.ErrNotFound when no row matches.
func (r *PromoRepository) Lookup(ctx context.Context, code string) (*promo.Code, error) {
	rows, err := r.db.Query(ctx, getPromoByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promo %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanPromo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrNotFound
		}
		return nil, fmt.Errorf("finding promo %q: %w", code, err)
	}
	return &c, nil
}

// Insert stores promos in one transaction, skipping codes that already
// exist. Malformed definitions fail the call before anything is written.
// It returns how many rows were inserted.
func (r *PromoRepository) Insert(ctx context.Context, codes []promo.Code) (int64, error) {
	for _, c := range codes {
		if err := promo.Validate(c); err != nil {
			return 0, err
		}
	}

	var inserted int64
	err := withinTx(ctx, r.db, func(tx pgx.Tx) error {
		for _, c := range codes {
			tag, err := tx.Exec(ctx, insertPromoSQL,
				c.Code, string(c.Discount.Kind()), promo.DiscountValue(c.Discount),
				c.MaxUsed, c.StartedAt, c.ExpiredAt,
			)
			if err != nil {
				return fmt.Errorf("inserting promo %q: %w", c.Code, err)
			}
			inserted += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func scanPromo(row pgx.CollectableRow) (promo.Code, error) {
	var (
		c         promo.Code
		kind      string
		value     decimal.Decimal
		maxUsed   int32
		startedAt time.Time
		expiredAt time.Time
	)
	if err := row.Scan(&c.Code, &kind, &value, &maxUsed, &startedAt, &expiredAt); err != nil {
		return c, err
	}
	d, err := promo.NewDiscount(promo.DiscountKind(kind), value)
	if err != nil {
		return c, errors.Wrapf(err, "promo %q", c.Code)
	}
	c.Discount = d
	c.MaxUsed = int(maxUsed)
	c.StartedAt = startedAt
	c.ExpiredAt = expiredAt
	return c, nil
}
