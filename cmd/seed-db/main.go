// Command seed-db applies the schema and seeds the product catalog and the
// default promo table.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/promo-orders/db"
	"github.com/xenking/promo-orders/internal/domain/promo"
	"github.com/xenking/promo-orders/internal/repository"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		skipPromos   bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "path to products JSON file (defaults to the embedded catalog)")
	flag.BoolVar(&skipPromos, "skip-promos", false, "do not seed the default promo codes")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, skipPromos); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, skipPromos bool) error {
	data := db.Products
	if productsFile != "" {
		slog.Info("reading products file", slog.String("path", productsFile))
		b, err := os.ReadFile(productsFile)
		if err != nil {
			return errors.Wrap(err, "read products file")
		}
		data = b
	}
	products, err := parseProducts(data)
	if err != nil {
		return errors.Wrap(err, "parse products")
	}

	slog.Info("connecting to database")
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))
	if err := repository.NewProductRepository(pool).Upsert(ctx, products); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if skipPromos {
		return nil
	}
	codes := promo.DefaultCodes()
	n, err := repository.NewPromoRepository(pool).Insert(ctx, codes)
	if err != nil {
		return errors.Wrap(err, "seed promos")
	}
	slog.Info("seeded promo codes", slog.Int64("inserted", n), slog.Int("defined", len(codes)))

	return nil
}
