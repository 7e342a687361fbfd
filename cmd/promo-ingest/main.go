// Command promo-ingest imports promo definitions from gzip-compressed CSV
// exports into the promo_codes table.
//
// Each row is: code,kind,value,max_used,started_at,expired_at with kind
// "fixed" or "percent" and RFC 3339 timestamps. A code defined in more than
// one export is ambiguous and is not imported.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/promo-orders/internal/domain/promo"
	"github.com/xenking/promo-orders/internal/repository"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		batchSize   int
		opts        ingestOptions
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz exports (ignored when files are given as arguments)")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", 1000, "promo rows per insert transaction")
	flag.UintVar(&opts.expectedCodes, "expected-codes", 1_000_000, "expected codes per export, sizes the bloom filters")
	flag.Float64Var(&opts.falsePositive, "false-positive-rate", 0.001, "bloom filter false positive rate")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if batchSize <= 0 {
		slog.Error("batch size must be positive")
		os.Exit(1)
	}

	files := flag.Args()
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
		if err != nil {
			slog.Error("list exports", slog.String("error", err.Error()))
			os.Exit(1)
		}
		files = matches
	}
	sort.Strings(files)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL, batchSize, opts); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest completed successfully")
}

func run(ctx context.Context, files []string, databaseURL string, batchSize int, opts ingestOptions) error {
	if len(files) == 0 {
		return errors.New("no export files found")
	}
	slog.Info("ingesting promo exports", slog.Int("files", len(files)))

	res, err := ingest(ctx, files, opts)
	if err != nil {
		return errors.Wrap(err, "scan exports")
	}

	sort.Strings(res.conflicts)
	for _, code := range res.conflicts {
		slog.Warn("code defined in multiple exports, skipped", slog.String("code", code))
	}
	slog.Info("scan complete",
		slog.Int("accepted", len(res.accepted)),
		slog.Int("conflicts", len(res.conflicts)),
		slog.Int("invalid", res.invalid),
	)
	if len(res.accepted) == 0 {
		slog.Info("no promo codes to insert")
		return nil
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return writePromos(ctx, repository.NewPromoRepository(pool), res.accepted, batchSize)
}

// promoWriter is implemented by *repository.PromoRepository.
type promoWriter interface {
	Insert(ctx context.Context, codes []promo.Code) (int64, error)
}

// writePromos inserts codes in batches. Codes already present are kept as is.
func writePromos(ctx context.Context, w promoWriter, codes []promo.Code, batchSize int) error {
	var inserted int64
	for start := 0; start < len(codes); start += batchSize {
		end := min(start+batchSize, len(codes))
		n, err := w.Insert(ctx, codes[start:end])
		if err != nil {
			return errors.Wrapf(err, "insert batch %d-%d", start, end)
		}
		inserted += n
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(codes)))
	}
	slog.Info("promo codes written",
		slog.Int64("inserted", inserted),
		slog.Int64("existing", int64(len(codes))-inserted),
	)
	return nil
}
