package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/promo-orders/internal/domain/promo"
)

// Column order of a promo export row.
const (
	colCode = iota
	colKind
	colValue
	colMaxUsed
	colStartedAt
	colExpiredAt
	numColumns
)

// maxFiles bounds the per-file bitmask.
const maxFiles = 64

// ingestOptions tunes the bloom filters.
type ingestOptions struct {
	expectedCodes uint
	falsePositive float64
}

// ingestResult is the outcome of scanning all exports.
type ingestResult struct {
	accepted []promo.Code
	// conflicts are codes defined in more than one export.
	conflicts []string
	invalid   int
}

// candidate is a row whose code may also appear in another export.
type candidate struct {
	def  promo.Code
	mask uint64
}

type fileScan struct {
	unique     []promo.Code
	candidates map[string]candidate
	invalid    int
}

// ingest reads the exports in two passes. Pass 1 builds a bloom filter of
// codes per file. Pass 2 parses rows; a row whose code misses every other
// file's filter is unique, the rest are resolved exactly by merging per-file
// bitmasks.
func ingest(ctx context.Context, files []string, opts ingestOptions) (*ingestResult, error) {
	if len(files) > maxFiles {
		return nil, errors.Errorf("too many files: %d > %d", len(files), maxFiles)
	}

	filters, err := buildFilters(ctx, files, opts)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	scans := make([]fileScan, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			scan, err := scanFile(gctx, i, path, filters)
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			scans[i] = scan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &ingestResult{}
	merged := make(map[string]candidate)
	for _, s := range scans {
		res.accepted = append(res.accepted, s.unique...)
		res.invalid += s.invalid
		for code, c := range s.candidates {
			m, ok := merged[code]
			if !ok {
				m.def = c.def
			}
			m.mask |= c.mask
			merged[code] = m
		}
	}
	for code, c := range merged {
		if bits.OnesCount64(c.mask) >= 2 {
			res.conflicts = append(res.conflicts, code)
			continue
		}
		// Bloom false positive: the code lives in one file only.
		res.accepted = append(res.accepted, c.def)
	}
	return res, nil
}

func buildFilters(ctx context.Context, files []string, opts ingestOptions) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(opts.expectedCodes, opts.falsePositive)
			var n int
			if err := streamRecords(ctx, path, func(rec []string) error {
				if code := strings.TrimSpace(rec[colCode]); code != "" {
					filter.AddString(code)
					n++
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			slog.Info("pass 1 complete", slog.String("file", path), slog.Int("codes", n))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func scanFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) (fileScan, error) {
	scan := fileScan{candidates: make(map[string]candidate)}
	seen := make(map[string]struct{})
	bit := uint64(1) << uint(idx)

	err := streamRecords(ctx, path, func(rec []string) error {
		def, err := parseRecord(rec)
		if err != nil {
			scan.invalid++
			slog.Warn("skipping invalid row", slog.String("file", path), slog.String("error", err.Error()))
			return nil
		}
		if _, dup := seen[def.Code]; dup {
			slog.Warn("duplicate code within file", slog.String("file", path), slog.String("code", def.Code))
			return nil
		}
		seen[def.Code] = struct{}{}

		for j, f := range filters {
			if j != idx && f.TestString(def.Code) {
				scan.candidates[def.Code] = candidate{def: def, mask: bit}
				return nil
			}
		}
		scan.unique = append(scan.unique, def)
		return nil
	})
	if err != nil {
		return fileScan{}, err
	}

	slog.Info("pass 2 complete",
		slog.String("file", path),
		slog.Int("unique", len(scan.unique)),
		slog.Int("candidates", len(scan.candidates)),
		slog.Int("invalid", scan.invalid),
	)
	return scan, nil
}

// parseRecord converts a CSV row into a validated promo definition.
// Percent values are ratios, so 0.15 means 15%.
func parseRecord(rec []string) (promo.Code, error) {
	if len(rec) != numColumns {
		return promo.Code{}, errors.Errorf("expected %d columns, got %d", numColumns, len(rec))
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}

	value, err := decimal.NewFromString(rec[colValue])
	if err != nil {
		return promo.Code{}, errors.Wrapf(err, "code %q: parse value", rec[colCode])
	}
	if value.IsNegative() {
		return promo.Code{}, errors.Errorf("code %q: negative value", rec[colCode])
	}
	discount, err := promo.NewDiscount(promo.DiscountKind(rec[colKind]), value)
	if err != nil {
		return promo.Code{}, errors.Wrapf(err, "code %q", rec[colCode])
	}
	maxUsed, err := strconv.Atoi(rec[colMaxUsed])
	if err != nil {
		return promo.Code{}, errors.Wrapf(err, "code %q: parse max used", rec[colCode])
	}
	startedAt, err := time.Parse(time.RFC3339, rec[colStartedAt])
	if err != nil {
		return promo.Code{}, errors.Wrapf(err, "code %q: parse started at", rec[colCode])
	}
	expiredAt, err := time.Parse(time.RFC3339, rec[colExpiredAt])
	if err != nil {
		return promo.Code{}, errors.Wrapf(err, "code %q: parse expired at", rec[colCode])
	}

	def := promo.Code{
		Code:      rec[colCode],
		Discount:  discount,
		MaxUsed:   maxUsed,
		StartedAt: startedAt.UTC(),
		ExpiredAt: expiredAt.UTC(),
	}
	if err := promo.Validate(def); err != nil {
		return promo.Code{}, err
	}
	return def, nil
}

// streamRecords calls fn for every data row of a gzip-compressed CSV file.
// A leading header row starting with "code" is skipped.
func streamRecords(ctx context.Context, path string, fn func(rec []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	for first := true; ; first = false {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if first && strings.EqualFold(strings.TrimSpace(rec[colCode]), "code") {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
