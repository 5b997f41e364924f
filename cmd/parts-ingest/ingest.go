package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/tractor-shop/internal/domain/catalog"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	headerField   = "part_number"
)

// priceRow is one supplier offer for a part.
type priceRow struct {
	PartNumber string
	Name       string
	Price      decimal.Decimal
	Stock      int
}

// fileResult holds the rows of one price list after pass 2, one per part
// number. Part numbers that may appear in another list are kept in shared for
// the exact merge; the rest are unique to this list.
type fileResult struct {
	unique    map[string]priceRow
	shared    map[string]priceRow
	malformed int
}

type ingestStats struct {
	Shared    int
	Malformed int
}

// ingest merges the price lists: a part number offered by several suppliers
// keeps the lowest price (and its name) with stock summed across lists.
func ingest(ctx context.Context, files []string, expectedParts uint) ([]priceRow, ingestStats, error) {
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files, expectedParts)
	if err != nil {
		return nil, ingestStats{}, errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: collecting rows")

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			res, err := scanFile(gctx, i, f, filters)
			if err != nil {
				return errors.Wrapf(err, "scan file %d", i+1)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, ingestStats{}, err
	}

	rows, stats := mergeResults(results)
	return rows, stats, nil
}

// buildBloomFilters creates one bloom filter of part numbers per file,
// concurrently.
func buildBloomFilters(ctx context.Context, files []string, expectedParts uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(expectedParts, bloomFPR)
			var count uint64

			if _, err := streamFile(ctx, f, func(r priceRow) {
				filter.AddString(r.PartNumber)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Uint64("rows", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}

			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Uint64("rows", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func scanFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) (fileResult, error) {
	res := fileResult{
		unique: make(map[string]priceRow),
		shared: make(map[string]priceRow),
	}

	malformed, err := streamFile(ctx, path, func(r priceRow) {
		rows := res.unique
		if seenElsewhere(idx, r.PartNumber, filters) {
			rows = res.shared
		}
		if prev, ok := rows[r.PartNumber]; ok {
			r = mergeRows(prev, r)
		}
		rows[r.PartNumber] = r
	})
	if err != nil {
		return fileResult{}, err
	}
	res.malformed = malformed

	slog.Info("pass 2 complete",
		slog.Int("file", idx+1),
		slog.Int("unique", len(res.unique)),
		slog.Int("shared", len(res.shared)),
		slog.Int("malformed", malformed),
	)
	return res, nil
}

func seenElsewhere(idx int, partNumber string, filters []*bloom.BloomFilter) bool {
	for j, f := range filters {
		if j != idx && f.TestString(partNumber) {
			return true
		}
	}
	return false
}

// mergeResults combines per-file results into one row per part number,
// ordered by part number.
func mergeResults(results []fileResult) ([]priceRow, ingestStats) {
	var (
		stats  ingestStats
		merged = make(map[string]priceRow)
		rows   []priceRow
	)
	for _, res := range results {
		stats.Malformed += res.malformed
		for _, r := range res.unique {
			rows = append(rows, r)
		}
		for pn, r := range res.shared {
			if prev, ok := merged[pn]; ok {
				r = mergeRows(prev, r)
			}
			merged[pn] = r
		}
	}

	// A bloom false positive leaves a part alone in merged; it is still a
	// single offer.
	for _, r := range merged {
		rows = append(rows, r)
	}
	stats.Shared = len(merged)

	sort.Slice(rows, func(i, j int) bool { return rows[i].PartNumber < rows[j].PartNumber })
	return rows, stats
}

func mergeRows(a, b priceRow) priceRow {
	out := a
	if b.Price.LessThan(a.Price) {
		out = b
	}
	out.Stock = a.Stock + b.Stock
	return out
}

// streamFile opens a gzip-compressed price list and calls fn for each valid
// row, returning the number of malformed rows skipped.
func streamFile(ctx context.Context, path string, fn func(priceRow)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	malformed, err := readRows(ctx, gz, fn)
	if err != nil {
		return malformed, errors.Wrapf(err, "read %s", path)
	}
	return malformed, nil
}

// readRows parses CSV rows of part_number,name,price,stock. A leading header
// row is skipped.
func readRows(ctx context.Context, r io.Reader, fn func(priceRow)) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var malformed int
	for line := 0; ; line++ {
		if err := ctx.Err(); err != nil {
			return malformed, err
		}

		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return malformed, nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				malformed++
				continue
			}
			return malformed, err
		}
		if line == 0 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), headerField) {
			continue
		}

		row, ok := parseRow(rec)
		if !ok {
			malformed++
			continue
		}
		fn(row)
	}
}

func parseRow(rec []string) (priceRow, bool) {
	if len(rec) != 4 {
		return priceRow{}, false
	}
	pn := strings.TrimSpace(rec[0])
	name := strings.TrimSpace(rec[1])
	if pn == "" || name == "" {
		return priceRow{}, false
	}
	price, err := decimal.NewFromString(strings.TrimSpace(rec[2]))
	if err != nil || price.IsNegative() {
		return priceRow{}, false
	}
	stock, err := strconv.Atoi(strings.TrimSpace(rec[3]))
	if err != nil || stock < 0 {
		return priceRow{}, false
	}
	return priceRow{PartNumber: pn, Name: name, Price: price.Round(2), Stock: stock}, true
}

// writeParts upserts merged rows into the parts catalog. Existing part
// numbers keep their ID.
func writeParts(ctx context.Context, repo catalog.Repository, rows []priceRow) error {
	slog.Info("writing parts to database", slog.Int("count", len(rows)))

	for i, r := range rows {
		if err := repo.UpsertPart(ctx, catalog.Part{
			ID:         uuid.NewString(),
			PartNumber: r.PartNumber,
			Name:       r.Name,
			Price:      r.Price,
			Stock:      r.Stock,
			Active:     true,
		}); err != nil {
			return errors.Wrapf(err, "upsert part %s", r.PartNumber)
		}

		if (i+1)%1000 == 0 || i+1 == len(rows) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(rows)))
		}
	}
	return nil
}
