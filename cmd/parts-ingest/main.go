package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/tractor-shop/internal/storage/postgres"
)

func main() {
	var (
		databaseURL   string
		expectedParts uint
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&expectedParts, "expected-parts", 1_000_000, "expected part numbers per price list, sizes the bloom filters")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: parts-ingest [flags] pricelist1.csv.gz [pricelist2.csv.gz ...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, flag.Args(), databaseURL, expectedParts); err != nil {
		slog.Error("parts ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("parts ingest completed successfully")
}

func run(ctx context.Context, files []string, databaseURL string, expectedParts uint) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	rows, stats, err := ingest(ctx, files, expectedParts)
	if err != nil {
		return err
	}

	slog.Info("price lists merged",
		slog.Int("parts", len(rows)),
		slog.Int("shared", stats.Shared),
		slog.Int("malformed", stats.Malformed),
	)

	if len(rows) == 0 {
		slog.Info("no parts to write")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return writeParts(ctx, postgres.NewCatalogRepository(pool), rows)
}
