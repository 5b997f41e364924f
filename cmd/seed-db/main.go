package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/tractor-shop/internal/domain/catalog"
	"github.com/xenking/tractor-shop/internal/domain/customer"
	"github.com/xenking/tractor-shop/internal/storage/postgres"
)

type seedFile struct {
	Services []struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Price       decimal.Decimal `json:"price"`
	} `json:"services"`
	Parts []struct {
		ID         string          `json:"id"`
		PartNumber string          `json:"partNumber"`
		Name       string          `json:"name"`
		Price      decimal.Decimal `json:"price"`
		Stock      int             `json:"stock"`
	} `json:"parts"`
	Customers []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Email   string `json:"email"`
		Address string `json:"address"`
	} `json:"customers"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/catalog.json", "path to catalog seed JSON file")
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

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, postgres.NewCatalogRepository(pool), seed); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedCustomers(ctx, postgres.NewCustomerRepository(pool), seed); err != nil {
		return errors.Wrap(err, "seed customers")
	}
	return nil
}

func seedCatalog(ctx context.Context, repo catalog.Repository, seed seedFile) error {
	slog.Info("upserting services", slog.Int("count", len(seed.Services)))

	for _, s := range seed.Services {
		if err := repo.UpsertService(ctx, catalog.Service{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Price:       s.Price,
			Active:      true,
		}); err != nil {
			return errors.Wrapf(err, "upsert service %s", s.ID)
		}
		slog.Info("upserted service", slog.String("id", s.ID), slog.String("name", s.Name))
	}

	slog.Info("upserting parts", slog.Int("count", len(seed.Parts)))

	for _, p := range seed.Parts {
		if err := repo.UpsertPart(ctx, catalog.Part{
			ID:         p.ID,
			PartNumber: p.PartNumber,
			Name:       p.Name,
			Price:      p.Price,
			Stock:      p.Stock,
			Active:     true,
		}); err != nil {
			return errors.Wrapf(err, "upsert part %s", p.ID)
		}
		slog.Info("upserted part", slog.String("id", p.ID), slog.String("part_number", p.PartNumber))
	}

	return nil
}

func seedCustomers(ctx context.Context, repo customer.Repository, seed seedFile) error {
	for _, c := range seed.Customers {
		if _, err := repo.GetByID(ctx, c.ID); err == nil {
			slog.Info("customer exists, skipping", slog.String("id", c.ID))
			continue
		} else if !errors.Is(err, customer.ErrNotFound) {
			return errors.Wrapf(err, "get customer %s", c.ID)
		}

		if err := repo.Create(ctx, &customer.Customer{
			ID:        c.ID,
			Name:      c.Name,
			Phone:     c.Phone,
			Email:     c.Email,
			Address:   c.Address,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return errors.Wrapf(err, "create customer %s", c.ID)
		}
		slog.Info("created customer", slog.String("id", c.ID), slog.String("name", c.Name))
	}

	return nil
}
