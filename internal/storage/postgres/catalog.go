package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tractor-shop/internal/domain/catalog"
)

const (
	serviceColumns = `id, name, description, price, active`
	partColumns    = `id, part_number, name, price, stock, active`

	listServicesSQL = `SELECT ` + serviceColumns + ` FROM services ORDER BY name, id`
	getServiceSQL   = `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`

	upsertServiceSQL = `INSERT INTO services (` + serviceColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			active = EXCLUDED.active`

	listPartsSQL = `SELECT ` + partColumns + ` FROM parts ORDER BY part_number`
	getPartSQL   = `SELECT ` + partColumns + ` FROM parts WHERE id = $1`

	upsertPartSQL = `INSERT INTO parts (` + partColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (part_number) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			active = EXCLUDED.active`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ListServices returns all services, active or not.
func (r *CatalogRepository) ListServices(ctx context.Context) ([]catalog.Service, error) {
	rows, err := r.pool.Query(ctx, listServicesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	return pgx.CollectRows(rows, scanService)
}

// GetService returns a service or catalog.ErrNotFound.
func (r *CatalogRepository) GetService(ctx context.Context, id string) (*catalog.Service, error) {
	rows, err := r.pool.Query(ctx, getServiceSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting service %q: %w", id, err)
	}

	s, err := pgx.CollectExactlyOneRow(rows, scanService)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting service %q: %w", id, err)
	}
	return &s, nil
}

// UpsertService inserts s or replaces the service with the same ID.
func (r *CatalogRepository) UpsertService(ctx context.Context, s catalog.Service) error {
	_, err := r.pool.Exec(ctx, upsertServiceSQL, s.ID, s.Name, s.Description, s.Price, s.Active)
	if err != nil {
		return fmt.Errorf("upserting service %q: %w", s.ID, err)
	}
	return nil
}

// ListParts returns all parts ordered by part number.
func (r *CatalogRepository) ListParts(ctx context.Context) ([]catalog.Part, error) {
	rows, err := r.pool.Query(ctx, listPartsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing parts: %w", err)
	}
	return pgx.CollectRows(rows, scanPart)
}

// GetPart returns a part or catalog.ErrNotFound.
func (r *CatalogRepository) GetPart(ctx context.Context, id string) (*catalog.Part, error) {
	rows, err := r.pool.Query(ctx, getPartSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting part %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting part %q: %w", id, err)
	}
	return &p, nil
}

// UpsertPart inserts p or updates the part with the same part number. The ID
// of an existing row is kept.
func (r *CatalogRepository) UpsertPart(ctx context.Context, p catalog.Part) error {
	_, err := r.pool.Exec(ctx, upsertPartSQL, p.ID, p.PartNumber, p.Name, p.Price, p.Stock, p.Active)
	if err != nil {
		return fmt.Errorf("upserting part %q: %w", p.PartNumber, err)
	}
	return nil
}

func scanService(row pgx.CollectableRow) (catalog.Service, error) {
	var s catalog.Service
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.Active)
	return s, err
}

func scanPart(row pgx.CollectableRow) (catalog.Part, error) {
	var p catalog.Part
	err := row.Scan(&p.ID, &p.PartNumber, &p.Name, &p.Price, &p.Stock, &p.Active)
	return p, err
}
