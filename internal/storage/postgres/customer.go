package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tractor-shop/internal/domain/customer"
)

const (
	customerColumns = `id, name, phone, email, address, created_at`

	createCustomerSQL = `INSERT INTO customers (` + customerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getCustomerSQL = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	listCustomersSQL = `SELECT ` + customerColumns + ` FROM customers ORDER BY name, id`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// Create inserts a new customer.
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	_, err := r.pool.Exec(ctx, createCustomerSQL,
		c.ID, c.Name, c.Phone, c.Email, c.Address, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating customer %q: %w", c.ID, err)
	}
	return nil
}

// GetByID returns a customer or customer.ErrNotFound.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	rows, err := r.pool.Query(ctx, getCustomerSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}
	return &c, nil
}

// List returns all customers ordered by name.
func (r *CustomerRepository) List(ctx context.Context) ([]customer.Customer, error) {
	rows, err := r.pool.Query(ctx, listCustomersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	return pgx.CollectRows(rows, scanCustomer)
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt)
	return c, err
}
