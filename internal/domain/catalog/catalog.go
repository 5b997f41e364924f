package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested service or part does not exist.
var ErrNotFound = errors.New("catalog entry not found")

// ErrUnavailable is returned when a catalog entry is inactive.
var ErrUnavailable = errors.New("catalog entry unavailable")

// InsufficientStockError indicates a part cannot cover the requested quantity.
type InsufficientStockError struct {
	PartID    string
	Requested int
	InStock   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("part %s: requested %d, in stock %d", e.PartID, e.Requested, e.InStock)
}

// Service is a unit of workshop labour offered to customers.
type Service struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Active      bool
}

// Part is a stocked spare part.
type Part struct {
	ID         string
	PartNumber string
	Name       string
	Price      decimal.Decimal
	Stock      int
	Active     bool
}

// Available reports whether qty units of the part can be sold.
func (p *Part) Available(qty int) error {
	if !p.Active {
		return ErrUnavailable
	}
	if qty > p.Stock {
		return &InsufficientStockError{PartID: p.ID, Requested: qty, InStock: p.Stock}
	}
	return nil
}

// Repository defines read and upsert operations for the service and parts
// catalogs.
type Repository interface {
	ListServices(ctx context.Context) ([]Service, error)
	GetService(ctx context.Context, id string) (*Service, error)
	UpsertService(ctx context.Context, s Service) error

	ListParts(ctx context.Context) ([]Part, error)
	GetPart(ctx context.Context, id string) (*Part, error)
	UpsertPart(ctx context.Context, p Part) error
}
