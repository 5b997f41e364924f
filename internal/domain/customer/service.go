package customer

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ErrNameRequired is returned when a customer is created without a name.
var ErrNameRequired = errors.New("customer name required")

// Service manages customer records.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a customer Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create validates and stores a new customer.
func (s *Service) Create(ctx context.Context, c Customer) (*Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	if c.Name == "" {
		return nil, ErrNameRequired
	}

	c.ID = uuid.New().String()
	c.CreatedAt = s.now()
	if err := s.repo.Create(ctx, &c); err != nil {
		return nil, errors.Wrap(err, "create customer")
	}
	return &c, nil
}

// Get returns a customer by ID.
func (s *Service) Get(ctx context.Context, id string) (*Customer, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all customers ordered by name.
func (s *Service) List(ctx context.Context) ([]Customer, error) {
	return s.repo.List(ctx)
}
