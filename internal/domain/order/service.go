package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/tractor-shop/internal/domain/catalog"
	"github.com/xenking/tractor-shop/internal/domain/customer"
	"github.com/xenking/tractor-shop/internal/domain/pricing"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Locker serialises work on a key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// AddItemRequest holds the input for adding a line item. When ReferenceID is
// set, name and price come from the catalog and Name/UnitPrice are ignored.
type AddItemRequest struct {
	Type        ItemType
	ReferenceID string
	Name        string
	UnitPrice   decimal.Decimal
	Quantity    int
	Discount    pricing.LineDiscount
}

// Option configures a Service.
type Option func(*Service)

// WithMeterProvider sets the meter provider used for recalculation metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.meterProvider = mp
	}
}

// WithPublisher sets where order snapshots are published after each change.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service encapsulates order management: every mutation is serialised per
// order, recalculated and persisted with a version check.
type Service struct {
	orders    Repository
	catalog   catalog.Repository
	customers customer.Repository
	locker    Locker
	publisher Publisher
	now       func() time.Time

	meterProvider metric.MeterProvider
	recalcs       metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	orders Repository,
	catalogRepo catalog.Repository,
	customers customer.Repository,
	locker Locker,
	opts ...Option,
) *Service {
	s := &Service{
		orders:        orders,
		catalog:       catalogRepo,
		customers:     customers,
		locker:        locker,
		now:           time.Now,
		meterProvider: noop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	counter, err := s.meterProvider.Meter("tractor-shop/order").Int64Counter("order.recalculations",
		metric.WithDescription("Order recalculations by result"),
	)
	if err != nil {
		counter, _ = noop.NewMeterProvider().Meter("").Int64Counter("order.recalculations")
	}
	s.recalcs = counter

	return s
}

// Create opens a new draft order for an existing customer.
func (s *Service) Create(ctx context.Context, customerID, notes string) (*Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, &ValidationError{Field: "customerId", Message: "required"}
	}
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, &ValidationError{Field: "customerId", Message: "unknown customer " + customerID}
		}
		return nil, errors.Wrap(err, "get customer")
	}

	now := s.now()
	o := &Order{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Status:     StatusDraft,
		Notes:      notes,
		Discount:   pricing.None{},
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.Recalculate(); err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.publish(ctx, o)
	return o, nil
}

// Get returns an order by ID.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// List returns orders matching f, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown status " + string(f.Status)}
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	return s.orders.List(ctx, f)
}

// AddItem appends a catalog or custom line item to a draft order.
func (s *Service) AddItem(ctx context.Context, orderID string, req AddItemRequest) (*Order, error) {
	if !req.Type.Valid() {
		return nil, &ValidationError{Field: "itemType", Message: "must be service or part"}
	}
	if req.Quantity < 1 {
		return nil, &InvalidQuantityError{Quantity: req.Quantity}
	}
	if req.ReferenceID == "" {
		if strings.TrimSpace(req.Name) == "" {
			return nil, &ValidationError{Field: "name", Message: "required for custom items"}
		}
		if req.UnitPrice.IsNegative() {
			return nil, &ValidationError{Field: "unitPrice", Message: "must not be negative"}
		}
	}

	return s.mutateDraft(ctx, orderID, func(ctx context.Context, o *Order) error {
		item := LineItem{
			ID:          uuid.New().String(),
			Type:        req.Type,
			ReferenceID: req.ReferenceID,
			Name:        strings.TrimSpace(req.Name),
			UnitPrice:   req.UnitPrice,
			Quantity:    req.Quantity,
			Discount:    discountOrNone(req.Discount),
		}
		if req.ReferenceID != "" {
			if err := s.snapshotCatalog(ctx, o, &item); err != nil {
				return err
			}
		}
		if err := pricing.ValidateLineDiscount(item.pricingItem()); err != nil {
			return err
		}

		o.Items = append(o.Items, item)
		return nil
	})
}

// RemoveItem deletes a line item from a draft order.
func (s *Service) RemoveItem(ctx context.Context, orderID, itemID string) (*Order, error) {
	return s.mutateDraft(ctx, orderID, func(_ context.Context, o *Order) error {
		idx := o.findItem(itemID)
		if idx < 0 {
			return ErrItemNotFound
		}
		o.Items = append(o.Items[:idx], o.Items[idx+1:]...)
		return nil
	})
}

// SetQuantity changes the quantity of a line item. Part lines are checked
// against stock, and a flat discount must still fit the new subtotal.
func (s *Service) SetQuantity(ctx context.Context, orderID, itemID string, qty int) (*Order, error) {
	if qty < 1 {
		return nil, &InvalidQuantityError{Quantity: qty}
	}

	return s.mutateDraft(ctx, orderID, func(ctx context.Context, o *Order) error {
		idx := o.findItem(itemID)
		if idx < 0 {
			return ErrItemNotFound
		}
		item := &o.Items[idx]
		if item.Type == ItemPart && item.ReferenceID != "" && qty > item.Quantity {
			p, err := s.catalog.GetPart(ctx, item.ReferenceID)
			if err != nil {
				return errors.Wrap(err, "get part")
			}
			if err := p.Available(o.partQuantity(item.ReferenceID, idx) + qty); err != nil {
				return err
			}
		}

		item.Quantity = qty
		return pricing.ValidateLineDiscount(item.pricingItem())
	})
}

// SetItemDiscount replaces the discount of a line item.
func (s *Service) SetItemDiscount(ctx context.Context, orderID, itemID string, d pricing.LineDiscount) (*Order, error) {
	return s.mutateDraft(ctx, orderID, func(_ context.Context, o *Order) error {
		idx := o.findItem(itemID)
		if idx < 0 {
			return ErrItemNotFound
		}
		item := &o.Items[idx]
		item.Discount = discountOrNone(d)
		return pricing.ValidateLineDiscount(item.pricingItem())
	})
}

// SetOrderDiscount sets a flat order-level discount; zero clears it. An
// amount above the payable total fails with *pricing.InvalidDiscountError and
// leaves the stored order unchanged.
func (s *Service) SetOrderDiscount(ctx context.Context, orderID string, amount decimal.Decimal) (*Order, error) {
	if amount.IsNegative() {
		return nil, &ValidationError{Field: "amount", Message: "must not be negative"}
	}

	return s.mutateDraft(ctx, orderID, func(_ context.Context, o *Order) error {
		o.Discount = pricing.FlatOrderDiscount(amount)
		return nil
	})
}

// Start moves a draft order to ongoing, freezing its items.
func (s *Service) Start(ctx context.Context, orderID string) (*Order, error) {
	return s.mutate(ctx, orderID, func(ctx context.Context, o *Order) error {
		if o.Status == StatusDraft {
			if err := s.recalculate(ctx, o); err != nil {
				return err
			}
		}
		return o.transition(StatusOngoing, s.now())
	})
}

// Complete marks an ongoing order as completed.
func (s *Service) Complete(ctx context.Context, orderID string) (*Order, error) {
	return s.mutate(ctx, orderID, func(_ context.Context, o *Order) error {
		return o.transition(StatusCompleted, s.now())
	})
}

// Cancel cancels a draft or ongoing order.
func (s *Service) Cancel(ctx context.Context, orderID string) (*Order, error) {
	return s.mutate(ctx, orderID, func(_ context.Context, o *Order) error {
		return o.transition(StatusCancelled, s.now())
	})
}

// mutateDraft runs fn against a draft order and recalculates afterwards.
func (s *Service) mutateDraft(ctx context.Context, orderID string, fn func(context.Context, *Order) error) (*Order, error) {
	return s.mutate(ctx, orderID, func(ctx context.Context, o *Order) error {
		if o.Status != StatusDraft {
			return ErrNotDraft
		}
		if err := fn(ctx, o); err != nil {
			return err
		}
		return s.recalculate(ctx, o)
	})
}

// mutate loads the order under its lock, applies fn to a copy and persists
// the copy only when fn succeeds. The snapshot is published before the lock
// is released so subscribers see versions in order.
func (s *Service) mutate(ctx context.Context, orderID string, fn func(context.Context, *Order) error) (*Order, error) {
	var updated *Order
	err := s.locker.WithLock(ctx, lockKey(orderID), func(ctx context.Context) error {
		current, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := fn(ctx, next); err != nil {
			return err
		}
		next.UpdatedAt = s.now()

		if err := s.orders.Update(ctx, next, current.Version); err != nil {
			return errors.Wrap(err, "update order")
		}
		updated = next
		s.publish(ctx, updated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) recalculate(ctx context.Context, o *Order) error {
	err := o.Recalculate()
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	s.recalcs.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	return err
}

// snapshotCatalog copies name and price from the catalog into item and checks
// availability.
func (s *Service) snapshotCatalog(ctx context.Context, o *Order, item *LineItem) error {
	switch item.Type {
	case ItemService:
		svc, err := s.catalog.GetService(ctx, item.ReferenceID)
		if err != nil {
			return errors.Wrap(err, "get service")
		}
		if !svc.Active {
			return catalog.ErrUnavailable
		}
		item.Name = svc.Name
		item.UnitPrice = svc.Price
	case ItemPart:
		p, err := s.catalog.GetPart(ctx, item.ReferenceID)
		if err != nil {
			return errors.Wrap(err, "get part")
		}
		if err := p.Available(o.partQuantity(p.ID, -1) + item.Quantity); err != nil {
			return err
		}
		item.Name = p.Name
		item.UnitPrice = p.Price
	}
	return nil
}

func (s *Service) publish(ctx context.Context, o *Order) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, NewSnapshot(o)); err != nil {
		zctx.From(ctx).Warn("Publish order snapshot",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}

// partQuantity sums the quantity of partID across lines, skipping index skip.
func (o *Order) partQuantity(partID string, skip int) int {
	total := 0
	for i, li := range o.Items {
		if i == skip || li.Type != ItemPart || li.ReferenceID != partID {
			continue
		}
		total += li.Quantity
	}
	return total
}

func discountOrNone(d pricing.LineDiscount) pricing.LineDiscount {
	if d == nil {
		return pricing.None{}
	}
	return d
}

func lockKey(orderID string) string {
	return "order:" + orderID
}
