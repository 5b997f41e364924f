package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/tractor-shop/internal/domain/pricing"
)

// ItemType tags which catalog a line item refers to.
type ItemType string

const (
	// ItemService is a line item referring to the services catalog.
	ItemService ItemType = "service"
	// ItemPart is a line item referring to the parts catalog.
	ItemPart ItemType = "part"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	return t == ItemService || t == ItemPart
}

// Order is a customer's service order.
type Order struct {
	ID         string
	CustomerID string
	Status     Status
	Notes      string
	Items      []LineItem
	Discount   pricing.OrderDiscount
	Totals     pricing.Totals
	// Version is incremented on every persisted change.
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// LineItem is one service or part entry within an order.
type LineItem struct {
	ID   string
	Type ItemType
	// ReferenceID points into the services or parts catalog. Empty for
	// custom items entered by staff.
	ReferenceID string
	Name        string
	// UnitPrice is snapshotted when the item is added.
	UnitPrice decimal.Decimal
	Quantity  int
	Discount  pricing.LineDiscount
	Totals    pricing.LineTotals
}

func (li *LineItem) pricingItem() pricing.Item {
	return pricing.Item{
		UnitPrice: li.UnitPrice,
		Quantity:  li.Quantity,
		Discount:  li.Discount,
	}
}

// PricingItems returns the pricing view of the order items.
func (o *Order) PricingItems() []pricing.Item {
	items := make([]pricing.Item, len(o.Items))
	for i := range o.Items {
		items[i] = o.Items[i].pricingItem()
	}
	return items
}

// Recalculate derives line and order totals from the current items and order
// discount. On error nothing in the order is modified.
func (o *Order) Recalculate() error {
	if o.Status != StatusDraft {
		return ErrNotDraft
	}

	b, err := pricing.Recalc(o.PricingItems(), o.Discount)
	if err != nil {
		return err
	}

	for i := range o.Items {
		o.Items[i].Totals = b.Lines[i]
	}
	o.Totals = b.Totals
	return nil
}

// Clone returns a deep copy of the order so mutations can be attempted
// without touching the original.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]LineItem, len(o.Items))
	copy(c.Items, o.Items)
	return &c
}

// findItem returns the index of the item with the given ID, or -1.
func (o *Order) findItem(itemID string) int {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// Filter narrows order listings. Zero values match everything.
type Filter struct {
	Status     Status
	CustomerID string
	Limit      int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
	// Update persists o if the stored version still equals expectedVersion and
	// returns ErrVersionConflict otherwise. On success o.Version is advanced.
	Update(ctx context.Context, o *Order, expectedVersion int64) error
}
