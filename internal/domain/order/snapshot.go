package order

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/tractor-shop/internal/domain/pricing"
)

// Snapshot is the view of an order republished to observers after every
// successful change.
type Snapshot struct {
	ID       string
	Status   Status
	Version  int64
	Items    []SnapshotItem
	Discount pricing.OrderDiscount
	Totals   pricing.Totals
}

// SnapshotItem is a line item inside a Snapshot.
type SnapshotItem struct {
	ID          string
	Type        ItemType
	ReferenceID string
	Name        string
	UnitPrice   decimal.Decimal
	Quantity    int
	Discount    pricing.LineDiscount
	Totals      pricing.LineTotals
}

// Publisher delivers snapshots to interested observers.
type Publisher interface {
	Publish(ctx context.Context, s Snapshot) error
}

// NewSnapshot captures the current state of o.
func NewSnapshot(o *Order) Snapshot {
	items := make([]SnapshotItem, len(o.Items))
	for i, li := range o.Items {
		items[i] = SnapshotItem{
			ID:          li.ID,
			Type:        li.Type,
			ReferenceID: li.ReferenceID,
			Name:        li.Name,
			UnitPrice:   li.UnitPrice,
			Quantity:    li.Quantity,
			Discount:    li.Discount,
			Totals:      li.Totals,
		}
	}
	return Snapshot{
		ID:       o.ID,
		Status:   o.Status,
		Version:  o.Version,
		Items:    items,
		Discount: o.Discount,
		Totals:   o.Totals,
	}
}
