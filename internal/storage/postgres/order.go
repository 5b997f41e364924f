package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/tractor-shop/internal/domain/order"
	"github.com/xenking/tractor-shop/internal/domain/pricing"
)

const (
	orderColumns = `id, customer_id, status, notes, items,
		discount_kind, discount_amount,
		items_subtotal, items_discount, order_discount, total,
		version, created_at, updated_at, started_at, completed_at, cancelled_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1::text = '' OR status = $1) AND ($2::text = '' OR customer_id = $2)
		ORDER BY created_at DESC, id
		LIMIT $3`

	updateOrderSQL = `UPDATE orders SET
			status = $2, notes = $3, items = $4,
			discount_kind = $5, discount_amount = $6,
			items_subtotal = $7, items_discount = $8, order_discount = $9, total = $10,
			updated_at = $11, started_at = $12, completed_at = $13, cancelled_at = $14,
			version = version + 1
		WHERE id = $1 AND version = $15`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

// itemRecord is the JSONB representation of a line item.
type itemRecord struct {
	ID            string          `json:"id"`
	Type          order.ItemType  `json:"type"`
	ReferenceID   string          `json:"referenceId,omitempty"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	Quantity      int             `json:"quantity"`
	DiscountKind  pricing.Kind    `json:"discountKind"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Final         decimal.Decimal `json:"final"`
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := marshalItems(o.Items)
	if err != nil {
		return err
	}
	kind, amount := discountColumns(o.Discount)

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.CustomerID, o.Status, o.Notes, itemsJSON,
		kind, amount,
		o.Totals.ItemsSubtotal, o.Totals.ItemsDiscount, o.Totals.OrderDiscount, o.Totals.Final,
		o.Version, o.CreatedAt, o.UpdatedAt, o.StartedAt, o.CompletedAt, o.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns an order or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// List returns orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, string(f.Status), f.CustomerID, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Update writes o if the stored version equals expectedVersion.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order, expectedVersion int64) error {
	itemsJSON, err := marshalItems(o.Items)
	if err != nil {
		return err
	}
	kind, amount := discountColumns(o.Discount)

	tag, err := r.pool.Exec(ctx, updateOrderSQL,
		o.ID, o.Status, o.Notes, itemsJSON,
		kind, amount,
		o.Totals.ItemsSubtotal, o.Totals.ItemsDiscount, o.Totals.OrderDiscount, o.Totals.Final,
		o.UpdatedAt, o.StartedAt, o.CompletedAt, o.CancelledAt,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, orderExistsSQL, o.ID).Scan(&exists); err != nil {
			return fmt.Errorf("checking order %q: %w", o.ID, err)
		}
		if !exists {
			return order.ErrNotFound
		}
		return order.ErrVersionConflict
	}

	o.Version = expectedVersion + 1
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
		kind      string
		amount    decimal.Decimal
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.Status, &o.Notes, &itemsJSON,
		&kind, &amount,
		&o.Totals.ItemsSubtotal, &o.Totals.ItemsDiscount, &o.Totals.OrderDiscount, &o.Totals.Final,
		&o.Version, &o.CreatedAt, &o.UpdatedAt, &o.StartedAt, &o.CompletedAt, &o.CancelledAt,
	)
	if err != nil {
		return o, err
	}

	if o.Discount, err = pricing.ParseOrderDiscount(pricing.Kind(kind), amount); err != nil {
		return o, fmt.Errorf("order %q: %w", o.ID, err)
	}
	if o.Items, err = unmarshalItems(itemsJSON); err != nil {
		return o, fmt.Errorf("order %q: %w", o.ID, err)
	}
	return o, nil
}

func discountColumns(d pricing.OrderDiscount) (string, decimal.Decimal) {
	if d == nil {
		return string(pricing.KindNone), decimal.Zero
	}
	return string(d.Kind()), d.Value()
}

func marshalItems(items []order.LineItem) ([]byte, error) {
	records := make([]itemRecord, len(items))
	for i, li := range items {
		rec := itemRecord{
			ID:           li.ID,
			Type:         li.Type,
			ReferenceID:  li.ReferenceID,
			Name:         li.Name,
			UnitPrice:    li.UnitPrice,
			Quantity:     li.Quantity,
			DiscountKind: pricing.KindNone,
			Subtotal:     li.Totals.Subtotal,
			Discount:     li.Totals.Discount,
			Final:        li.Totals.Final,
		}
		if li.Discount != nil {
			rec.DiscountKind = li.Discount.Kind()
			rec.DiscountValue = li.Discount.Value()
		}
		records[i] = rec
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshaling order items: %w", err)
	}
	return data, nil
}

func unmarshalItems(data []byte) ([]order.LineItem, error) {
	var records []itemRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshaling order items: %w", err)
	}

	items := make([]order.LineItem, len(records))
	for i, rec := range records {
		d, err := pricing.ParseLineDiscount(rec.DiscountKind, rec.DiscountValue)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", rec.ID, err)
		}
		items[i] = order.LineItem{
			ID:          rec.ID,
			Type:        rec.Type,
			ReferenceID: rec.ReferenceID,
			Name:        rec.Name,
			UnitPrice:   rec.UnitPrice,
			Quantity:    rec.Quantity,
			Discount:    d,
			Totals: pricing.LineTotals{
				Subtotal: rec.Subtotal,
				Discount: rec.Discount,
				Final:    rec.Final,
			},
		}
	}
	return items, nil
}
