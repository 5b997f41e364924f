// Package pricing derives line and order totals for service orders.
//
// Recalc is a pure function: it never mutates its input and either returns a
// complete Breakdown or an error, so callers can commit results atomically.
// All arithmetic uses exact decimals and nothing is rounded here.
package pricing

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidDiscount matches every *InvalidDiscountError.
var ErrInvalidDiscount = errors.New("invalid discount")

// InvalidDiscountError reports an order discount larger than the amount
// payable after line discounts.
type InvalidDiscountError struct {
	Payable   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InvalidDiscountError) Error() string {
	return fmt.Sprintf("order discount %s exceeds payable amount %s",
		e.Requested.String(), e.Payable.String())
}

// Is makes errors.Is(err, ErrInvalidDiscount) succeed.
func (e *InvalidDiscountError) Is(target error) bool {
	return target == ErrInvalidDiscount
}

// Item is the pricing view of a line item.
type Item struct {
	UnitPrice decimal.Decimal
	Quantity  int
	// Discount may be nil, which is equivalent to None.
	Discount LineDiscount
}

// LineTotals holds the derived amounts of a single line.
type LineTotals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Final    decimal.Decimal
}

// Totals holds the derived amounts of an order.
type Totals struct {
	ItemsSubtotal decimal.Decimal
	ItemsDiscount decimal.Decimal
	OrderDiscount decimal.Decimal
	Final         decimal.Decimal
}

// Payable returns the amount left after line discounts, the ceiling for the
// order discount.
func (t Totals) Payable() decimal.Decimal {
	return t.ItemsSubtotal.Sub(t.ItemsDiscount)
}

// Breakdown is the result of a recalculation. Lines[i] belongs to items[i].
type Breakdown struct {
	Lines  []LineTotals
	Totals Totals
}

// Recalc computes line totals for every item and the order totals.
//
// Items with a non-positive unit price or quantity contribute nothing but
// still get a zero LineTotals entry. The only failure is an order discount
// above the payable amount, reported as *InvalidDiscountError.
func Recalc(items []Item, discount OrderDiscount) (Breakdown, error) {
	lines := make([]LineTotals, len(items))
	itemsSubtotal, itemsDiscount := zero, zero

	for i, item := range items {
		lt := Line(item)
		lines[i] = lt
		itemsSubtotal = itemsSubtotal.Add(lt.Subtotal)
		itemsDiscount = itemsDiscount.Add(lt.Discount)
	}

	orderLevel := zero
	if discount != nil {
		orderLevel = discount.orderAmount()
	}

	payable := itemsSubtotal.Sub(itemsDiscount)
	if orderLevel.GreaterThan(payable) {
		return Breakdown{}, &InvalidDiscountError{
			Payable:   payable,
			Requested: orderLevel,
		}
	}

	return Breakdown{
		Lines: lines,
		Totals: Totals{
			ItemsSubtotal: itemsSubtotal,
			ItemsDiscount: itemsDiscount,
			OrderDiscount: orderLevel,
			Final:         floorAtZero(payable.Sub(orderLevel)),
		},
	}, nil
}

// Line computes the totals of a single item.
func Line(item Item) LineTotals {
	if !item.UnitPrice.IsPositive() || item.Quantity <= 0 {
		return LineTotals{Subtotal: zero, Discount: zero, Final: zero}
	}

	subtotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))

	amount := zero
	if item.Discount != nil {
		amount = item.Discount.lineAmount(subtotal)
	}

	return LineTotals{
		Subtotal: subtotal,
		Discount: amount,
		Final:    floorAtZero(subtotal.Sub(amount)),
	}
}

// MaxOrderDiscount returns the largest order discount the items can carry.
func MaxOrderDiscount(items []Item) decimal.Decimal {
	b, _ := Recalc(items, None{})
	return b.Totals.Payable()
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
