package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountRangeError reports a line discount outside its permitted range.
// Recalc clamps such values; mutation callers reject them before that.
type DiscountRangeError struct {
	Kind  Kind
	Value decimal.Decimal
	Max   decimal.Decimal
}

func (e *DiscountRangeError) Error() string {
	return fmt.Sprintf("%s discount %s out of range [0, %s]", e.Kind, e.Value.String(), e.Max.String())
}

// ValidateLineDiscount checks a discount against the line it will be applied
// to: Percent must be within [0, 100], Flat within [0, line subtotal].
func ValidateLineDiscount(item Item) error {
	switch d := item.Discount.(type) {
	case nil, None:
		return nil
	case Percent:
		if d.Rate.IsNegative() || d.Rate.GreaterThan(hundred) {
			return &DiscountRangeError{Kind: KindPercent, Value: d.Rate, Max: hundred}
		}
	case Flat:
		subtotal := Line(Item{UnitPrice: item.UnitPrice, Quantity: item.Quantity}).Subtotal
		if d.Amount.IsNegative() || d.Amount.GreaterThan(subtotal) {
			return &DiscountRangeError{Kind: KindFlat, Value: d.Amount, Max: subtotal}
		}
	}
	return nil
}
