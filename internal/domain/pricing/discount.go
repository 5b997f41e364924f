package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind names a discount variant for storage and transport.
type Kind string

const (
	// KindNone means no discount is applied.
	KindNone Kind = "none"
	// KindPercent discounts a percentage of the line subtotal.
	KindPercent Kind = "percent"
	// KindFlat discounts an absolute amount.
	KindFlat Kind = "flat"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// LineDiscount is the discount attached to a single line item. The set of
// implementations is closed: None, Percent and Flat.
type LineDiscount interface {
	Kind() Kind
	Value() decimal.Decimal
	lineAmount(subtotal decimal.Decimal) decimal.Decimal
}

// OrderDiscount is the discount applied to the whole order after line
// discounts. Only None and Flat implement it.
type OrderDiscount interface {
	Kind() Kind
	Value() decimal.Decimal
	orderAmount() decimal.Decimal
}

// None is the absence of a discount.
type None struct{}

// Percent discounts a share of the line subtotal. Valid values are 0..100.
type Percent struct {
	Rate decimal.Decimal
}

// Flat discounts an absolute amount.
type Flat struct {
	Amount decimal.Decimal
}

var (
	_ LineDiscount  = None{}
	_ LineDiscount  = Percent{}
	_ LineDiscount  = Flat{}
	_ OrderDiscount = None{}
	_ OrderDiscount = Flat{}
)

func (None) Kind() Kind             { return KindNone }
func (None) Value() decimal.Decimal { return zero }

func (None) lineAmount(decimal.Decimal) decimal.Decimal { return zero }
func (None) orderAmount() decimal.Decimal               { return zero }

func (Percent) Kind() Kind               { return KindPercent }
func (p Percent) Value() decimal.Decimal { return p.Rate }

// lineAmount clamps to [0, subtotal] even when the rate slipped past upstream
// validation.
func (p Percent) lineAmount(subtotal decimal.Decimal) decimal.Decimal {
	amount := subtotal.Mul(p.Rate).Div(hundred)
	return clamp(amount, subtotal)
}

func (Flat) Kind() Kind               { return KindFlat }
func (f Flat) Value() decimal.Decimal { return f.Amount }

func (f Flat) lineAmount(subtotal decimal.Decimal) decimal.Decimal {
	return clamp(f.Amount, subtotal)
}

func (f Flat) orderAmount() decimal.Decimal {
	if !f.Amount.IsPositive() {
		return zero
	}
	return f.Amount
}

// ParseLineDiscount builds a LineDiscount from its stored representation.
// An empty kind is treated as KindNone.
func ParseLineDiscount(kind Kind, value decimal.Decimal) (LineDiscount, error) {
	switch kind {
	case KindNone, "":
		return None{}, nil
	case KindPercent:
		return Percent{Rate: value}, nil
	case KindFlat:
		return Flat{Amount: value}, nil
	default:
		return nil, errors.Errorf("unsupported line discount kind: %q", kind)
	}
}

// ParseOrderDiscount builds an OrderDiscount from its stored representation.
func ParseOrderDiscount(kind Kind, value decimal.Decimal) (OrderDiscount, error) {
	switch kind {
	case KindNone, "":
		return None{}, nil
	case KindFlat:
		return Flat{Amount: value}, nil
	default:
		return nil, errors.Errorf("unsupported order discount kind: %q", kind)
	}
}

// FlatOrderDiscount returns Flat for a positive amount and None otherwise.
func FlatOrderDiscount(amount decimal.Decimal) OrderDiscount {
	if !amount.IsPositive() {
		return None{}
	}
	return Flat{Amount: amount}
}

// clamp limits v to [0, ceiling].
func clamp(v, ceiling decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return zero
	}
	return decimal.Min(v, ceiling)
}
