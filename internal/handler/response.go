package handler

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/tractor-shop/internal/domain/catalog"
	"github.com/xenking/tractor-shop/internal/domain/customer"
	"github.com/xenking/tractor-shop/internal/domain/order"
	"github.com/xenking/tractor-shop/internal/domain/pricing"
)

// money renders an amount with two decimal places. Nothing upstream rounds.
func money(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.StringFixed(2)))
}

// discountCeiling renders the largest order discount the engine accepts.
// Rounding down keeps the advertised value within the payable amount.
func discountCeiling(payable decimal.Decimal) decimal.Decimal {
	return payable.RoundFloor(2)
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeCustomer(e *jx.Encoder, c *customer.Customer) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(c.Phone) })
		e.Field("email", func(e *jx.Encoder) { e.Str(c.Email) })
		e.Field("address", func(e *jx.Encoder) { e.Str(c.Address) })
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, c.CreatedAt) })
	})
}

func encodeService(e *jx.Encoder, s *catalog.Service) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(s.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(s.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(s.Description) })
		e.Field("price", func(e *jx.Encoder) { money(e, s.Price) })
		e.Field("active", func(e *jx.Encoder) { e.Bool(s.Active) })
	})
}

func encodePart(e *jx.Encoder, p *catalog.Part) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("partNumber", func(e *jx.Encoder) { e.Str(p.PartNumber) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { money(e, p.Price) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		e.Field("active", func(e *jx.Encoder) { e.Bool(p.Active) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("customerId", func(e *jx.Encoder) { e.Str(o.CustomerID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("notes", func(e *jx.Encoder) { e.Str(o.Notes) })
		e.Field("version", func(e *jx.Encoder) { e.Int64(o.Version) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range o.Items {
					encodeLineItem(e, &o.Items[i])
				}
			})
		})
		e.Field("orderDiscount", func(e *jx.Encoder) {
			kind, amount := pricing.KindNone, decimal.Zero
			if o.Discount != nil {
				kind, amount = o.Discount.Kind(), o.Discount.Value()
			}
			e.Obj(func(e *jx.Encoder) {
				e.Field("kind", func(e *jx.Encoder) { e.Str(string(kind)) })
				e.Field("amount", func(e *jx.Encoder) { money(e, amount) })
			})
		})
		e.Field("totals", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("itemsSubtotal", func(e *jx.Encoder) { money(e, o.Totals.ItemsSubtotal) })
				e.Field("itemsDiscount", func(e *jx.Encoder) { money(e, o.Totals.ItemsDiscount) })
				e.Field("orderDiscount", func(e *jx.Encoder) { money(e, o.Totals.OrderDiscount) })
				e.Field("final", func(e *jx.Encoder) { money(e, o.Totals.Final) })
				e.Field("maxOrderDiscount", func(e *jx.Encoder) { money(e, discountCeiling(o.Totals.Payable())) })
			})
		})
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, o.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, o.UpdatedAt) })
		optionalTime(e, "startedAt", o.StartedAt)
		optionalTime(e, "completedAt", o.CompletedAt)
		optionalTime(e, "cancelledAt", o.CancelledAt)
	})
}

func encodeLineItem(e *jx.Encoder, li *order.LineItem) {
	kind, value := pricing.KindNone, decimal.Zero
	if li.Discount != nil {
		kind, value = li.Discount.Kind(), li.Discount.Value()
	}

	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(li.ID) })
		e.Field("itemType", func(e *jx.Encoder) { e.Str(string(li.Type)) })
		if li.ReferenceID != "" {
			e.Field("referenceId", func(e *jx.Encoder) { e.Str(li.ReferenceID) })
		}
		e.Field("name", func(e *jx.Encoder) { e.Str(li.Name) })
		e.Field("unitPrice", func(e *jx.Encoder) { money(e, li.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(li.Quantity) })
		e.Field("discount", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("kind", func(e *jx.Encoder) { e.Str(string(kind)) })
				e.Field("value", func(e *jx.Encoder) { e.Num(jx.Num(value.String())) })
			})
		})
		e.Field("lineTotals", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("subtotal", func(e *jx.Encoder) { money(e, li.Totals.Subtotal) })
				e.Field("discount", func(e *jx.Encoder) { money(e, li.Totals.Discount) })
				e.Field("final", func(e *jx.Encoder) { money(e, li.Totals.Final) })
			})
		})
	})
}

func optionalTime(e *jx.Encoder, field string, t *time.Time) {
	if t == nil {
		return
	}
	e.Field(field, func(e *jx.Encoder) { timestamp(e, *t) })
}
