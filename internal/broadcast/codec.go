// Package broadcast republishes order snapshots to observers, either inside
// the process (Hub) or through Redis pub/sub (RedisPublisher).
package broadcast

import (
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/tractor-shop/internal/domain/order"
	"github.com/xenking/tractor-shop/internal/domain/pricing"
)

// EncodeSnapshot renders s as JSON. Money is rounded to two places only here.
func EncodeSnapshot(s order.Snapshot) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(s.ID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(s.Status)) })
		e.Field("version", func(e *jx.Encoder) { e.Int64(s.Version) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range s.Items {
					encodeItem(e, it)
				}
			})
		})
		e.Field("orderDiscount", func(e *jx.Encoder) { encodeDiscount(e, "amount", s.Discount) })
		e.Field("totals", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("itemsSubtotal", func(e *jx.Encoder) { money(e, s.Totals.ItemsSubtotal) })
				e.Field("itemsDiscount", func(e *jx.Encoder) { money(e, s.Totals.ItemsDiscount) })
				e.Field("orderDiscount", func(e *jx.Encoder) { money(e, s.Totals.OrderDiscount) })
				e.Field("final", func(e *jx.Encoder) { money(e, s.Totals.Final) })
			})
		})
	})
	return e.Bytes()
}

func encodeItem(e *jx.Encoder, it order.SnapshotItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
		e.Field("itemType", func(e *jx.Encoder) { e.Str(string(it.Type)) })
		if it.ReferenceID != "" {
			e.Field("referenceId", func(e *jx.Encoder) { e.Str(it.ReferenceID) })
		}
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("unitPrice", func(e *jx.Encoder) { money(e, it.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("discount", func(e *jx.Encoder) { encodeDiscount(e, "value", it.Discount) })
		e.Field("lineTotals", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("subtotal", func(e *jx.Encoder) { money(e, it.Totals.Subtotal) })
				e.Field("discount", func(e *jx.Encoder) { money(e, it.Totals.Discount) })
				e.Field("final", func(e *jx.Encoder) { money(e, it.Totals.Final) })
			})
		})
	})
}

type discount interface {
	Kind() pricing.Kind
	Value() decimal.Decimal
}

func encodeDiscount(e *jx.Encoder, valueField string, d discount) {
	kind, value := pricing.KindNone, decimal.Zero
	if d != nil {
		kind, value = d.Kind(), d.Value()
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("kind", func(e *jx.Encoder) { e.Str(string(kind)) })
		e.Field(valueField, func(e *jx.Encoder) { e.Num(jx.Num(value.String())) })
	})
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.StringFixed(2)))
}
