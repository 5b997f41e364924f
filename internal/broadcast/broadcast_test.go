package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/tractor-shop/internal/domain/order"
	"github.com/xenking/tractor-shop/internal/domain/pricing"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func testSnapshot(id string) order.Snapshot {
	return order.Snapshot{
		ID:      id,
		Status:  order.StatusDraft,
		Version: 3,
		Items: []order.SnapshotItem{
			{
				ID:          "i1",
				Type:        order.ItemService,
				ReferenceID: "svc-1",
				Name:        "Engine overhaul",
				UnitPrice:   d("1000"),
				Quantity:    2,
				Discount:    pricing.Percent{Rate: d("10")},
				Totals:      pricing.LineTotals{Subtotal: d("2000"), Discount: d("200"), Final: d("1800")},
			},
		},
		Discount: pricing.Flat{Amount: d("100")},
		Totals: pricing.Totals{
			ItemsSubtotal: d("2000"),
			ItemsDiscount: d("200"),
			OrderDiscount: d("100"),
			Final:         d("1700"),
		},
	}
}

const testSnapshotJSON = `{
	"id": "o1",
	"status": "draft",
	"version": 3,
	"items": [{
		"id": "i1",
		"itemType": "service",
		"referenceId": "svc-1",
		"name": "Engine overhaul",
		"unitPrice": 1000.00,
		"quantity": 2,
		"discount": {"kind": "percent", "value": 10},
		"lineTotals": {"subtotal": 2000.00, "discount": 200.00, "final": 1800.00}
	}],
	"orderDiscount": {"kind": "flat", "amount": 100},
	"totals": {"itemsSubtotal": 2000.00, "itemsDiscount": 200.00, "orderDiscount": 100.00, "final": 1700.00}
}`

func TestEncodeSnapshot(t *testing.T) {
	assert.JSONEq(t, testSnapshotJSON, string(EncodeSnapshot(testSnapshot("o1"))))
}

func TestEncodeSnapshot_NilDiscounts(t *testing.T) {
	s := order.Snapshot{ID: "o2", Status: order.StatusDraft}
	got := string(EncodeSnapshot(s))
	assert.Contains(t, got, `"orderDiscount":{"kind":"none","amount":0}`)
}

func TestHub_DeliversToOrderAndAllSubscribers(t *testing.T) {
	h := NewHub(4)

	one, cancelOne := h.Subscribe("o1")
	defer cancelOne()
	all, cancelAll := h.Subscribe(AllOrders)
	defer cancelAll()
	other, cancelOther := h.Subscribe("o2")
	defer cancelOther()

	require.NoError(t, h.Publish(context.Background(), testSnapshot("o1")))

	assert.Equal(t, "o1", (<-one).ID)
	assert.Equal(t, "o1", (<-all).ID)
	select {
	case s := <-other:
		t.Fatalf("unexpected snapshot %s", s.ID)
	default:
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe("o1")
	defer cancel()

	for range 5 {
		require.NoError(t, h.Publish(context.Background(), testSnapshot("o1")))
	}
	assert.Len(t, ch, 1)
}

func TestHub_CancelClosesChannel(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe("o1")
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	require.NoError(t, h.Publish(context.Background(), testSnapshot("o1")))
}

func TestRedisPublisher_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, Channel("o1"))
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, NewRedisPublisher(client).Publish(ctx, testSnapshot("o1")))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "orders:o1:snapshot", msg.Channel)
	assert.JSONEq(t, testSnapshotJSON, msg.Payload)
}

type failingPublisher struct {
	calls int
	err   error
}

func (f *failingPublisher) Publish(context.Context, order.Snapshot) error {
	f.calls++
	return f.err
}

func TestMulti_TriesAllAndReturnsFirstError(t *testing.T) {
	first := &failingPublisher{err: errors.New("first")}
	second := &failingPublisher{err: errors.New("second")}
	ok := &failingPublisher{}

	err := Multi{first, ok, second}.Publish(context.Background(), testSnapshot("o1"))
	require.EqualError(t, err, "first")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, second.calls)
}
