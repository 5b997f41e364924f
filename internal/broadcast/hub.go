package broadcast

import (
	"context"
	"sync"

	"github.com/xenking/tractor-shop/internal/domain/order"
)

// AllOrders subscribes to snapshots of every order.
const AllOrders = "*"

var _ order.Publisher = (*Hub)(nil)

// Hub fans snapshots out to in-process subscribers. Delivery never blocks the
// publisher: a subscriber whose buffer is full misses the snapshot and
// catches up with the next one.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	buffer int
}

type subscription struct {
	ch chan order.Snapshot
}

// NewHub creates a Hub whose subscriber channels hold buffer snapshots.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[string]map[*subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe returns a channel receiving snapshots of orderID (or of all orders
// for AllOrders) and a function that ends the subscription and closes the
// channel.
func (h *Hub) Subscribe(orderID string) (<-chan order.Snapshot, func()) {
	sub := &subscription{ch: make(chan order.Snapshot, h.buffer)}

	h.mu.Lock()
	set, ok := h.subs[orderID]
	if !ok {
		set = make(map[*subscription]struct{})
		h.subs[orderID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[orderID], sub)
			if len(h.subs[orderID]) == 0 {
				delete(h.subs, orderID)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers s to subscribers of its order and of AllOrders.
func (h *Hub) Publish(_ context.Context, s order.Snapshot) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, key := range []string{s.ID, AllOrders} {
		for sub := range h.subs[key] {
			select {
			case sub.ch <- s:
			default:
			}
		}
	}
	return nil
}
