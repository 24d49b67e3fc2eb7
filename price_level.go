package orderbook

import (
	"fmt"
	"sync"

	"github.com/0x5487/orderbook/structure"
)

// PriceLevel holds every resting order at one price on one side, in arrival order.
// It tracks the order count and the aggregate remaining volume of its queue.
type PriceLevel struct {
	mu sync.Mutex

	price       Price
	side        Side
	orderCount  int64
	totalVolume Quantity
	head        *Order
	tail        *Order

	// node is the handle of this level in its side's price tree.
	node int32
}

func newPriceLevel(side Side, price Price) *PriceLevel {
	return &PriceLevel{
		price: price,
		side:  side,
		node:  structure.NullIndex,
	}
}

// Append links order at the tail of the queue.
func (l *PriceLevel) Append(order *Order) error {
	if order == nil {
		return fmt.Errorf("%w: cannot append nil order", ErrInvalidParam)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	order.level = l
	order.next = nil
	order.prev = l.tail
	if l.tail != nil {
		l.tail.next = order
	} else {
		l.head = order
	}
	l.tail = order

	l.orderCount++
	l.totalVolume += order.quantity
	return nil
}

// Detach unlinks order from the queue and clears its links.
func (l *PriceLevel) Detach(order *Order) error {
	if order == nil {
		return fmt.Errorf("%w: cannot detach nil order", ErrInvalidParam)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if order.level != l {
		return fmt.Errorf("%w: order %d does not belong to level %d", ErrInvalidParam, order.ID, l.price)
	}

	if order.prev != nil {
		order.prev.next = order.next
	} else {
		l.head = order.next
	}

	if order.next != nil {
		order.next.prev = order.prev
	} else {
		l.tail = order.prev
	}

	order.next = nil
	order.prev = nil
	order.level = nil

	l.orderCount--
	l.totalVolume -= order.quantity
	return nil
}

// ApplyPartialReduction shrinks order in place and keeps the level volume in sync.
// It returns the quantity actually removed.
func (l *PriceLevel) ApplyPartialReduction(order *Order, amount Quantity) (Quantity, error) {
	if order == nil {
		return 0, fmt.Errorf("%w: cannot reduce nil order", ErrInvalidParam)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if order.level != l {
		return 0, fmt.Errorf("%w: order %d does not belong to level %d", ErrInvalidParam, order.ID, l.price)
	}

	removed := order.ReduceQuantity(amount)
	l.totalVolume -= removed
	return removed, nil
}

// Price returns the level price.
func (l *PriceLevel) Price() Price {
	return l.price
}

// Side returns the side the level rests on.
func (l *PriceLevel) Side() Side {
	return l.side
}

// HasOrders reports whether the queue is non-empty.
func (l *PriceLevel) HasOrders() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head != nil
}

// OrderCount returns the number of orders in the queue.
func (l *PriceLevel) OrderCount() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.orderCount
}

// TotalVolume returns the sum of remaining quantities in the queue.
func (l *PriceLevel) TotalVolume() Quantity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalVolume
}

// Head returns the oldest order, or nil.
func (l *PriceLevel) Head() *Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head
}

// Tail returns the newest order, or nil.
func (l *PriceLevel) Tail() *Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tail
}

// orders returns detached copies of the queue in time priority.
func (l *PriceLevel) orders() []Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]Order, 0, l.orderCount)
	for o := l.head; o != nil; o = o.next {
		result = append(result, o.clone())
	}
	return result
}

// depthItem reads the level aggregates under its lock.
func (l *PriceLevel) depthItem() *DepthItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &DepthItem{
		Price: l.price,
		Size:  l.totalVolume,
		Count: l.orderCount,
	}
}
