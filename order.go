package orderbook

// Order represents a resting limit order.
// Identity, side, price and timestamps are fixed at creation; only the
// remaining quantity changes, and it only ever decreases.
type Order struct {
	ID        OrderID   `json:"id"`
	Side      Side      `json:"side"`
	Price     Price     `json:"price"`
	EntryTime Timestamp `json:"entry_time"`
	EventTime Timestamp `json:"event_time"`

	quantity Quantity

	// Intrusive linked list pointers, owned by the level the order rests in.
	next  *Order
	prev  *Order
	level *PriceLevel
}

// NewOrder creates a detached order.
func NewOrder(id OrderID, side Side, quantity Quantity, price Price, entryTime, eventTime Timestamp) *Order {
	return &Order{
		ID:        id,
		Side:      side,
		Price:     price,
		EntryTime: entryTime,
		EventTime: eventTime,
		quantity:  quantity,
	}
}

// Quantity returns the remaining quantity.
func (o *Order) Quantity() Quantity {
	return o.quantity
}

// ReduceQuantity subtracts amount from the remaining quantity, flooring at zero.
// It returns the amount actually removed. A zero result does not unlink the order.
func (o *Order) ReduceQuantity(amount Quantity) Quantity {
	if amount >= o.quantity {
		removed := o.quantity
		o.quantity = 0
		return removed
	}
	o.quantity -= amount
	return amount
}

// IsBuy reports whether the order rests on the bid side.
func (o *Order) IsBuy() bool {
	return o.Side == Buy
}

// clone returns a detached copy that is safe to hand out of the book.
func (o *Order) clone() Order {
	return Order{
		ID:        o.ID,
		Side:      o.Side,
		Price:     o.Price,
		EntryTime: o.EntryTime,
		EventTime: o.EventTime,
		quantity:  o.quantity,
	}
}
